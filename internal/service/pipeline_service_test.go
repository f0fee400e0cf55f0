package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/apperrors"
	"ai-docreview-be/internal/repository/contract"
	"ai-docreview-be/internal/repository/memory"
	"ai-docreview-be/internal/tasks"
	"ai-docreview-be/pkg/events"
	"ai-docreview-be/pkg/matcher"
	"ai-docreview-be/pkg/ratelimit"
	"ai-docreview-be/pkg/redaction"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	extraction *entity.Extraction
	err        error
	block      bool
}

func (s *stubExtractor) Extract(ctx context.Context, documentPath string) (*entity.Extraction, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.extraction, nil
}

type stubAnalyzer struct {
	result *entity.AnalysisResult
	errs   []error
	delay  time.Duration
	calls  int
}

func (s *stubAnalyzer) Analyze(ctx context.Context, documentText, documentName string) (*entity.AnalysisResult, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return s.result, nil
}

type stubEventPublisher struct {
	mu    sync.Mutex
	types []string
}

func (s *stubEventPublisher) Publish(ctx context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = append(s.types, event.EventType())
	return nil
}

func (s *stubEventPublisher) published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.types...)
}

// recordingSessionRepo captures every progress value that lands in the
// store and can slow down the ticker's progress-only patches to widen the
// window between a tick firing and the analysis call returning.
type recordingSessionRepo struct {
	contract.SessionRepository

	mu          sync.Mutex
	progress    []int
	tickerDelay time.Duration
}

func (r *recordingSessionRepo) Update(ctx context.Context, id uuid.UUID, patch entity.SessionUpdate) (*entity.AnalysisSession, error) {
	if patch.Status == nil && r.tickerDelay > 0 {
		time.Sleep(r.tickerDelay)
	}
	updated, err := r.SessionRepository.Update(ctx, id, patch)
	if err == nil && updated != nil {
		r.mu.Lock()
		r.progress = append(r.progress, updated.Progress)
		r.mu.Unlock()
	}
	return updated, err
}

func (r *recordingSessionRepo) recorded() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress...)
}

func pipelinePage(pageNumber int, text string) entity.Page {
	fields := strings.Fields(text)
	words := make([]entity.Word, len(fields))
	for i, f := range fields {
		words[i] = entity.Word{
			Text:       f,
			BBox:       entity.BoundingBox{X1: float64(i * 50), Y1: 100, X2: float64(i*50 + 40), Y2: 112},
			PageNumber: pageNumber,
		}
	}
	return entity.Page{PageNumber: pageNumber, Text: text, Words: words}
}

func leaseExtraction() *entity.Extraction {
	pages := []entity.Page{
		pipelinePage(1, "tenant forfeits entire security deposit upon missing single rent payment"),
		pipelinePage(2, "landlord may enter premises anytime without prior written notice given"),
	}
	return &entity.Extraction{
		FullText: pages[0].Text + "\n" + pages[1].Text,
		Pages:    pages,
		Metadata: entity.ExtractionMetadata{PageCount: 2, WordCount: 20, Method: "ocr"},
	}
}

func leaseResult() *entity.AnalysisResult {
	return &entity.AnalysisResult{
		DocumentName:   "lease.pdf",
		DocumentType:   "lease",
		TotalClauses:   3,
		FlaggedClauses: 2,
		Clauses: []entity.Clause{
			{ClauseId: "clause_1", Text: "Tenant forfeits entire security deposit upon missing single rent payment", Category: entity.CategoryRisky, Severity: "high"},
			{ClauseId: "clause_2", Text: "Landlord may enter premises anytime without prior written notice given", Category: entity.CategoryUnusual, Severity: "medium"},
			{ClauseId: "clause_3", Text: "Early termination requires ninety days advance notification penalty applies", Category: entity.CategoryStandard, Severity: "low"},
		},
		Summary:        "A lease with aggressive deposit and entry terms.",
		TopConcerns:    []string{"Full deposit forfeiture on a single missed payment"},
		CategoryCounts: map[string]int{"risky": 1, "unusual": 1, "standard": 1},
	}
}

func newTestPipeline(repo contract.SessionRepository, registry *tasks.Registry, extractor *stubExtractor, analyzer *stubAnalyzer, publisher EventPublisher) IPipelineService {
	limiter := ratelimit.NewLimiter(600, 3, time.Millisecond, 5*time.Millisecond, nopLogger{})
	return NewPipelineService(
		repo,
		registry,
		extractor,
		redaction.NewRedactor(),
		analyzer,
		limiter,
		matcher.NewMatcher(),
		nil,
		publisher,
		nopLogger{},
	)
}

func waitForTerminal(t *testing.T, repo contract.SessionRepository, id uuid.UUID) *entity.AnalysisSession {
	t.Helper()
	var session *entity.AnalysisSession
	require.Eventually(t, func() bool {
		var err error
		session, err = repo.Get(context.Background(), id)
		return err == nil && session != nil && session.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return session
}

func TestPipelineCompletesWithPositions(t *testing.T) {
	repo := memory.NewSessionRepository(time.Hour)
	registry := tasks.NewRegistry()
	pipeline := newTestPipeline(repo, registry, &stubExtractor{extraction: leaseExtraction()}, &stubAnalyzer{result: leaseResult()}, nil)

	session, err := repo.Create(context.Background(), "lease.pdf", "", 0)
	require.NoError(t, err)

	pipeline.Start(session)
	final := waitForTerminal(t, repo, session.Id)

	assert.Equal(t, entity.SessionStatusComplete, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, "Analysis complete!", final.Message)
	assert.Empty(t, final.Error)

	require.NotNil(t, final.Result)
	require.Len(t, final.Result.Clauses, 3)
	assert.Equal(t, 1, final.Result.Clauses[0].PageNumber)
	assert.Equal(t, 2, final.Result.Clauses[1].PageNumber)
	for _, clause := range final.Result.Clauses {
		assert.NotZero(t, clause.Position, "clause %s", clause.ClauseId)
	}

	assert.Contains(t, final.MessageHistory, "Extracting text from document...")
	assert.Contains(t, final.MessageHistory, "Extracted 2 pages successfully")
	assert.Contains(t, final.MessageHistory, "Classified 3 clauses (2 flagged)")

	require.Eventually(t, func() bool { return registry.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestPipelineExtractionFailure(t *testing.T) {
	repo := memory.NewSessionRepository(time.Hour)
	registry := tasks.NewRegistry()
	pipeline := newTestPipeline(repo, registry, &stubExtractor{err: errors.New("encrypted PDF")}, &stubAnalyzer{}, nil)

	session, err := repo.Create(context.Background(), "broken.pdf", "", 0)
	require.NoError(t, err)

	pipeline.Start(session)
	final := waitForTerminal(t, repo, session.Id)

	assert.Equal(t, entity.SessionStatusError, final.Status)
	assert.Equal(t, 30, final.Progress)
	assert.Equal(t, "Failed to extract text from document", final.Message)
	assert.Equal(t, "encrypted PDF", final.Error)
	assert.Nil(t, final.Result)
}

func TestPipelineAnalysisFailure(t *testing.T) {
	repo := memory.NewSessionRepository(time.Hour)
	registry := tasks.NewRegistry()
	analyzer := &stubAnalyzer{errs: []error{errors.New("model returned malformed output")}}
	pipeline := newTestPipeline(repo, registry, &stubExtractor{extraction: leaseExtraction()}, analyzer, nil)

	session, err := repo.Create(context.Background(), "lease.pdf", "", 0)
	require.NoError(t, err)

	pipeline.Start(session)
	final := waitForTerminal(t, repo, session.Id)

	assert.Equal(t, entity.SessionStatusError, final.Status)
	assert.Equal(t, 60, final.Progress)
	assert.Equal(t, "Failed to analyze document with AI", final.Message)
	assert.Equal(t, 1, analyzer.calls)
}

func TestPipelineRetriesRateLimitedAnalysis(t *testing.T) {
	repo := memory.NewSessionRepository(time.Hour)
	registry := tasks.NewRegistry()
	analyzer := &stubAnalyzer{
		result: leaseResult(),
		errs:   []error{apperrors.NewRateLimitError(0), apperrors.NewRateLimitError(0)},
	}
	pipeline := newTestPipeline(repo, registry, &stubExtractor{extraction: leaseExtraction()}, analyzer, nil)

	session, err := repo.Create(context.Background(), "lease.pdf", "", 0)
	require.NoError(t, err)

	pipeline.Start(session)
	final := waitForTerminal(t, repo, session.Id)

	assert.Equal(t, entity.SessionStatusComplete, final.Status)
	assert.Equal(t, 3, analyzer.calls)
}

func TestPipelineProgressNeverRegresses(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out a full synthetic progress tick")
	}

	// The analyzer returns just after a synthetic progress tick fires, and
	// the recording repo slows that tick's store write, so a stale ticker
	// write races the post-analysis checkpoint unless the pipeline waits
	// the ticker out.
	repo := &recordingSessionRepo{
		SessionRepository: memory.NewSessionRepository(time.Hour),
		tickerDelay:       200 * time.Millisecond,
	}
	registry := tasks.NewRegistry()
	analyzer := &stubAnalyzer{result: leaseResult(), delay: analyzingTick + 100*time.Millisecond}
	pipeline := newTestPipeline(repo, registry, &stubExtractor{extraction: leaseExtraction()}, analyzer, nil)

	session, err := repo.Create(context.Background(), "lease.pdf", "", 0)
	require.NoError(t, err)

	pipeline.Start(session)
	final := waitForTerminal(t, repo, session.Id)
	require.Equal(t, entity.SessionStatusComplete, final.Status)

	recorded := repo.recorded()
	require.NotEmpty(t, recorded)
	for i := 1; i < len(recorded); i++ {
		assert.GreaterOrEqual(t, recorded[i], recorded[i-1],
			"progress regressed from %d to %d in %v", recorded[i-1], recorded[i], recorded)
	}
	assert.Equal(t, 100, recorded[len(recorded)-1])
}

func TestPipelinePublishesLifecycleEvents(t *testing.T) {
	repo := memory.NewSessionRepository(time.Hour)
	registry := tasks.NewRegistry()
	publisher := &stubEventPublisher{}
	pipeline := newTestPipeline(repo, registry, &stubExtractor{extraction: leaseExtraction()}, &stubAnalyzer{result: leaseResult()}, publisher)

	session, err := repo.Create(context.Background(), "lease.pdf", "", 0)
	require.NoError(t, err)

	pipeline.Start(session)
	final := waitForTerminal(t, repo, session.Id)
	require.Equal(t, entity.SessionStatusComplete, final.Status)

	require.Eventually(t, func() bool { return len(publisher.published()) > 0 }, time.Second, 10*time.Millisecond)
	assert.Contains(t, publisher.published(), events.EventSessionAnalyzed)
}

func TestPipelinePublishesFailureEvent(t *testing.T) {
	repo := memory.NewSessionRepository(time.Hour)
	registry := tasks.NewRegistry()
	publisher := &stubEventPublisher{}
	pipeline := newTestPipeline(repo, registry, &stubExtractor{err: errors.New("encrypted PDF")}, &stubAnalyzer{}, publisher)

	session, err := repo.Create(context.Background(), "broken.pdf", "", 0)
	require.NoError(t, err)

	pipeline.Start(session)
	final := waitForTerminal(t, repo, session.Id)
	require.Equal(t, entity.SessionStatusError, final.Status)

	require.Eventually(t, func() bool { return len(publisher.published()) > 0 }, time.Second, 10*time.Millisecond)
	assert.Contains(t, publisher.published(), events.EventSessionFailed)
	assert.NotContains(t, publisher.published(), events.EventSessionAnalyzed)
}

func TestPipelineCancellationStopsSilently(t *testing.T) {
	repo := memory.NewSessionRepository(time.Hour)
	registry := tasks.NewRegistry()
	pipeline := newTestPipeline(repo, registry, &stubExtractor{block: true}, &stubAnalyzer{}, nil)

	session, err := repo.Create(context.Background(), "lease.pdf", "", 0)
	require.NoError(t, err)

	pipeline.Start(session)

	// Wait until the pipeline is inside extraction, then cancel it.
	require.Eventually(t, func() bool {
		s, err := repo.Get(context.Background(), session.Id)
		return err == nil && s != nil && s.Status == entity.SessionStatusExtracting
	}, time.Second, 5*time.Millisecond)

	assert.True(t, registry.Cancel(session.Id))
	require.Eventually(t, func() bool { return registry.Count() == 0 }, time.Second, 5*time.Millisecond)

	// A cancelled pipeline never writes an error state.
	current, err := repo.Get(context.Background(), session.Id)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, entity.SessionStatusExtracting, current.Status)
	assert.Empty(t, current.Error)
}
