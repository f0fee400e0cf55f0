package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-docreview-be/internal/constant"
	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/apperrors"
)

type geminiParts struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []*geminiParts `json:"parts"`
	Role  string         `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []*geminiContent        `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content *geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []*geminiCandidate `json:"candidates"`
}

// geminiAnalysisPayload is the JSON shape the analysis prompt instructs
// the model to return. Validated at this boundary before it becomes an
// entity.AnalysisResult.
type geminiAnalysisPayload struct {
	DocumentType string                `json:"document_type"`
	Summary      string                `json:"summary"`
	TopConcerns  []string              `json:"top_concerns"`
	Clauses      []geminiClausePayload `json:"clauses"`
}

type geminiClausePayload struct {
	ClauseId          string             `json:"clause_id"`
	Text              string             `json:"text"`
	PlainLanguage     string             `json:"plain_language"`
	Category          string             `json:"category"`
	Severity          string             `json:"severity"`
	TypicalComparison string             `json:"typical_comparison"`
	Suggestion        string             `json:"suggestion"`
	PageNumber        int                `json:"page_number"`
	Position          entity.BoundingBox `json:"position"`
}

type GeminiProvider struct {
	ApiKey string
	Model  string
	client *http.Client
}

func NewGeminiProvider(apiKey, model string) (Analyzer, error) {
	if apiKey == "" {
		return nil, apperrors.NewConfigurationError("GOOGLE_GEMINI_API_KEY not configured")
	}
	return &GeminiProvider{
		ApiKey: apiKey,
		Model:  model,
		client: &http.Client{Timeout: 180 * time.Second},
	}, nil
}

func (p *GeminiProvider) Analyze(ctx context.Context, documentText, documentName string) (*entity.AnalysisResult, error) {
	prompt := constant.AnalysisSystemPromptV1 + "\n\n" +
		fmt.Sprintf(constant.AnalysisUserPromptV1, documentName, documentText)

	payload := geminiRequest{
		Contents: []*geminiContent{
			{Parts: []*geminiParts{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			Temperature:      0.1, // Low temperature for consistent analysis
			MaxOutputTokens:  8192,
		},
	}
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1/models/%s:generateContent",
		p.Model,
	)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.NewAnalysisError(fmt.Sprintf("gemini call failed: %v", err), "")
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("gemini quota exhausted: %w", apperrors.NewRateLimitError(30))
	}
	if res.StatusCode != http.StatusOK {
		return nil, apperrors.NewAnalysisError(
			fmt.Sprintf("gemini returned status %d: %s", res.StatusCode, string(resBody)), "")
	}

	var geminiRes geminiResponse
	if err := json.Unmarshal(resBody, &geminiRes); err != nil {
		return nil, apperrors.NewAnalysisError(fmt.Sprintf("malformed gemini response: %v", err), "")
	}
	if len(geminiRes.Candidates) == 0 ||
		geminiRes.Candidates[0].Content == nil ||
		len(geminiRes.Candidates[0].Content.Parts) == 0 {
		return nil, apperrors.NewAnalysisError("gemini returned no candidates", "")
	}

	return buildResult(geminiRes.Candidates[0].Content.Parts[0].Text, documentName)
}

// stripCodeFences removes markdown fences the model sometimes wraps its
// JSON in despite the response mime type.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func buildResult(responseText, documentName string) (*entity.AnalysisResult, error) {
	var payload geminiAnalysisPayload
	if err := json.Unmarshal([]byte(stripCodeFences(responseText)), &payload); err != nil {
		return nil, apperrors.NewAnalysisError(fmt.Sprintf("failed to parse AI response: %v", err), "")
	}

	clauses := make([]entity.Clause, 0, len(payload.Clauses))
	categoryCounts := make(map[string]int)
	flagged := 0

	for i, c := range payload.Clauses {
		if c.ClauseId == "" {
			c.ClauseId = fmt.Sprintf("clause_%d", i+1)
		}
		if c.Category == "" {
			c.Category = string(entity.CategoryStandard)
		}
		if c.Severity == "" {
			c.Severity = "info"
		}
		if c.PageNumber < 1 {
			c.PageNumber = 1
		}

		clause := entity.Clause{
			ClauseId:          c.ClauseId,
			Text:              c.Text,
			PlainLanguage:     c.PlainLanguage,
			Category:          entity.ClauseCategory(c.Category),
			Severity:          c.Severity,
			TypicalComparison: c.TypicalComparison,
			Suggestion:        c.Suggestion,
			PageNumber:        c.PageNumber,
			Position:          c.Position,
		}
		clauses = append(clauses, clause)

		categoryCounts[c.Category]++
		if clause.Category != entity.CategoryStandard {
			flagged++
		}
	}

	docType := payload.DocumentType
	if docType == "" {
		docType = "other"
	}

	topConcerns := payload.TopConcerns
	if len(topConcerns) > 5 {
		topConcerns = topConcerns[:5]
	}

	return &entity.AnalysisResult{
		DocumentName:   documentName,
		DocumentType:   docType,
		TotalClauses:   len(clauses),
		FlaggedClauses: flagged,
		Clauses:        clauses,
		Summary:        payload.Summary,
		TopConcerns:    topConcerns,
		CategoryCounts: categoryCounts,
	}, nil
}
