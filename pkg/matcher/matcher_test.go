package matcher

import (
	"fmt"
	"strings"
	"testing"

	"ai-docreview-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageFromText lays words out left to right at a fixed row so expected
// union boxes are easy to compute: word i occupies x [i*50, i*50+40].
func pageFromText(pageNumber int, text string) entity.Page {
	fields := strings.Fields(text)
	words := make([]entity.Word, len(fields))
	for i, f := range fields {
		words[i] = entity.Word{
			Text: f,
			BBox: entity.BoundingBox{
				X1: float64(i * 50),
				Y1: 100,
				X2: float64(i*50 + 40),
				Y2: 112,
			},
			PageNumber: pageNumber,
		}
	}
	return entity.Page{PageNumber: pageNumber, Text: text, Words: words}
}

func TestLocateExactClause(t *testing.T) {
	m := NewMatcher()
	page := pageFromText(1, "the security deposit refundable within thirty days after termination")

	match := m.Locate("Security deposit refundable within thirty days after termination.", []entity.Page{page})

	require.True(t, match.Found)
	assert.Equal(t, 1, match.PageNumber)
	assert.GreaterOrEqual(t, match.Score, 0.9)

	// "the" is a stop word, so the union covers words 1 through 8 only.
	assert.Equal(t, 50.0, match.Position.X1)
	assert.Equal(t, 440.0, match.Position.X2)
	assert.Equal(t, 100.0, match.Position.Y1)
	assert.Equal(t, 112.0, match.Position.Y2)
}

func TestLocateFindsCorrectPage(t *testing.T) {
	m := NewMatcher()
	pages := []entity.Page{
		pageFromText(1, "landlord agrees provide heating plumbing electricity throughout lease term"),
		pageFromText(2, "tenant forfeits entire deposit immediately upon missing single payment"),
	}

	match := m.Locate("Tenant forfeits entire deposit immediately upon missing single payment", pages)

	require.True(t, match.Found)
	assert.Equal(t, 2, match.PageNumber)
}

func TestLocateParaphrasedClause(t *testing.T) {
	m := NewMatcher()
	page := pageFromText(1, "lessee must remit monthly rent payment before fifth calendar day penalty accrues daily thereafter")

	// Partial overlap: shares most scoring words but not all.
	match := m.Locate("Lessee must remit monthly rent payment before tenth day", []entity.Page{page})

	require.True(t, match.Found)
	assert.Equal(t, 1, match.PageNumber)
	assert.GreaterOrEqual(t, match.Score, 0.5)
}

func TestLocateTooFewScoringWords(t *testing.T) {
	m := NewMatcher()
	page := pageFromText(1, "some arbitrary page content here")

	tests := []string{
		"",
		"the and",
		"it is a",
		"payment",
	}
	for _, clause := range tests {
		match := m.Locate(clause, []entity.Page{page})
		assert.False(t, match.Found, "clause %q", clause)
		assert.Equal(t, 1, match.PageNumber)
		assert.Equal(t, entity.BoundingBox{X1: 72, Y1: 72, X2: 540, Y2: 120}, match.Position)
	}
}

func TestLocateNoAcceptableMatch(t *testing.T) {
	m := NewMatcher()
	page := pageFromText(1, "completely unrelated document about gardening vegetables tomatoes")

	match := m.Locate("Arbitration venue exclusively jurisdiction Delaware courts", []entity.Page{page})

	assert.False(t, match.Found)
	assert.Equal(t, 1, match.PageNumber)
	assert.Equal(t, entity.BoundingBox{X1: 72, Y1: 72, X2: 540, Y2: 120}, match.Position)
}

func TestAttachPositions(t *testing.T) {
	m := NewMatcher()
	pages := []entity.Page{
		pageFromText(1, "security deposit refundable within thirty days after termination"),
		pageFromText(2, "tenant waives right jury trial disputes arising under agreement"),
	}

	result := &entity.AnalysisResult{
		Clauses: []entity.Clause{
			{ClauseId: "clause_1", Text: "Security deposit refundable within thirty days after termination"},
			{ClauseId: "clause_2", Text: "Tenant waives right jury trial disputes arising under agreement"},
			{ClauseId: "clause_3", Text: "Entirely absent clause about helicopter maintenance schedules"},
		},
	}

	m.AttachPositions(result, pages)

	assert.Equal(t, 1, result.Clauses[0].PageNumber)
	assert.Equal(t, 2, result.Clauses[1].PageNumber)
	// Unlocatable clauses still get a nominal placement.
	assert.Equal(t, 1, result.Clauses[2].PageNumber)
	for i, c := range result.Clauses {
		assert.NotZero(t, c.Position, fmt.Sprintf("clause %d", i))
	}
}

func TestAttachPositionsNilResult(t *testing.T) {
	m := NewMatcher()
	assert.NotPanics(t, func() {
		m.AttachPositions(nil, nil)
	})
}
