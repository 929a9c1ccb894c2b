package ai

import (
	"strings"
	"testing"

	"github.com/kiranshivaraju/watchtower/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{"sentiment":"Negativo","impact":"Alto","summary":"A Acme anunciou demissões.","keywords":["acme","demissões"]}`

func TestParseAnalysis_Plain(t *testing.T) {
	result, err := ParseAnalysis(validJSON)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisResult{
		Sentiment: models.SentimentNegative,
		Impact:    models.ImpactHigh,
		Summary:   "A Acme anunciou demissões.",
		Keywords:  []string{"acme", "demissões"},
	}, result)
}

func TestParseAnalysis_FencedMatchesPlain(t *testing.T) {
	plain, err := ParseAnalysis(validJSON)
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"json fence", "```json\n" + validJSON + "\n```"},
		{"bare fence", "```\n" + validJSON + "\n```"},
		{"fence with padding", "  \n```json\n" + validJSON + "\n```\n  "},
		{"single line fence", "```" + validJSON + "```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fenced, err := ParseAnalysis(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, plain, fenced)
		})
	}
}

func TestParseAnalysis_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "The sentiment is positive."},
		{"truncated", `{"sentiment":"Positivo"`},
		{"unknown sentiment", `{"sentiment":"Happy","impact":"Alto","summary":"s","keywords":[]}`},
		{"unknown impact", `{"sentiment":"Positivo","impact":"Huge","summary":"s","keywords":[]}`},
		{"missing summary", `{"sentiment":"Positivo","impact":"Alto","keywords":[]}`},
		{"fallback marker", `{"sentiment":"N/A","impact":"N/A","summary":"s","keywords":[]}`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAnalysis(tt.raw)
			assert.ErrorIs(t, err, ErrSchemaViolation)
		})
	}
}

func TestParseAnalysis_NilKeywordsBecomeEmpty(t *testing.T) {
	result, err := ParseAnalysis(`{"sentiment":"Misto","impact":"Médio","summary":"s"}`)
	require.NoError(t, err)
	assert.NotNil(t, result.Keywords)
	assert.Empty(t, result.Keywords)
}

func TestParseAnalysis_TruncatesSummary(t *testing.T) {
	long := strings.Repeat("a", maxSummaryBytes+100)
	result, err := ParseAnalysis(`{"sentiment":"Neutro","impact":"Baixo","summary":"` + long + `","keywords":[]}`)
	require.NoError(t, err)
	assert.Len(t, result.Summary, maxSummaryBytes)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "{}", stripFence("```json\n{}\n```"))
	assert.Equal(t, "{}", stripFence("{}"))
	assert.Equal(t, "{}", stripFence("  {}  "))
}
