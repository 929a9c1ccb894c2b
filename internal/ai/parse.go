package ai

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/kiranshivaraju/watchtower/pkg/models"
)

const maxSummaryBytes = 2000

// ParseAnalysis decodes a provider response into an AnalysisResult. A markdown
// code fence around the JSON is tolerated. Any deviation from AnalysisSchema
// is reported as ErrSchemaViolation.
func ParseAnalysis(raw string) (models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(stripFence(raw)), &result); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	if !slices.Contains(models.Sentiments, result.Sentiment) {
		return models.AnalysisResult{}, fmt.Errorf("%w: sentiment %q", ErrSchemaViolation, result.Sentiment)
	}
	if !slices.Contains(models.Impacts, result.Impact) {
		return models.AnalysisResult{}, fmt.Errorf("%w: impact %q", ErrSchemaViolation, result.Impact)
	}
	result.Summary = strings.TrimSpace(result.Summary)
	if result.Summary == "" {
		return models.AnalysisResult{}, fmt.Errorf("%w: empty summary", ErrSchemaViolation)
	}
	result.Summary = truncateString(result.Summary, maxSummaryBytes)
	if result.Keywords == nil {
		result.Keywords = []string{}
	}
	return result, nil
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
