package ai

import (
	"strings"

	"github.com/kiranshivaraju/watchtower/pkg/models"
)

const defaultPersona = `You are a senior market-intelligence analyst monitoring public web pages on behalf of a client.
Read the page content you are given and assess what it means for the client.
Write the summary as a single sentence in Brazilian Portuguese.`

const defaultRestrictions = `Restrictions:
- Use only facts present in the provided content. Do not speculate or invent figures, names or dates.
- Ignore navigation menus, cookie banners, advertisements and unrelated boilerplate.
- If the content is unrelated to the keywords, classify sentiment as "Neutro" and impact as "Baixo".
- Respond only with the requested JSON object.`

// fallbackSummary is used whenever no model produced the result.
const fallbackSummary = "Automated analysis is not available for this item."

// AnalysisSchema is the output contract every analysis call is constrained to.
func AnalysisSchema() *models.Schema {
	return &models.Schema{
		Type: models.SchemaObject,
		Properties: map[string]*models.Schema{
			"sentiment": {
				Type:        models.SchemaString,
				Description: "Overall tone of the content towards the client's interests.",
				Enum:        models.Sentiments,
			},
			"impact": {
				Type:        models.SchemaString,
				Description: "Expected business impact for the client.",
				Enum:        models.Impacts,
			},
			"summary": {
				Type:        models.SchemaString,
				Description: "One-sentence summary of the content.",
			},
			"keywords": {
				Type:        models.SchemaArray,
				Description: "Monitored keywords or closely related terms found in the content.",
				Items:       &models.Schema{Type: models.SchemaString},
			},
		},
		Required: []string{"sentiment", "impact", "summary", "keywords"},
	}
}

// SystemInstruction composes the tenant persona, restriction block and keyword
// context. Unset overrides fall back to the built-in defaults.
func SystemInstruction(p models.PromptOverrides, keywords []string) string {
	base := strings.TrimSpace(p.BasePrompt)
	if base == "" {
		base = defaultPersona
	}
	restrictions := strings.TrimSpace(p.NegativePrompt)
	if restrictions == "" {
		restrictions = defaultRestrictions
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	b.WriteString(restrictions)
	if len(keywords) > 0 {
		b.WriteString("\n\nMonitored keywords: ")
		b.WriteString(strings.Join(keywords, ", "))
	}
	return b.String()
}

// Fallback is the deterministic result used when analysis is not entitled or failed.
func Fallback(keywords []string) models.AnalysisResult {
	kw := make([]string, len(keywords))
	copy(kw, keywords)
	return models.AnalysisResult{
		Sentiment: models.NotAvailable,
		Impact:    models.NotAvailable,
		Summary:   fallbackSummary,
		Keywords:  kw,
	}
}
