package models

// Sentiment and impact labels accepted from the analysis provider.
const (
	SentimentPositive = "Positivo"
	SentimentNegative = "Negativo"
	SentimentNeutral  = "Neutro"
	SentimentMixed    = "Misto"

	ImpactLow    = "Baixo"
	ImpactMedium = "Médio"
	ImpactHigh   = "Alto"

	// NotAvailable marks fields of a fallback result that no model produced.
	NotAvailable = "N/A"
)

var (
	Sentiments = []string{SentimentPositive, SentimentNegative, SentimentNeutral, SentimentMixed}
	Impacts    = []string{ImpactLow, ImpactMedium, ImpactHigh}
)

// AnalysisResult is the structured verdict for one monitored page.
type AnalysisResult struct {
	Sentiment string   `json:"sentiment"`
	Impact    string   `json:"impact"`
	Summary   string   `json:"summary"`
	Keywords  []string `json:"keywords"`
}
