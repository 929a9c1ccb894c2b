package ai

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/internal/entitlement"
	"github.com/kiranshivaraju/watchtower/pkg/models"
)

// AnalyzeRequest is the input for one page analysis.
type AnalyzeRequest struct {
	TenantID uuid.UUID
	Text     string
	Keywords []string
	Prompts  models.PromptOverrides
}

// Outcome is the result of Analyze: Analyzed, NotEntitled or Failed.
// Every variant carries a usable result.
type Outcome interface {
	Analysis() models.AnalysisResult
	isOutcome()
}

// Analyzed is a provider result that satisfied the output schema.
type Analyzed struct {
	Result models.AnalysisResult
	Usage  models.Usage
	Model  string
}

// NotEntitled is the zero-cost fallback for tenants without the capability.
type NotEntitled struct {
	Result models.AnalysisResult
	Reason string
}

// Failed is the fallback after a provider error or schema violation.
// Fallback results are never billed; Reported holds whatever the provider
// reported before failing, for operators only.
type Failed struct {
	Result   models.AnalysisResult
	Reported models.Usage
	Err      error
}

func (o Analyzed) Analysis() models.AnalysisResult    { return o.Result }
func (o NotEntitled) Analysis() models.AnalysisResult { return o.Result }
func (o Failed) Analysis() models.AnalysisResult      { return o.Result }

func (Analyzed) isOutcome()    {}
func (NotEntitled) isOutcome() {}
func (Failed) isOutcome()      {}

// Analyzer is the analysis adapter between the pipeline and the AI provider.
type Analyzer struct {
	provider    models.AIProvider
	timeout     time.Duration
	temperature float32
}

func NewAnalyzer(provider models.AIProvider, timeout time.Duration, temperature float32) *Analyzer {
	return &Analyzer{provider: provider, timeout: timeout, temperature: temperature}
}

// Analyze runs the provider when the decision is Entitled and substitutes the
// deterministic fallback otherwise. It never returns an error.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest, decision entitlement.Decision) Outcome {
	switch d := decision.(type) {
	case entitlement.Entitled:
	case entitlement.NotEntitled:
		return NotEntitled{Result: Fallback(req.Keywords), Reason: d.Reason}
	default:
		return NotEntitled{Result: Fallback(req.Keywords), Reason: "unknown entitlement decision"}
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.provider.Generate(callCtx, models.GenerateRequest{
		SystemInstruction: SystemInstruction(req.Prompts, req.Keywords),
		Content:           req.Text,
		Schema:            AnalysisSchema(),
		Temperature:       a.temperature,
	})
	if err != nil {
		slog.Warn("analysis provider call failed",
			"tenant_id", req.TenantID,
			"provider", a.provider.Name(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return Failed{Result: Fallback(req.Keywords), Reported: resp.Usage, Err: err}
	}

	result, err := ParseAnalysis(resp.Text)
	if err != nil {
		slog.Warn("analysis response rejected",
			"tenant_id", req.TenantID,
			"provider", a.provider.Name(),
			"error", err,
		)
		return Failed{Result: Fallback(req.Keywords), Reported: resp.Usage, Err: err}
	}

	slog.Debug("analysis completed",
		"tenant_id", req.TenantID,
		"provider", a.provider.Name(),
		"model", resp.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"tokens_in", resp.Usage.TokensIn,
		"tokens_out", resp.Usage.TokensOut,
	)
	return Analyzed{Result: result, Usage: resp.Usage, Model: resp.Model}
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
