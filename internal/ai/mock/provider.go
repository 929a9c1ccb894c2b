package mock

import (
	"context"
	"encoding/json"

	"github.com/kiranshivaraju/watchtower/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing and local development.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.GenerateRequest) (models.GenerateResponse, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Generate(ctx context.Context, req models.GenerateRequest) (models.GenerateResponse, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return models.GenerateResponse{}, nil
}

// NewMockProvider returns a MockProvider that answers schema-constrained
// requests with a fixed neutral analysis and free-text requests with a canned answer.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, req models.GenerateRequest) (models.GenerateResponse, error) {
			usage := models.Usage{TokensIn: len(req.SystemInstruction+req.Content) / 4, TokensOut: 32}
			if req.Schema == nil {
				return models.GenerateResponse{Text: "Mock answer for testing", Model: "mock-v1", Usage: usage}, nil
			}
			body, _ := json.Marshal(models.AnalysisResult{
				Sentiment: models.SentimentNeutral,
				Impact:    models.ImpactLow,
				Summary:   "Mock analysis summary for testing",
				Keywords:  []string{"mock"},
			})
			return models.GenerateResponse{Text: string(body), Model: "mock-v1", Usage: usage}, nil
		},
	}
}

// NewStaticProvider returns a MockProvider that always answers with text and usage.
func NewStaticProvider(text string, usage models.Usage) *MockProvider {
	return &MockProvider{
		Name_: "mock-static",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.GenerateResponse, error) {
			return models.GenerateResponse{Text: text, Model: "mock-v1", Usage: usage}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.GenerateResponse, error) {
			return models.GenerateResponse{}, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ models.GenerateRequest) (models.GenerateResponse, error) {
			<-ctx.Done()
			return models.GenerateResponse{}, models.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
