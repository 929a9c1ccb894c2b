package gemini_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/watchtower/internal/ai/gemini"
	"github.com/kiranshivaraju/watchtower/internal/config"
	"github.com/kiranshivaraju/watchtower/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `{
  "candidates": [{"content": {"role": "model", "parts": [{"text": "{\"sentiment\":\"Neutro\"}"}]}, "finishReason": "STOP"}],
  "usageMetadata": {"promptTokenCount": 120, "candidatesTokenCount": 30, "totalTokenCount": 150},
  "modelVersion": "gemini-2.5-flash-001"
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *gemini.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := gemini.NewProvider(context.Background(), config.GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-2.5-flash",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	return p
}

func TestProvider_Name(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {})
	assert.Equal(t, "gemini", p.Name())
}

func TestGenerate_Success(t *testing.T) {
	var body map[string]any
	var path string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okResponse))
	})

	resp, err := p.Generate(context.Background(), models.GenerateRequest{
		SystemInstruction: "You are an analyst.",
		Content:           "page text",
		Temperature:       0.2,
		Schema: &models.Schema{
			Type:       models.SchemaObject,
			Properties: map[string]*models.Schema{"sentiment": {Type: models.SchemaString, Enum: models.Sentiments}},
			Required:   []string{"sentiment"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"sentiment":"Neutro"}`, resp.Text)
	assert.Equal(t, "gemini-2.5-flash-001", resp.Model)
	assert.Equal(t, models.Usage{TokensIn: 120, TokensOut: 30}, resp.Usage)

	assert.True(t, strings.HasSuffix(path, "models/gemini-2.5-flash:generateContent"), path)
	gen, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok, "generationConfig should be sent")
	assert.Equal(t, "application/json", gen["responseMimeType"])
	assert.NotNil(t, gen["responseSchema"])
	assert.NotNil(t, body["systemInstruction"])
	assert.Nil(t, body["tools"])
}

func TestGenerate_GroundedAddsSearchTool(t *testing.T) {
	var body map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okResponse))
	})

	_, err := p.Generate(context.Background(), models.GenerateRequest{Content: "latest news", Grounded: true})
	require.NoError(t, err)

	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	assert.Contains(t, tools[0], "googleSearch")
}

func TestGenerate_NoCandidates(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [], "usageMetadata": {"promptTokenCount": 10}}`))
	})

	resp, err := p.Generate(context.Background(), models.GenerateRequest{Content: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidResponse)
	assert.Equal(t, 10, resp.Usage.TokensIn)
}

func TestGenerate_APIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "bad request", "status": "INVALID_ARGUMENT"}}`))
	})

	_, err := p.Generate(context.Background(), models.GenerateRequest{Content: "x"})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestGenerate_Timeout(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Generate(ctx, models.GenerateRequest{Content: "x"})
	assert.ErrorIs(t, err, models.ErrInferenceTimeout)
}
