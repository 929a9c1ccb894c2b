package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/watchtower/internal/config"
	"github.com/kiranshivaraju/watchtower/pkg/models"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Provider implements models.AIProvider against any OpenAI-compatible
// chat completions endpoint (OpenAI, Ollama, vLLM).
type Provider struct {
	client *openai.Client
	name   string
	model  string
}

// NewProvider creates a provider reported under name. An empty BaseURL targets api.openai.com.
func NewProvider(name string, cfg config.OpenAIConfig) *Provider {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Provider{
		client: openai.NewClientWithConfig(oc),
		name:   name,
		model:  cfg.Model,
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Generate(ctx context.Context, req models.GenerateRequest) (models.GenerateResponse, error) {
	out := models.GenerateResponse{Model: p.model}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemInstruction})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Content})

	ccr := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.Schema != nil {
		def := toDefinition(req.Schema)
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "analysis_result",
				Schema: &def,
				Strict: true,
			},
		}
	}
	if req.Grounded {
		slog.Debug("grounded generation not supported, running ungrounded", "provider", p.name)
	}

	resp, err := p.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return out, classifyError(ctx, err)
	}

	out.Usage = models.Usage{TokensIn: resp.Usage.PromptTokens, TokensOut: resp.Usage.CompletionTokens}
	if resp.Model != "" {
		out.Model = resp.Model
	}
	if len(resp.Choices) == 0 {
		return out, fmt.Errorf("%w: no choices", models.ErrInvalidResponse)
	}

	out.Text = resp.Choices[0].Message.Content
	if out.Text == "" {
		return out, fmt.Errorf("%w: empty response", models.ErrInvalidResponse)
	}
	return out, nil
}

// toDefinition translates the provider-neutral schema. Strict mode requires
// closed objects, so additionalProperties is always false.
func toDefinition(s *models.Schema) jsonschema.Definition {
	def := jsonschema.Definition{
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	switch s.Type {
	case models.SchemaObject:
		def.Type = jsonschema.Object
		def.AdditionalProperties = false
		def.Properties = make(map[string]jsonschema.Definition, len(s.Properties))
		for name, prop := range s.Properties {
			def.Properties[name] = toDefinition(prop)
		}
	case models.SchemaArray:
		def.Type = jsonschema.Array
		if s.Items != nil {
			items := toDefinition(s.Items)
			def.Items = &items
		}
	default:
		def.Type = jsonschema.String
	}
	return def
}

func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", models.ErrProviderUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.AIProvider = (*Provider)(nil)
