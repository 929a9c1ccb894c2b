// Package models contains shared data models used across the Watchtower codebase.
package models

import (
	"context"
	"errors"
)

// Provider-level failures. Providers wrap the underlying cause with one of these.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// AIProvider is the core interface that all generative-AI integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type AIProvider interface {
	// Generate runs a single completion. When the call reached the provider,
	// the returned response carries whatever usage was reported, even alongside an error.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string
}

// GenerateRequest is the input to a single provider call.
type GenerateRequest struct {
	SystemInstruction string
	Content           string
	// Schema constrains the response to JSON matching it. Nil means free text.
	Schema      *Schema
	Temperature float32
	// Grounded augments the call with live web search where the provider supports it.
	Grounded bool
}

// GenerateResponse is the raw provider output plus reported token usage.
type GenerateResponse struct {
	Text  string
	Model string
	Usage Usage
}

// Usage is the provider-reported token consumption of one call.
type Usage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
}

type SchemaType string

const (
	SchemaObject SchemaType = "object"
	SchemaString SchemaType = "string"
	SchemaArray  SchemaType = "array"
)

// Schema is a provider-neutral JSON schema subset. Providers translate it
// into their native structured-output format.
type Schema struct {
	Type        SchemaType
	Description string
	Enum        []string
	Properties  map[string]*Schema
	Items       *Schema
	// Required also fixes property ordering for providers that honour it.
	Required []string
}
