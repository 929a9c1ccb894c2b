package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents a subscribing account. Every other entity belongs to a tenant.
type Tenant struct {
	ID               uuid.UUID `db:"id"                 json:"id"`
	Name             string    `db:"name"               json:"name"`
	AIBasePrompt     *string   `db:"ai_base_prompt"     json:"ai_base_prompt,omitempty"`
	AINegativePrompt *string   `db:"ai_negative_prompt" json:"ai_negative_prompt,omitempty"`
	CreatedAt        time.Time `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"         json:"updated_at"`
}

// PromptOverrides are the tenant-authored pieces of the analysis system instruction.
// Empty fields fall back to the built-in defaults.
type PromptOverrides struct {
	BasePrompt     string
	NegativePrompt string
}

// Prompts returns the tenant's overrides with unset columns as empty strings.
func (t *Tenant) Prompts() PromptOverrides {
	var p PromptOverrides
	if t.AIBasePrompt != nil {
		p.BasePrompt = *t.AIBasePrompt
	}
	if t.AINegativePrompt != nil {
		p.NegativePrompt = *t.AINegativePrompt
	}
	return p
}
