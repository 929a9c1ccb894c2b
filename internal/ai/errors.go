package ai

import (
	"errors"

	"github.com/kiranshivaraju/watchtower/pkg/models"
)

var (
	ErrProviderUnavailable = models.ErrProviderUnavailable
	ErrInferenceTimeout    = models.ErrInferenceTimeout
	ErrInvalidResponse     = models.ErrInvalidResponse
	ErrSchemaViolation     = errors.New("ai response violates output schema")
	ErrEmptyQuery          = errors.New("search query is empty")
)
