package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// Validator validates configuration values.
type Validator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements Validator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a Validator instance.
func NewValidator() Validator {
	return &validatorImpl{validate: validator.New()}
}

// Validate validates the configuration and returns detailed error
// messages.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "configuration is nil")
	}

	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return types.WrapError(types.CONFIG_VALIDATION_FAILED, "validation error", err)
		}

		messages := make([]string, 0, len(validationErrs))
		for _, e := range validationErrs {
			messages = append(messages, formatValidationError(e))
		}
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED,
			"configuration validation failed:\n  - %s", strings.Join(messages, "\n  - "))
	}

	// Interval fields must be positive; zero would spin the polling
	// loops hot.
	if cfg.Orchestrator.PollInterval <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"configuration validation failed:\n  - orchestrator.poll_interval must be positive")
	}
	if cfg.Engine.ResourceBackoff <= 0 || cfg.Engine.IdleInterval <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"configuration validation failed:\n  - engine intervals must be positive")
	}
	return nil
}

// formatValidationError formats a single validation error with field
// path and details.
func formatValidationError(e validator.FieldError) string {
	fieldPath := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldPath)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fieldPath, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", fieldPath, e.Tag(), e.Value())
	}
}

// formatFieldPath converts a validator namespace to a readable path.
// Example: "Config.Orchestrator.MaxAgents" -> "orchestrator.max_agents"
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}

	result := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		result = append(result, camelToSnake(parts[i]))
	}
	return strings.Join(result, ".")
}

// camelToSnake converts CamelCase to snake_case.
func camelToSnake(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
