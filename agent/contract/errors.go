package contract

import "errors"

var (
	ErrModelInvoke        = errors.New("model invoke failed")
	ErrSchemaViolation    = errors.New("model response violates schema")
	ErrPromptMissing      = errors.New("required prompt is missing")
	ErrValidation         = errors.New("validation failed")
	ErrMalformedDirective = errors.New("structured directive is malformed")
	ErrEmptyResponse      = errors.New("model returned an empty response")
	ErrToolInvocation     = errors.New("tool call machinery failed")
	ErrConfiguration      = errors.New("agent configuration is invalid")
)
