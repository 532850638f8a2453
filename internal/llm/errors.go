package llm

import "errors"

var (
	// ErrNotConfigured means no provider credentials were found.
	ErrNotConfigured = errors.New("llm: not configured")
	// ErrInvalidOutput means a completion could not be decoded into, or failed validation
	// against, the requested shape.
	ErrInvalidOutput = errors.New("llm: invalid structured output")
	// ErrEmptyOutput means the provider answered without any content.
	ErrEmptyOutput = errors.New("llm: empty completion")
)
