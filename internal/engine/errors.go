package engine

import "errors"

// Common engine errors.
var (
	// ErrInvalidConfig is returned when an engine implementation is
	// constructed with incomplete or invalid configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrEmptyQuestion is returned when Compute is called with empty
	// text.
	ErrEmptyQuestion = errors.New("question text cannot be empty")

	// ErrEmptyResponse is returned when the underlying model returns
	// no usable answer.
	ErrEmptyResponse = errors.New("engine returned an empty response")

	// ErrGenerationFailed is returned when the underlying model call
	// fails after exhausting retries.
	ErrGenerationFailed = errors.New("answer generation failed")
)
