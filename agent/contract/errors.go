package contract

import "errors"

var (
	// ErrGeneration marks a failure of the decision/synthesis model call
	// itself. Fatal to the turn: the pipeline replies with a generic apology
	// and records the turn as failed.
	ErrGeneration = errors.New("generation failed")

	// ErrTransientUpstream marks a failed capability or store call. Absorbed
	// at the call site; never fatal to the turn.
	ErrTransientUpstream = errors.New("transient upstream failure")

	ErrSchemaViolation   = errors.New("model response violates schema")
	ErrValidation        = errors.New("validation failed")
	ErrPromptMissing     = errors.New("required prompt is missing")
	ErrUnknownCapability = errors.New("unknown capability")
)
