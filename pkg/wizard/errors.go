package wizard

import "errors"

var (
	// ErrNoSteps is returned when an engine is built without steps.
	ErrNoSteps = errors.New("wizard: at least one step is required")
	// ErrStepMismatch signals input submitted for a step that is not current.
	ErrStepMismatch = errors.New("wizard: step is not the current step")
	// ErrUnknownStep signals a step key the engine does not own.
	ErrUnknownStep = errors.New("wizard: unknown step")
)
