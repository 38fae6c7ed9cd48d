package wizard

import (
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/validation"
	"go.uber.org/zap"
)

// ValidateFunc validates the raw input of a single step.
type ValidateFunc func(raw map[string]any) validation.Result

// Observer receives the snapshot produced by every state change.
type Observer func(Snapshot)

// Option configures the engine.
type Option func(*Engine)

// WithValidator overrides the schema validator of one step.
func WithValidator(stepKey string, fn ValidateFunc) Option {
	return func(e *Engine) {
		if fn == nil {
			return
		}
		if e.validators == nil {
			e.validators = make(map[string]ValidateFunc)
		}
		e.validators[stepKey] = fn
	}
}

// WithValidationOptions passes options to the default schema validator.
func WithValidationOptions(opts ...validation.Option) Option {
	return func(e *Engine) {
		e.validationOpts = append(e.validationOpts, opts...)
	}
}

// WithObserver registers a callback invoked after every transition, back,
// reset and failed validation. Observers run outside the engine lock.
func WithObserver(fn Observer) Option {
	return func(e *Engine) {
		if fn != nil {
			e.observers = append(e.observers, fn)
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithInitialState seeds previously stored step records, for example when
// resuming a session.
func WithInitialState(state model.FormState) Option {
	return func(e *Engine) {
		e.state = state.Clone()
	}
}
