package prompt

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C) or cancelled
	// the wizard.
	ErrAborted = errors.New("prompt: aborted")
	// ErrNoSession is returned when Run is called without a session.
	ErrNoSession = errors.New("prompt: session is required")
)
