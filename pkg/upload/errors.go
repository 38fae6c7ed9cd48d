package upload

import (
	"errors"
	"fmt"
)

// Rejection reasons reported by RejectedError.
const (
	ReasonTooLarge        = "too large"
	ReasonUnsupportedType = "unsupported type"
	ReasonEmpty           = "empty file"
)

var (
	// ErrClosed is returned when a stager is used after Close.
	ErrClosed = errors.New("upload: stager is closed")
	// ErrPreviewNotFound is returned for unknown or released preview handles.
	ErrPreviewNotFound = errors.New("upload: preview not found")
)

// RejectedError reports a file that failed client-side constraints. A
// rejection never disturbs the upload already staged.
type RejectedError struct {
	Reason   string
	FileName string
	Detail   string
}

// Error implements error.
func (e *RejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("upload: %s rejected: %s (%s)", e.FileName, e.Reason, e.Detail)
	}
	return fmt.Sprintf("upload: %s rejected: %s", e.FileName, e.Reason)
}
