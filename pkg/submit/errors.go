package submit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrMissingUpload is carried by OutcomeMissingInput outcomes.
	ErrMissingUpload = errors.New("submit: a staged upload is required")
	// ErrNoCollaborator signals a coordinator call without upload or create.
	ErrNoCollaborator = errors.New("submit: upload and create collaborators are required")
)

// CollisionError reports a field name stored by more than one step. It is a
// configuration error: steps are expected to own disjoint fields.
type CollisionError struct {
	Field string
	Steps []string
}

// Error implements error.
func (e *CollisionError) Error() string {
	steps := append([]string(nil), e.Steps...)
	sort.Strings(steps)
	return fmt.Sprintf("submit: field %q is stored by steps %s", e.Field, strings.Join(steps, ", "))
}

// FieldError lets a create collaborator return per-field messages, for
// example from a 422 response. Paths may use dotted, slash or JSON pointer
// notation; they are mapped onto wizard field paths by the coordinator.
type FieldError struct {
	Message string
	Fields  map[string][]string
}

// Error implements error.
func (e *FieldError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "submit: create rejected field values"
}
