package validation

import (
	"sort"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Result is the outcome of one validation attempt. It is either valid, with
// Data holding the normalised record, or invalid, with Errors keyed by
// dotted field path. Results are never mutated after Validate returns.
type Result struct {
	Data   model.Record      `json:"data,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Valid reports whether no field failed.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns nil for valid results and an *Error otherwise.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &Error{Fields: cloneErrors(r.Errors)}
}

// Error carries the per-field messages of an invalid result.
type Error struct {
	Fields map[string]string
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation: invalid input"
	}
	paths := make([]string, 0, len(e.Fields))
	for path := range e.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		parts = append(parts, path+": "+e.Fields[path])
	}
	return "validation: " + strings.Join(parts, "; ")
}

func cloneErrors(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
