package prompt

import (
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// values collects one step's answers keyed by dotted paths. Nested object
// fields become nested maps so the result can be passed straight to the
// engine.
type values map[string]any

func newValues(prefill model.Record) values {
	out := values{}
	for k, v := range prefill {
		out[k] = plain(v)
	}
	return out
}

func (v values) get(path string) (any, bool) {
	var current any = map[string]any(v)
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := node[segment]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func (v values) set(path string, value any) {
	segments := strings.Split(path, ".")
	node := map[string]any(v)
	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[segment] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

// plain converts stored records into plain maps so dotted lookups work on
// prefilled values.
func plain(value any) any {
	switch typed := value.(type) {
	case model.Record:
		return plain(map[string]any(typed))
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = plain(v)
		}
		return out
	default:
		return typed
	}
}
