package submit

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// ErrorMapping splits a collaborator error payload into field-level and
// form-level messages. Field keys are the dotted paths used by the
// validator, so presentation can show server messages next to the inputs
// that caused them.
type ErrorMapping struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Form   []string            `json:"form,omitempty"`
}

// MapFieldErrors normalises go-errors style payloads ("/body/legalName",
// "data.registered.city", "$.mailing[0]") onto the field paths declared by
// steps. Unknown paths become form-level messages so nothing is lost.
// Payload keys are visited in sorted order so the result is stable.
func MapFieldErrors(steps []model.Step, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	known := make(map[string]struct{})
	for _, step := range steps {
		collectPaths(step.Fields, "", known)
	}

	keys := make([]string, 0, len(payload))
	for raw := range payload {
		keys = append(keys, raw)
	}
	sort.Strings(keys)

	for _, raw := range keys {
		cleaned := normalizeMessages(payload[raw])
		if len(cleaned) == 0 {
			continue
		}
		path, ok := matchPath(raw, known)
		if !ok {
			mapping.Form = append(mapping.Form, cleaned...)
			continue
		}
		mapping.Fields[path] = append(mapping.Fields[path], cleaned...)
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func collectPaths(fields []model.FieldSpec, prefix string, dest map[string]struct{}) {
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		dest[path] = struct{}{}
		collectPaths(field.Nested, path, dest)
	}
}

func matchPath(raw string, known map[string]struct{}) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", ".", "/", "#", "$", "form", "__all__", "non_field_errors":
		return "", false
	}

	segments := splitPath(raw)
	if len(segments) == 0 {
		return "", false
	}

	best := ""
	for _, variant := range [][]string{segments, dropWrappers(segments), dropIndexes(segments), dropIndexes(dropWrappers(segments))} {
		for end := len(variant); end > 0; end-- {
			candidate := strings.Join(variant[:end], ".")
			if _, ok := known[candidate]; ok {
				if strings.Count(candidate, ".") >= strings.Count(best, ".") || best == "" {
					best = candidate
				}
				break
			}
		}
	}
	return best, best != ""
}

func splitPath(path string) []string {
	clean := strings.TrimSpace(path)
	clean = strings.TrimLeft(clean, "#$/.")
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)

	parts := strings.FieldsFunc(clean, func(r rune) bool { return r == '.' || r == '/' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		out = append(out, part)
	}
	return out
}

func dropWrappers(segments []string) []string {
	for len(segments) > 0 {
		switch strings.ToLower(segments[0]) {
		case "body", "request", "payload", "data", "attributes":
			segments = segments[1:]
			continue
		}
		break
	}
	return segments
}

func dropIndexes(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func normalizeMessages(messages []string) []string {
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
