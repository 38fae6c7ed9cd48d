package model

import (
	"sort"
	"strings"
)

// FieldKind enumerates the input kinds a step can declare.
type FieldKind string

const (
	FieldKindText    FieldKind = "text"
	FieldKindNumber  FieldKind = "number"
	FieldKindEmail   FieldKind = "email"
	FieldKindURL     FieldKind = "url"
	FieldKindTel     FieldKind = "tel"
	FieldKindDate    FieldKind = "date"
	FieldKindFile    FieldKind = "file"
	FieldKindBoolean FieldKind = "boolean"
	FieldKindObject  FieldKind = "object"
)

// IsString reports whether values of this kind are handled as trimmed text.
func (k FieldKind) IsString() bool {
	switch k {
	case FieldKindText, FieldKindEmail, FieldKindURL, FieldKindTel, FieldKindDate, "":
		return true
	default:
		return false
	}
}

const (
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
)

// ValidationRule represents a single validation constraint applied to a field.
// Numeric bounds and length limits encode their threshold in Params["value"]
// while pattern rules preserve the original expression in Params["pattern"]
// and may carry a custom message in Params["message"].
type ValidationRule struct {
	Kind   string            `json:"kind" yaml:"kind"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Option is one entry of an explicit choice list.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// DisplayLabel falls back to the value when no label is set.
func (o Option) DisplayLabel() string {
	if label := strings.TrimSpace(o.Label); label != "" {
		return label
	}
	return o.Value
}

// FieldSpec describes one input of a step.
type FieldSpec struct {
	Name        string           `json:"name" yaml:"name"`
	Kind        FieldKind        `json:"kind" yaml:"kind"`
	Required    bool             `json:"required" yaml:"required"`
	Label       string           `json:"label,omitempty" yaml:"label,omitempty"`
	Placeholder string           `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Constraints []ValidationRule `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Options     []Option         `json:"options,omitempty" yaml:"options,omitempty"`
	Nested      []FieldSpec      `json:"nested,omitempty" yaml:"nested,omitempty"`
}

// DisplayLabel returns the label used in prompts and error messages.
func (f FieldSpec) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return f.Name
}

// DerivedField mirrors Source into Target while Flag is falsy.
type DerivedField struct {
	Flag   string `json:"flag" yaml:"flag"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Step is the static descriptor of one wizard page.
type Step struct {
	Key         string         `json:"key" yaml:"key"`
	Title       string         `json:"title,omitempty" yaml:"title,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []FieldSpec    `json:"fields,omitempty" yaml:"fields,omitempty"`
	When        string         `json:"when,omitempty" yaml:"when,omitempty"`
	Derive      []DerivedField `json:"derive,omitempty" yaml:"derive,omitempty"`
}

// DeriveTarget reports whether name is the target of one of the step's
// derive rules and returns that rule.
func (s Step) DeriveTarget(name string) (DerivedField, bool) {
	for _, rule := range s.Derive {
		if rule.Target == name {
			return rule, true
		}
	}
	return DerivedField{}, false
}

// Record is the validated output of a single step.
type Record map[string]any

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = DeepCopy(v)
	}
	return out
}

// FormState maps step keys to the records stored for them.
type FormState map[string]Record

// With returns a new state holding record under key. Other entries are
// shared with the receiver.
func (s FormState) With(key string, record Record) FormState {
	out := make(FormState, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[key] = record
	return out
}

// Clone returns a deep copy of the state.
func (s FormState) Clone() FormState {
	out := make(FormState, len(s))
	for k, v := range s {
		out[k] = v.Clone()
	}
	return out
}

// Keys returns the stored step keys sorted lexically.
func (s FormState) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values merges every stored record into a single map. Later keys in sorted
// order win on collision; use submit.Flatten when collisions must be
// reported.
func (s FormState) Values() map[string]any {
	out := make(map[string]any)
	for _, key := range s.Keys() {
		for name, value := range s[key] {
			out[name] = value
		}
	}
	return out
}

// DeepCopy clones nested maps and slices so stored records never alias
// caller-owned containers.
func DeepCopy(value any) any {
	switch typed := value.(type) {
	case Record:
		return typed.Clone()
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = DeepCopy(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = DeepCopy(v)
		}
		return clone
	default:
		return typed
	}
}

// FieldNames returns the top-level field names of a step.
func FieldNames(fields []FieldSpec) []string {
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name)
	}
	return names
}
