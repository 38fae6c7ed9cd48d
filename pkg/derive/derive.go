// Package derive mirrors dependent fields inside a step record, such as the
// mailing address defaulting to the registered address until the user marks
// it as different.
package derive

import (
	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/model"
)

// Resolve returns a copy of record where targetField holds a deep copy of
// sourceField whenever flagField is falsy. A truthy flag leaves the target
// exactly as supplied. The input record is never mutated and resolving an
// already resolved record yields the same record.
func Resolve(record model.Record, flagField, sourceField, targetField string) model.Record {
	out := make(model.Record, len(record))
	for k, v := range record {
		out[k] = v
	}
	if condition.Truthy(record[flagField]) {
		return out
	}
	source, ok := record[sourceField]
	if !ok {
		delete(out, targetField)
		return out
	}
	out[targetField] = model.DeepCopy(source)
	return out
}

// Apply resolves every rule in order.
func Apply(record model.Record, rules []model.DerivedField) model.Record {
	if len(rules) == 0 {
		return record
	}
	out := record
	for _, rule := range rules {
		out = Resolve(out, rule.Flag, rule.Source, rule.Target)
	}
	return out
}

// ApplyRaw is Apply for unvalidated input maps.
func ApplyRaw(raw map[string]any, rules []model.DerivedField) map[string]any {
	if len(rules) == 0 {
		return raw
	}
	return map[string]any(Apply(model.Record(raw), rules))
}

// Mirrored reports whether rule currently copies its source, i.e. the user
// has not asked to override the target.
func Mirrored(values map[string]any, rule model.DerivedField) bool {
	return !condition.Truthy(values[rule.Flag])
}
