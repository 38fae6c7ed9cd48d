// Package model defines the declarative types shared by the wizard engine,
// the field validator and presentation bindings. Steps own an ordered list of
// FieldSpec values; validation rules expose canonical identifiers (min/max,
// minLength/maxLength, pattern) with string parameters so definitions loaded
// from YAML or JSON stay deterministic. Records and FormState values are
// treated as immutable once stored: helpers return copies instead of
// mutating in place.
package model
