package validation_test

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

func companyFields() []model.FieldSpec {
	return []model.FieldSpec{
		{
			Name:     "legalName",
			Kind:     model.FieldKindText,
			Label:    "Legal name",
			Required: true,
			Constraints: []model.ValidationRule{
				{Kind: model.ValidationRuleMinLength, Params: map[string]string{"value": "2"}},
				{Kind: model.ValidationRuleMaxLength, Params: map[string]string{"value": "20"}},
			},
		},
		{
			Name:  "employees",
			Kind:  model.FieldKindNumber,
			Label: "Employees",
			Constraints: []model.ValidationRule{
				{Kind: model.ValidationRuleMin, Params: map[string]string{"value": "1"}},
			},
		},
		{Name: "email", Kind: model.FieldKindEmail, Label: "Email", Required: true},
		{Name: "website", Kind: model.FieldKindURL, Label: "Website"},
		{Name: "phone", Kind: model.FieldKindTel, Label: "Phone"},
		{Name: "founded", Kind: model.FieldKindDate, Label: "Founded"},
		{
			Name:  "kind",
			Kind:  model.FieldKindText,
			Label: "Company type",
			Options: []model.Option{
				{Value: "llc", Label: "LLC"},
				{Value: "corp", Label: "Corporation"},
			},
		},
	}
}

func TestValidate_ValidInputIsTrimmedAndCoerced(t *testing.T) {
	result := validation.Validate(companyFields(), map[string]any{
		"legalName": "  Acme  ",
		"employees": " 42 ",
		"email":     "ops@acme.test",
		"website":   "https://acme.test",
		"phone":     "+1 (555) 010-2030",
		"founded":   "2020-02-29",
		"kind":      "llc",
		"ignored":   "dropped",
	})
	if !result.Valid() {
		t.Fatalf("expected valid result, got %v", result.Errors)
	}

	want := model.Record{
		"legalName": "Acme",
		"employees": float64(42),
		"email":     "ops@acme.test",
		"website":   "https://acme.test",
		"phone":     "+1 (555) 010-2030",
		"founded":   "2020-02-29",
		"kind":      "llc",
	}
	if diff := cmp.Diff(want, result.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_OptionalFieldsAreKeyed(t *testing.T) {
	result := validation.Validate(companyFields(), map[string]any{
		"legalName": "Acme",
		"email":     "ops@acme.test",
	})
	if !result.Valid() {
		t.Fatalf("expected valid result, got %v", result.Errors)
	}
	for _, name := range model.FieldNames(companyFields()) {
		if _, ok := result.Data[name]; !ok {
			t.Errorf("expected key %q in data", name)
		}
	}
	if result.Data["employees"] != nil {
		t.Fatalf("expected nil employees, got %#v", result.Data["employees"])
	}
}

func TestValidate_CollectsEveryError(t *testing.T) {
	result := validation.Validate(companyFields(), map[string]any{
		"legalName": "   ",
		"employees": "many",
		"email":     "not-an-email",
		"website":   "ftp://acme.test",
		"phone":     "call me",
		"founded":   "29/02/2020",
		"kind":      "partnership",
	})
	if result.Valid() {
		t.Fatalf("expected invalid result")
	}

	want := map[string]string{
		"legalName": "Legal name is required",
		"employees": "Employees must be a number",
		"email":     "Email must be a valid email address",
		"website":   "Website must be a valid http(s) URL",
		"phone":     "Phone must be a valid phone number",
		"founded":   "Founded must be a date (YYYY-MM-DD)",
		"kind":      "Company type must be one of the listed options",
	}
	if diff := cmp.Diff(want, result.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if result.Data != nil {
		t.Fatalf("invalid result should not carry data")
	}
}

func TestValidate_MissingRequiredFieldsOneErrorEach(t *testing.T) {
	result := validation.Validate(companyFields(), map[string]any{})
	want := map[string]string{
		"legalName": "Legal name is required",
		"email":     "Email is required",
	}
	if diff := cmp.Diff(want, result.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_Constraints(t *testing.T) {
	fields := companyFields()
	result := validation.Validate(fields, map[string]any{
		"legalName": "A",
		"employees": 0,
		"email":     "ops@acme.test",
	})
	want := map[string]string{
		"legalName": "Legal name must be at least 2 characters",
		"employees": "Employees must be at least 1",
	}
	if diff := cmp.Diff(want, result.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	result = validation.Validate(fields, map[string]any{
		"legalName": strings.Repeat("x", 21),
		"email":     "ops@acme.test",
	})
	if got := result.Errors["legalName"]; got != "Legal name must be at most 20 characters" {
		t.Fatalf("unexpected maxLength message %q", got)
	}

	for _, raw := range []any{"NaN", "Inf", " -Infinity ", math.NaN(), math.Inf(1), json.Number("NaN")} {
		result = validation.Validate(fields, map[string]any{
			"legalName": "Acme",
			"employees": raw,
			"email":     "ops@acme.test",
		})
		if got := result.Errors["employees"]; got != "Employees must be a number" {
			t.Fatalf("employees %v: unexpected message %q", raw, got)
		}
		if _, ok := result.Data["employees"]; ok {
			t.Fatalf("employees %v: non-finite value stored", raw)
		}
	}
}

func TestValidate_PatternMessage(t *testing.T) {
	fields := []model.FieldSpec{{
		Name:  "taxId",
		Kind:  model.FieldKindText,
		Label: "Tax ID",
		Constraints: []model.ValidationRule{{
			Kind:   model.ValidationRulePattern,
			Params: map[string]string{"pattern": `^[0-9]{2}-[0-9]{7}$`, "message": "Tax ID must look like 12-3456789"},
		}},
	}}

	if result := validation.Validate(fields, map[string]any{"taxId": "12-3456789"}); !result.Valid() {
		t.Fatalf("expected valid tax id, got %v", result.Errors)
	}
	result := validation.Validate(fields, map[string]any{"taxId": "123"})
	if got := result.Errors["taxId"]; got != "Tax ID must look like 12-3456789" {
		t.Fatalf("unexpected pattern message %q", got)
	}
}

func TestValidate_NestedObjectsAndBooleans(t *testing.T) {
	address := []model.FieldSpec{
		{Name: "street", Kind: model.FieldKindText, Label: "Street"},
		{Name: "city", Kind: model.FieldKindText, Label: "City", Required: true},
	}
	fields := []model.FieldSpec{
		{Name: "isDifferent", Kind: model.FieldKindBoolean},
		{Name: "registered", Kind: model.FieldKindObject, Nested: address},
		{Name: "mailing", Kind: model.FieldKindObject, Nested: address},
	}

	result := validation.Validate(fields, map[string]any{
		"isDifferent": "on",
		"registered":  map[string]any{"city": " X "},
		"mailing":     map[string]any{"street": "Main"},
	})
	if diff := cmp.Diff(map[string]string{"mailing.city": "City is required"}, result.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	result = validation.Validate(fields, map[string]any{
		"isDifferent": false,
		"registered":  map[string]any{"city": "X"},
		"mailing":     map[string]any{"city": "Y"},
	})
	want := model.Record{
		"isDifferent": false,
		"registered":  model.Record{"street": "", "city": "X"},
		"mailing":     model.Record{"street": "", "city": "Y"},
	}
	if diff := cmp.Diff(want, result.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}

	result = validation.Validate(fields, map[string]any{"isDifferent": "maybe", "registered": "X"})
	if got := result.Errors["isDifferent"]; got != "isDifferent must be true or false" {
		t.Fatalf("unexpected boolean message %q", got)
	}
	if got := result.Errors["registered"]; got != "registered must be an object" {
		t.Fatalf("unexpected object message %q", got)
	}
}

func TestValidate_RequiredBooleanMustBeChecked(t *testing.T) {
	fields := []model.FieldSpec{{Name: "terms", Kind: model.FieldKindBoolean, Label: "Terms", Required: true}}
	if result := validation.Validate(fields, map[string]any{"terms": false}); result.Errors["terms"] != "Terms is required" {
		t.Fatalf("expected required message, got %v", result.Errors)
	}
	if result := validation.Validate(fields, map[string]any{"terms": true}); !result.Valid() {
		t.Fatalf("expected valid, got %v", result.Errors)
	}
}

func TestValidate_Sanitizer(t *testing.T) {
	fields := []model.FieldSpec{{Name: "legalName", Kind: model.FieldKindText, Required: true}}

	result := validation.Validate(fields, map[string]any{"legalName": "<b>Smith</b> & Co<script>x()</script>"}, validation.WithSanitizer())
	if got := result.Data["legalName"]; got != "Smith & Co" {
		t.Fatalf("expected sanitized value, got %q", got)
	}

	result = validation.Validate(fields, map[string]any{"legalName": "<script>x()</script>"}, validation.WithSanitizer())
	if result.Errors["legalName"] != "legalName is required" {
		t.Fatalf("expected markup-only input to be empty, got %v", result)
	}
}

func TestResultErr(t *testing.T) {
	valid := validation.Result{Data: model.Record{}}
	if valid.Err() != nil {
		t.Fatalf("valid result should have nil error")
	}

	invalid := validation.Result{Errors: map[string]string{"b": "second", "a": "first"}}
	err := invalid.Err()
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *validation.Error, got %T", err)
	}
	if got := err.Error(); got != "validation: a: first; b: second" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCheckField(t *testing.T) {
	bad := []model.FieldSpec{
		{Name: ""},
		{Name: "x", Kind: "color"},
		{Name: "x", Constraints: []model.ValidationRule{{Kind: model.ValidationRuleMin, Params: map[string]string{"value": "abc"}}}},
		{Name: "x", Constraints: []model.ValidationRule{{Kind: model.ValidationRulePattern, Params: map[string]string{"pattern": "("}}}},
		{Name: "x", Constraints: []model.ValidationRule{{Kind: "between"}}},
		{Name: "addr", Kind: model.FieldKindObject, Nested: []model.FieldSpec{{Name: "city"}, {Name: "city"}}},
	}
	for _, field := range bad {
		if err := validation.CheckField(field); err == nil {
			t.Errorf("CheckField(%+v): expected error", field)
		}
	}
	for _, field := range companyFields() {
		if err := validation.CheckField(field); err != nil {
			t.Errorf("CheckField(%s): %v", field.Name, err)
		}
	}
}
