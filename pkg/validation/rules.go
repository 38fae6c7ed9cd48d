package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-formwizard/pkg/model"
)

type rules struct {
	min            *float64
	max            *float64
	minLen         *int
	maxLen         *int
	pattern        *regexp.Regexp
	patternMessage string
}

// compileRules collapses a field's constraint list. Unparsable thresholds and
// patterns are reported so misconfigured definitions fail loudly.
func compileRules(field model.FieldSpec) (rules, error) {
	var out rules
	for _, rule := range field.Constraints {
		switch rule.Kind {
		case model.ValidationRuleMin:
			val, err := parseFloatParam(rule)
			if err != nil {
				return rules{}, err
			}
			out.min = &val
		case model.ValidationRuleMax:
			val, err := parseFloatParam(rule)
			if err != nil {
				return rules{}, err
			}
			out.max = &val
		case model.ValidationRuleMinLength:
			val, err := parseIntParam(rule)
			if err != nil {
				return rules{}, err
			}
			out.minLen = &val
		case model.ValidationRuleMaxLength:
			val, err := parseIntParam(rule)
			if err != nil {
				return rules{}, err
			}
			out.maxLen = &val
		case model.ValidationRulePattern:
			expr := rule.Params["pattern"]
			if expr == "" {
				return rules{}, fmt.Errorf("validation: field %q pattern rule has no pattern", field.Name)
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return rules{}, fmt.Errorf("validation: field %q pattern: %w", field.Name, err)
			}
			out.pattern = re
			out.patternMessage = strings.TrimSpace(rule.Params["message"])
		default:
			return rules{}, fmt.Errorf("validation: field %q has unknown rule %q", field.Name, rule.Kind)
		}
	}
	return out, nil
}

// CheckField reports configuration problems in a field and its nested
// fields without validating any input.
func CheckField(field model.FieldSpec) error {
	if strings.TrimSpace(field.Name) == "" {
		return fmt.Errorf("validation: field name is required")
	}
	if _, err := compileRules(field); err != nil {
		return err
	}
	switch field.Kind {
	case model.FieldKindText, model.FieldKindNumber, model.FieldKindEmail, model.FieldKindURL,
		model.FieldKindTel, model.FieldKindDate, model.FieldKindFile, model.FieldKindBoolean, "":
	case model.FieldKindObject:
		seen := make(map[string]struct{}, len(field.Nested))
		for _, nested := range field.Nested {
			if _, dup := seen[nested.Name]; dup {
				return fmt.Errorf("validation: field %q declares %q twice", field.Name, nested.Name)
			}
			seen[nested.Name] = struct{}{}
			if err := CheckField(nested); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("validation: field %q has unknown kind %q", field.Name, field.Kind)
	}
	return nil
}

func parseFloatParam(rule model.ValidationRule) (float64, error) {
	raw := strings.TrimSpace(rule.Params["value"])
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("validation: %s rule value %q is not a number", rule.Kind, raw)
	}
	return val, nil
}

func parseIntParam(rule model.ValidationRule) (int, error) {
	raw := strings.TrimSpace(rule.Params["value"])
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("validation: %s rule value %q is not an integer", rule.Kind, raw)
	}
	return val, nil
}

func (r rules) checkString(label, value string) string {
	length := utf8.RuneCountInString(value)
	if r.minLen != nil && length < *r.minLen {
		return fmt.Sprintf("%s must be at least %d characters", label, *r.minLen)
	}
	if r.maxLen != nil && length > *r.maxLen {
		return fmt.Sprintf("%s must be at most %d characters", label, *r.maxLen)
	}
	if r.pattern != nil && !r.pattern.MatchString(value) {
		if r.patternMessage != "" {
			return r.patternMessage
		}
		return fmt.Sprintf("%s has an invalid format", label)
	}
	return ""
}

func (r rules) checkNumber(label string, value float64) string {
	if r.min != nil && value < *r.min {
		return fmt.Sprintf("%s must be at least %s", label, formatNumber(*r.min))
	}
	if r.max != nil && value > *r.max {
		return fmt.Sprintf("%s must be at most %s", label, formatNumber(*r.max))
	}
	return ""
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
