// Package validation checks raw step input against a step's field schema.
// Validation is pure: the same schema and input always produce the same
// Result, and every failing field is reported in one pass.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// DateLayout is the accepted format for date fields.
const DateLayout = "2006-01-02"

var telPattern = regexp.MustCompile(`^\+?[0-9][0-9 ().\-]{5,19}$`)

// Option configures Validate.
type Option func(*config)

type config struct {
	sanitize bool
}

// WithSanitizer strips HTML markup from string inputs before constraint
// checks.
func WithSanitizer() Option {
	return func(cfg *config) {
		cfg.sanitize = true
	}
}

// Validate checks raw against fields. On success Data holds exactly the
// schema's field names with trimmed strings, float64 numbers, bools and
// nested records. On failure Errors holds one message per failing field.
func Validate(fields []model.FieldSpec, raw map[string]any, opts ...Option) Result {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	errs := make(map[string]string)
	data := validateFields(fields, raw, "", cfg, errs)
	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	return Result{Data: data}
}

func validateFields(fields []model.FieldSpec, raw map[string]any, prefix string, cfg config, errs map[string]string) model.Record {
	data := make(model.Record, len(fields))
	for _, field := range fields {
		path := joinPath(prefix, field.Name)
		value, present := raw[field.Name]
		if !present {
			value = nil
		}

		if field.Kind == model.FieldKindObject {
			nested, ok := asMap(value)
			if !ok && value != nil {
				errs[path] = fmt.Sprintf("%s must be an object", field.DisplayLabel())
				continue
			}
			data[field.Name] = validateFields(field.Nested, nested, path, cfg, errs)
			continue
		}

		out, msg := validateScalar(field, value, cfg)
		if msg != "" {
			errs[path] = msg
			continue
		}
		data[field.Name] = out
	}
	return data
}

func validateScalar(field model.FieldSpec, value any, cfg config) (any, string) {
	label := field.DisplayLabel()
	r, err := compileRules(field)
	if err != nil {
		return nil, err.Error()
	}

	switch field.Kind {
	case model.FieldKindNumber:
		return validateNumber(field, r, value)
	case model.FieldKindBoolean:
		b, ok := coerceBool(value)
		if !ok {
			return nil, fmt.Sprintf("%s must be true or false", label)
		}
		if field.Required && !b {
			return nil, fmt.Sprintf("%s is required", label)
		}
		return b, ""
	case model.FieldKindFile:
		ref := strings.TrimSpace(stringValue(value))
		if ref == "" {
			if field.Required {
				return nil, fmt.Sprintf("%s is required", label)
			}
			return nil, ""
		}
		return ref, ""
	}

	if !isScalar(value) {
		return nil, fmt.Sprintf("%s must be text", label)
	}
	text := strings.TrimSpace(stringValue(value))
	if cfg.sanitize {
		text = stripMarkup(text)
	}
	if text == "" {
		if field.Required {
			return nil, fmt.Sprintf("%s is required", label)
		}
		return "", ""
	}

	if msg := checkKind(field.Kind, label, text); msg != "" {
		return nil, msg
	}
	if len(field.Options) > 0 && !hasOption(field.Options, text) {
		return nil, fmt.Sprintf("%s must be one of the listed options", label)
	}
	if msg := r.checkString(label, text); msg != "" {
		return nil, msg
	}
	return text, ""
}

func validateNumber(field model.FieldSpec, r rules, value any) (any, string) {
	label := field.DisplayLabel()
	var n float64
	switch v := value.(type) {
	case nil:
		if field.Required {
			return nil, fmt.Sprintf("%s is required", label)
		}
		return nil, ""
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Sprintf("%s must be a number", label)
		}
		n = f
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			if field.Required {
				return nil, fmt.Sprintf("%s is required", label)
			}
			return nil, ""
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Sprintf("%s must be a number", label)
		}
		n = f
	default:
		return nil, fmt.Sprintf("%s must be a number", label)
	}
	// NaN slips past every bound and neither value survives JSON encoding.
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Sprintf("%s must be a number", label)
	}
	if msg := r.checkNumber(label, n); msg != "" {
		return nil, msg
	}
	return n, ""
}

func checkKind(kind model.FieldKind, label, text string) string {
	switch kind {
	case model.FieldKindEmail:
		addr, err := mail.ParseAddress(text)
		if err != nil || addr.Address != text {
			return fmt.Sprintf("%s must be a valid email address", label)
		}
	case model.FieldKindURL:
		u, err := url.ParseRequestURI(text)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Sprintf("%s must be a valid http(s) URL", label)
		}
	case model.FieldKindTel:
		if !telPattern.MatchString(text) {
			return fmt.Sprintf("%s must be a valid phone number", label)
		}
	case model.FieldKindDate:
		if _, err := time.Parse(DateLayout, text); err != nil {
			return fmt.Sprintf("%s must be a date (YYYY-MM-DD)", label)
		}
	}
	return ""
}

func coerceBool(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, true
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "false", "off", "0", "no":
			return false, true
		case "true", "on", "1", "yes":
			return true, true
		}
	}
	return false, false
}

func hasOption(options []model.Option, value string) bool {
	for _, opt := range options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func asMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case model.Record:
		return v, true
	default:
		return nil, false
	}
}

func isScalar(value any) bool {
	switch value.(type) {
	case map[string]any, model.Record, []any:
		return false
	default:
		return true
	}
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
