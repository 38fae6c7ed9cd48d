// Package options searches the choices declared on wizard fields, so a
// presentation layer can offer typeahead over long option lists.
package options

import (
	"sort"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// EmptyQuery selects what a blank query returns.
type EmptyQuery string

const (
	EmptyNone EmptyQuery = "none"
	EmptyAll  EmptyQuery = "all"
)

// Config bounds a search.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	Empty        EmptyQuery
}

// Option configures a search.
type Option func(*Config)

// WithLimits sets the default and maximum result counts.
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(c *Config) {
		c.DefaultLimit = defaultLimit
		c.MaxLimit = maxLimit
	}
}

// WithEmptyQuery sets the blank-query behaviour.
func WithEmptyQuery(mode EmptyQuery) Option {
	return func(c *Config) {
		c.Empty = mode
	}
}

// NewConfig applies opts over the defaults (20 results, at most 100, blank
// queries list everything).
func NewConfig(opts ...Option) Config {
	cfg := Config{DefaultLimit: 20, MaxLimit: 100, Empty: EmptyAll}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if cfg.Empty == "" {
		cfg.Empty = EmptyAll
	}
	return cfg
}

// Search matches query case-insensitively against option labels and values.
// Prefix matches rank ahead of substring matches; ties keep declaration
// order. A limit <= 0 selects the default.
func Search(choices []model.Option, query string, limit int, cfg Config) []model.Option {
	limit = clamp(limit, cfg)
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		if cfg.Empty != EmptyAll {
			return nil
		}
		if len(choices) > limit {
			choices = choices[:limit]
		}
		return append([]model.Option(nil), choices...)
	}

	type match struct {
		option model.Option
		prefix bool
	}
	var matches []match
	for _, choice := range choices {
		label := strings.ToLower(choice.DisplayLabel())
		value := strings.ToLower(choice.Value)
		if !strings.Contains(label, query) && !strings.Contains(value, query) {
			continue
		}
		matches = append(matches, match{
			option: choice,
			prefix: strings.HasPrefix(label, query) || strings.HasPrefix(value, query),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].prefix && !matches[j].prefix
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]model.Option, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.option)
	}
	return out
}

// Field finds the field at a dotted path ("registered.country") across steps.
func Field(steps []model.Step, path string) (model.FieldSpec, bool) {
	parts := strings.Split(strings.TrimSpace(path), ".")
	for _, step := range steps {
		if field, ok := find(step.Fields, parts); ok {
			return field, true
		}
	}
	return model.FieldSpec{}, false
}

func find(fields []model.FieldSpec, parts []string) (model.FieldSpec, bool) {
	for _, field := range fields {
		if field.Name != parts[0] {
			continue
		}
		if len(parts) == 1 {
			return field, true
		}
		return find(field.Nested, parts[1:])
	}
	return model.FieldSpec{}, false
}

func clamp(limit int, cfg Config) int {
	if limit <= 0 {
		limit = cfg.DefaultLimit
	}
	if limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}
	return limit
}
