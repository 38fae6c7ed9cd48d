// Package definition loads wizard definitions (ordered step schemas plus
// upload and submission settings) from JSON or YAML files so the engine can
// be reused for different wizards without code changes.
package definition

import (
	"sort"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/upload"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// UploadConfig overrides the stager limits for a wizard.
type UploadConfig struct {
	MaxBytes int64    `json:"maxBytes,omitempty" yaml:"maxBytes,omitempty"`
	Types    []string `json:"types,omitempty" yaml:"types,omitempty"`
}

// Definition describes one wizard.
type Definition struct {
	ID              string       `json:"id" yaml:"-"`
	Title           string       `json:"title,omitempty" yaml:"title,omitempty"`
	Description     string       `json:"description,omitempty" yaml:"description,omitempty"`
	StorageKeyField string       `json:"storageKeyField,omitempty" yaml:"storageKeyField,omitempty"`
	Upload          UploadConfig `json:"upload,omitempty" yaml:"upload,omitempty"`
	Steps           []model.Step `json:"steps" yaml:"steps"`
	Source          string       `json:"-" yaml:"-"`
}

// NewEngine builds a wizard engine over the definition's steps.
func (d Definition) NewEngine(opts ...wizard.Option) (*wizard.Engine, error) {
	return wizard.New(d.Steps, opts...)
}

// NewStager builds an upload stager honouring the definition's limits.
func (d Definition) NewStager(previews upload.Previews, logger *zap.Logger) *upload.Stager {
	opts := []upload.Option{upload.WithLogger(logger)}
	if d.Upload.MaxBytes > 0 {
		opts = append(opts, upload.WithMaxBytes(d.Upload.MaxBytes))
	}
	if len(d.Upload.Types) > 0 {
		opts = append(opts, upload.WithTypes(d.Upload.Types...))
	}
	return upload.NewStager(previews, opts...)
}

// NewCoordinator builds a submission coordinator that maps collaborator
// field errors onto the definition's fields.
func (d Definition) NewCoordinator(logger *zap.Logger) *submit.Coordinator {
	return submit.New(
		submit.WithLogger(logger),
		submit.WithSteps(d.Steps),
		submit.WithStorageKeyField(d.StorageKeyField),
	)
}

// StorageKey returns the record field receiving the upload storage key.
func (d Definition) StorageKey() string {
	if d.StorageKeyField == "" {
		return submit.DefaultStorageKeyField
	}
	return d.StorageKeyField
}

// Store holds definitions keyed by id.
type Store struct {
	wizards map[string]Definition
}

// Wizard returns the definition for id.
func (s *Store) Wizard(id string) (Definition, bool) {
	if s == nil {
		return Definition{}, false
	}
	def, ok := s.wizards[id]
	return def, ok
}

// IDs returns the loaded wizard ids sorted.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.wizards))
	for id := range s.wizards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Empty reports whether the store holds any definitions.
func (s *Store) Empty() bool {
	return s == nil || len(s.wizards) == 0
}
