package formwizard

import (
	"io/fs"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/definition"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/upload"
	"github.com/goliatone/go-formwizard/pkg/validation"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Definition aliases definition.Definition for callers using the root package.
type Definition = definition.Definition

// Session aliases session.Session.
type Session = session.Session

// Collaborators aliases submit.Collaborators.
type Collaborators = submit.Collaborators

// Outcome aliases submit.Outcome.
type Outcome = submit.Outcome

// Load reads wizard definitions from fsys.
func Load(fsys fs.FS) (*definition.Store, error) {
	return definition.LoadFS(fsys)
}

// Builtin returns the definitions shipped with the module.
func Builtin() (*definition.Store, error) {
	return definition.LoadEmbedded()
}

// NewSession wires an engine, stager and coordinator for def around collab.
// A nil previews store keeps staged files in memory. Text input is sanitised.
func NewSession(def Definition, collab Collaborators, previews upload.Previews, logger *zap.Logger, opts ...session.Option) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine, err := def.NewEngine(wizard.WithLogger(logger), wizard.WithValidationOptions(validation.WithSanitizer()))
	if err != nil {
		return nil, err
	}
	opts = append([]session.Option{session.WithWizardID(def.ID), session.WithLogger(logger)}, opts...)
	return session.New(engine, def.NewStager(previews, logger), def.NewCoordinator(logger), collab, opts...), nil
}
