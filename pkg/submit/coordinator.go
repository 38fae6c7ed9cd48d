// Package submit performs the terminal submission of a wizard: it uploads
// the staged file, merges the returned storage key into the flattened form
// state and calls the create collaborator. Either collaborator failing
// leaves the caller's state untouched so the user can retry.
//
// The coordinator does not deduplicate concurrent calls. Callers must hold a
// busy flag while a submission is in flight because create is not
// idempotent.
package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/upload"
)

// DefaultStorageKeyField is the record field receiving the upload key.
const DefaultStorageKeyField = "logo"

// UploadResult is returned by an Uploader.
type UploadResult struct {
	StorageKey string `json:"storageKey"`
}

// Entity is the created resource.
type Entity struct {
	ID     string       `json:"id"`
	Fields model.Record `json:"fields,omitempty"`
}

// Uploader persists a staged file.
type Uploader interface {
	Upload(ctx context.Context, file upload.File) (UploadResult, error)
}

// Creator creates the entity from the flattened record.
type Creator interface {
	Create(ctx context.Context, record model.Record) (Entity, error)
}

// UploaderFunc adapts a function into an Uploader.
type UploaderFunc func(ctx context.Context, file upload.File) (UploadResult, error)

// Upload calls fn.
func (fn UploaderFunc) Upload(ctx context.Context, file upload.File) (UploadResult, error) {
	return fn(ctx, file)
}

// CreatorFunc adapts a function into a Creator.
type CreatorFunc func(ctx context.Context, record model.Record) (Entity, error)

// Create calls fn.
func (fn CreatorFunc) Create(ctx context.Context, record model.Record) (Entity, error) {
	return fn(ctx, record)
}

// Collaborators groups the two external calls.
type Collaborators struct {
	Upload Uploader
	Create Creator
}

// OutcomeKind tags an Outcome.
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeFailure      OutcomeKind = "failure"
	OutcomeMissingInput OutcomeKind = "missing_required_input"
)

// Stage names the collaborator an outcome failed in.
type Stage string

const (
	StageNone    Stage = ""
	StageFlatten Stage = "flatten"
	StageUpload  Stage = "upload"
	StageCreate  Stage = "create"
)

// Outcome is the tagged result of a submission.
type Outcome struct {
	Kind        OutcomeKind         `json:"kind"`
	Entity      *Entity             `json:"entity,omitempty"`
	Message     string              `json:"message,omitempty"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
	Stage       Stage               `json:"stage,omitempty"`
	Err         error               `json:"-"`
}

// Succeeded reports whether the outcome carries a created entity.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStorageKeyField changes the record field receiving the storage key.
func WithStorageKeyField(name string) Option {
	return func(c *Coordinator) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			c.storageKeyField = trimmed
		}
	}
}

// WithSteps lets the coordinator map field errors returned by create onto
// the wizard's field paths.
func WithSteps(steps []model.Step) Option {
	return func(c *Coordinator) {
		c.steps = append([]model.Step(nil), steps...)
	}
}

// Coordinator sequences upload and create.
type Coordinator struct {
	logger          *zap.Logger
	storageKeyField string
	steps           []model.Step
}

// New builds a coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:          zap.NewNop(),
		storageKeyField: DefaultStorageKeyField,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// StorageKeyField returns the record field receiving the storage key.
func (c *Coordinator) StorageKeyField() string {
	return c.storageKeyField
}

// Submit uploads pending and creates the entity from state. A nil pending
// upload fails fast without calling either collaborator; an upload failure
// stops before create.
func (c *Coordinator) Submit(ctx context.Context, state model.FormState, pending *upload.PendingUpload, collab Collaborators) Outcome {
	if pending == nil {
		return Outcome{
			Kind:    OutcomeMissingInput,
			Message: "A logo file is required before submitting.",
			Err:     ErrMissingUpload,
		}
	}
	if collab.Upload == nil || collab.Create == nil {
		c.logger.DPanic("submit called without collaborators")
		return c.failure(StageNone, ErrNoCollaborator, "Submission is not configured.")
	}

	record, err := Flatten(state)
	if err != nil {
		c.logger.DPanic("form state has colliding fields", zap.Error(err))
		return c.failure(StageFlatten, err, "The form is misconfigured and cannot be submitted.")
	}
	if _, taken := record[c.storageKeyField]; taken {
		err := &CollisionError{Field: c.storageKeyField, Steps: []string{"upload"}}
		c.logger.DPanic("storage key field collides with a step field", zap.Error(err))
		return c.failure(StageFlatten, err, "The form is misconfigured and cannot be submitted.")
	}

	uploaded, err := collab.Upload.Upload(ctx, pending.File)
	if err != nil {
		c.logger.Warn("submit upload failed",
			zap.String("stage", string(StageUpload)),
			zap.String("file", pending.FileName),
			zap.Error(err),
		)
		return c.failure(StageUpload, err, fmt.Sprintf("Uploading the file failed: %v", err))
	}
	record[c.storageKeyField] = uploaded.StorageKey

	entity, err := collab.Create.Create(ctx, record)
	if err != nil {
		c.logger.Warn("submit create failed",
			zap.String("stage", string(StageCreate)),
			zap.String("storageKey", uploaded.StorageKey),
			zap.Error(err),
		)
		out := c.failure(StageCreate, err, fmt.Sprintf("Creating the record failed: %v", err))
		var fieldErr *FieldError
		if errors.As(err, &fieldErr) {
			mapping := MapFieldErrors(c.steps, fieldErr.Fields)
			out.FieldErrors = mapping.Fields
			if len(mapping.Form) > 0 {
				out.Message = strings.Join(mapping.Form, " ")
			} else if fieldErr.Message != "" {
				out.Message = fieldErr.Message
			}
		}
		return out
	}

	c.logger.Info("submit succeeded", zap.String("id", entity.ID))
	return Outcome{Kind: OutcomeSuccess, Entity: &entity}
}

func (c *Coordinator) failure(stage Stage, err error, message string) Outcome {
	return Outcome{
		Kind:    OutcomeFailure,
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}

// Flatten merges per-step records into the single record expected by the
// create collaborator. Steps own disjoint fields; a field stored by two
// steps is reported as *CollisionError.
func Flatten(state model.FormState) (model.Record, error) {
	out := model.Record{}
	owner := make(map[string]string)
	for _, key := range state.Keys() {
		for name, value := range state[key] {
			if prev, taken := owner[name]; taken {
				return nil, &CollisionError{Field: name, Steps: []string{prev, key}}
			}
			owner[name] = key
			out[name] = model.DeepCopy(value)
		}
	}
	return out, nil
}
