package submit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/upload"
)

type fakeCollaborators struct {
	uploadErr  error
	createErr  error
	storageKey string
	uploads    int
	creates    int
	lastRecord model.Record
	lastUpload upload.File
}

func (f *fakeCollaborators) collab() submit.Collaborators {
	return submit.Collaborators{
		Upload: submit.UploaderFunc(func(_ context.Context, file upload.File) (submit.UploadResult, error) {
			f.uploads++
			f.lastUpload = file
			if f.uploadErr != nil {
				return submit.UploadResult{}, f.uploadErr
			}
			return submit.UploadResult{StorageKey: f.storageKey}, nil
		}),
		Create: submit.CreatorFunc(func(_ context.Context, record model.Record) (submit.Entity, error) {
			f.creates++
			f.lastRecord = record
			if f.createErr != nil {
				return submit.Entity{}, f.createErr
			}
			return submit.Entity{ID: "company-1", Fields: record}, nil
		}),
	}
}

func sampleState() model.FormState {
	return model.FormState{
		"company": model.Record{"legalName": "Acme", "website": "https://acme.test"},
		"addresses": model.Record{
			"isDifferent": false,
			"registered":  map[string]any{"city": "Berlin"},
			"mailing":     map[string]any{"city": "Berlin"},
		},
	}
}

func samplePending() *upload.PendingUpload {
	file := upload.File{Name: "logo.png", MimeType: "image/png", Content: []byte{1, 2, 3}}
	return &upload.PendingUpload{File: file, PreviewURL: "/previews/x", SizeBytes: 3, FileName: "logo.png"}
}

func TestSubmit_Success(t *testing.T) {
	fake := &fakeCollaborators{storageKey: "k1"}
	coordinator := submit.New()

	out := coordinator.Submit(context.Background(), sampleState(), samplePending(), fake.collab())
	if !out.Succeeded() {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Entity == nil || out.Entity.ID != "company-1" {
		t.Fatalf("unexpected entity %+v", out.Entity)
	}

	want := model.Record{
		"legalName":   "Acme",
		"website":     "https://acme.test",
		"isDifferent": false,
		"registered":  map[string]any{"city": "Berlin"},
		"mailing":     map[string]any{"city": "Berlin"},
		"logo":        "k1",
	}
	if diff := cmp.Diff(want, fake.lastRecord); diff != "" {
		t.Fatalf("create record mismatch (-want +got):\n%s", diff)
	}
	if fake.lastUpload.Name != "logo.png" {
		t.Fatalf("uploaded wrong file %+v", fake.lastUpload)
	}
}

func TestSubmit_MissingUploadCallsNothing(t *testing.T) {
	fake := &fakeCollaborators{storageKey: "k1"}
	out := submit.New().Submit(context.Background(), sampleState(), nil, fake.collab())

	if out.Kind != submit.OutcomeMissingInput {
		t.Fatalf("expected missing input, got %s", out.Kind)
	}
	if !errors.Is(out.Err, submit.ErrMissingUpload) {
		t.Fatalf("expected ErrMissingUpload, got %v", out.Err)
	}
	if fake.uploads != 0 || fake.creates != 0 {
		t.Fatalf("collaborators called: uploads=%d creates=%d", fake.uploads, fake.creates)
	}
}

func TestSubmit_UploadFailureSkipsCreate(t *testing.T) {
	fake := &fakeCollaborators{uploadErr: errors.New("network down")}
	out := submit.New().Submit(context.Background(), sampleState(), samplePending(), fake.collab())

	if out.Kind != submit.OutcomeFailure || out.Stage != submit.StageUpload {
		t.Fatalf("expected upload failure, got %+v", out)
	}
	if fake.creates != 0 {
		t.Fatalf("create called after upload failure")
	}
	if out.Message == "" {
		t.Fatalf("expected a user facing message")
	}
}

func TestSubmit_CreateFailureIsRetryable(t *testing.T) {
	fake := &fakeCollaborators{storageKey: "k1", createErr: errors.New("conflict")}
	coordinator := submit.New()
	state := sampleState()
	before := state.Clone()

	out := coordinator.Submit(context.Background(), state, samplePending(), fake.collab())
	if out.Kind != submit.OutcomeFailure || out.Stage != submit.StageCreate {
		t.Fatalf("expected create failure, got %+v", out)
	}
	if diff := cmp.Diff(before, state); diff != "" {
		t.Fatalf("submit mutated state (-before +after):\n%s", diff)
	}

	fake.createErr = nil
	out = coordinator.Submit(context.Background(), state, samplePending(), fake.collab())
	if !out.Succeeded() {
		t.Fatalf("retry should succeed, got %+v", out)
	}
	if fake.uploads != 2 || fake.creates != 2 {
		t.Fatalf("expected two full attempts, got uploads=%d creates=%d", fake.uploads, fake.creates)
	}
}

func TestSubmit_MapsFieldErrors(t *testing.T) {
	steps := []model.Step{
		{Key: "company", Fields: []model.FieldSpec{{Name: "legalName", Kind: model.FieldKindText}}},
		{Key: "addresses", Fields: []model.FieldSpec{{
			Name: "registered", Kind: model.FieldKindObject,
			Nested: []model.FieldSpec{{Name: "city", Kind: model.FieldKindText}},
		}}},
	}
	fake := &fakeCollaborators{storageKey: "k1", createErr: &submit.FieldError{
		Message: "validation failed",
		Fields: map[string][]string{
			"/body/legalName":      {"already taken"},
			"data.registered.city": {"unknown city"},
			"":                     {"try again later"},
		},
	}}

	out := submit.New(submit.WithSteps(steps)).Submit(context.Background(), sampleState(), samplePending(), fake.collab())
	want := map[string][]string{
		"legalName":       {"already taken"},
		"registered.city": {"unknown city"},
	}
	if diff := cmp.Diff(want, out.FieldErrors); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
	if out.Message != "try again later" {
		t.Fatalf("unexpected message %q", out.Message)
	}
}

func TestSubmit_CustomStorageKeyField(t *testing.T) {
	fake := &fakeCollaborators{storageKey: "k9"}
	coordinator := submit.New(submit.WithStorageKeyField("logoKey"))

	out := coordinator.Submit(context.Background(), sampleState(), samplePending(), fake.collab())
	if !out.Succeeded() {
		t.Fatalf("expected success, got %+v", out)
	}
	if fake.lastRecord["logoKey"] != "k9" {
		t.Fatalf("storage key not merged: %+v", fake.lastRecord)
	}
	if _, ok := fake.lastRecord["logo"]; ok {
		t.Fatalf("default field should not be set")
	}
}

func TestSubmit_MissingCollaborators(t *testing.T) {
	out := submit.New().Submit(context.Background(), sampleState(), samplePending(), submit.Collaborators{})
	if out.Kind != submit.OutcomeFailure || !errors.Is(out.Err, submit.ErrNoCollaborator) {
		t.Fatalf("expected ErrNoCollaborator failure, got %+v", out)
	}
}

func TestFlatten_Collision(t *testing.T) {
	state := model.FormState{
		"a": model.Record{"name": "x"},
		"b": model.Record{"name": "y"},
	}
	_, err := submit.Flatten(state)
	var collision *submit.CollisionError
	if !errors.As(err, &collision) {
		t.Fatalf("expected CollisionError, got %v", err)
	}
	if collision.Field != "name" {
		t.Fatalf("unexpected field %q", collision.Field)
	}
	if diff := cmp.Diff([]string{"a", "b"}, collision.Steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestFlatten_CopiesNestedValues(t *testing.T) {
	nested := map[string]any{"city": "Berlin"}
	state := model.FormState{"a": model.Record{"registered": nested}}

	flat, err := submit.Flatten(state)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	flat["registered"].(map[string]any)["city"] = "Paris"
	if nested["city"] != "Berlin" {
		t.Fatalf("Flatten aliased nested map")
	}
}
