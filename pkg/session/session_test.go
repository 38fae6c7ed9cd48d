package session_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/upload"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

func companySteps() []model.Step {
	address := []model.FieldSpec{{Name: "city", Kind: model.FieldKindText, Required: true}}
	return []model.Step{
		{
			Key:    "company",
			Fields: []model.FieldSpec{{Name: "legalName", Kind: model.FieldKindText, Required: true}},
		},
		{
			Key: "addresses",
			Fields: []model.FieldSpec{
				{Name: "isDifferent", Kind: model.FieldKindBoolean},
				{Name: "registered", Kind: model.FieldKindObject, Nested: address},
				{Name: "mailing", Kind: model.FieldKindObject, Nested: address},
			},
			Derive: []model.DerivedField{{Flag: "isDifferent", Source: "registered", Target: "mailing"}},
		},
		{Key: "logo"},
	}
}

type collaborators struct {
	mu         sync.Mutex
	uploadErr  error
	uploads    int
	creates    int
	lastRecord model.Record
	gate       chan struct{}
}

func (c *collaborators) build() submit.Collaborators {
	return submit.Collaborators{
		Upload: submit.UploaderFunc(func(ctx context.Context, _ upload.File) (submit.UploadResult, error) {
			c.mu.Lock()
			c.uploads++
			gate := c.gate
			err := c.uploadErr
			c.mu.Unlock()
			if gate != nil {
				<-gate
			}
			if err != nil {
				return submit.UploadResult{}, err
			}
			return submit.UploadResult{StorageKey: "k1"}, nil
		}),
		Create: submit.CreatorFunc(func(_ context.Context, record model.Record) (submit.Entity, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.creates++
			c.lastRecord = record
			return submit.Entity{ID: "c1"}, nil
		}),
	}
}

func newSession(t *testing.T, collab *collaborators) *session.Session {
	t.Helper()
	engine, err := wizard.New(companySteps())
	if err != nil {
		t.Fatalf("wizard.New: %v", err)
	}
	stager := upload.NewStager(upload.NewMemoryPreviews(""))
	coordinator := submit.New(submit.WithSteps(engine.Steps()))
	s := session.New(engine, stager, coordinator, collab.build(), session.WithWizardID("create-company"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func walkToTerminal(t *testing.T, s *session.Session) {
	t.Helper()
	snap, err := s.Next("company", map[string]any{"legalName": "Acme"})
	if err != nil {
		t.Fatalf("company step: %v", err)
	}
	if snap.Index != 1 {
		t.Fatalf("expected index 1, got %d", snap.Index)
	}
	snap, err = s.Next("addresses", map[string]any{
		"isDifferent": false,
		"registered":  map[string]any{"city": "X"},
		"mailing":     map[string]any{"city": "Y"},
	})
	if err != nil {
		t.Fatalf("addresses step: %v", err)
	}
	if snap.Index != 2 {
		t.Fatalf("expected index 2, got %d", snap.Index)
	}
}

func pngLogo() upload.File {
	return upload.File{Name: "logo.png", MimeType: "image/png", Content: bytes.Repeat([]byte{7}, 64)}
}

func TestScenario_MissingUpload(t *testing.T) {
	collab := &collaborators{}
	s := newSession(t, collab)
	walkToTerminal(t, s)

	mailing, ok := s.Engine().State()["addresses"]["mailing"].(model.Record)
	if !ok || mailing["city"] != "X" {
		t.Fatalf("expected mirrored mailing city X, got %#v", s.Engine().State()["addresses"]["mailing"])
	}

	out, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Kind != submit.OutcomeMissingInput {
		t.Fatalf("expected missing input outcome, got %s", out.Kind)
	}
	if s.Engine().CurrentIndex() != 2 {
		t.Fatalf("index moved to %d", s.Engine().CurrentIndex())
	}
	if collab.uploads != 0 || collab.creates != 0 {
		t.Fatalf("collaborators called")
	}
}

func TestScenario_SuccessResets(t *testing.T) {
	collab := &collaborators{}
	s := newSession(t, collab)
	walkToTerminal(t, s)

	if _, err := s.Stage(pngLogo()); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	out, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Succeeded() || out.Entity == nil || out.Entity.ID != "c1" {
		t.Fatalf("expected success with c1, got %+v", out)
	}
	if collab.lastRecord["logo"] != "k1" || collab.lastRecord["legalName"] != "Acme" {
		t.Fatalf("unexpected create record %#v", collab.lastRecord)
	}

	snap := s.Engine().Snapshot()
	if snap.Index != 0 || len(snap.State) != 0 {
		t.Fatalf("session not reset: index=%d state=%v", snap.Index, snap.State)
	}
	if _, ok := s.Stager().Pending(); ok {
		t.Fatalf("staged upload not cleared")
	}
}

func TestScenario_UploadFailureKeepsState(t *testing.T) {
	collab := &collaborators{uploadErr: errors.New("network")}
	s := newSession(t, collab)
	walkToTerminal(t, s)
	if _, err := s.Stage(pngLogo()); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	before := s.Engine().Snapshot()

	out, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Kind != submit.OutcomeFailure {
		t.Fatalf("expected failure, got %s", out.Kind)
	}
	if collab.creates != 0 {
		t.Fatalf("create invoked after upload failure")
	}
	if diff := cmp.Diff(before, s.Engine().Snapshot()); diff != "" {
		t.Fatalf("session changed (-before +after):\n%s", diff)
	}
	if _, ok := s.Stager().Pending(); !ok {
		t.Fatalf("staged upload dropped on failure")
	}
}

func TestSubmit_NotTerminal(t *testing.T) {
	s := newSession(t, &collaborators{})
	if _, err := s.Submit(context.Background()); !errors.Is(err, session.ErrNotTerminal) {
		t.Fatalf("expected ErrNotTerminal, got %v", err)
	}
}

func TestSubmit_TerminalStepMustBeStored(t *testing.T) {
	steps := []model.Step{
		{Key: "company", Fields: []model.FieldSpec{{Name: "legalName", Kind: model.FieldKindText, Required: true}}},
		{Key: "contact", Fields: []model.FieldSpec{{Name: "email", Kind: model.FieldKindEmail, Required: true}}},
	}
	engine, err := wizard.New(steps)
	if err != nil {
		t.Fatalf("wizard.New: %v", err)
	}
	collab := &collaborators{}
	s := session.New(engine,
		upload.NewStager(upload.NewMemoryPreviews("")),
		submit.New(submit.WithSteps(steps)),
		collab.build(),
	)
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.Next("company", map[string]any{"legalName": "Acme"}); err != nil {
		t.Fatalf("company step: %v", err)
	}
	if _, err := s.Stage(pngLogo()); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	if _, err := s.Submit(context.Background()); !errors.Is(err, session.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if collab.uploads != 0 || collab.creates != 0 {
		t.Fatalf("collaborators called for an incomplete wizard")
	}

	if _, err := s.Next("contact", map[string]any{"email": "ops@acme.test"}); err != nil {
		t.Fatalf("contact step: %v", err)
	}
	out, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Succeeded() || collab.lastRecord["email"] != "ops@acme.test" {
		t.Fatalf("expected success with email, got %+v record=%#v", out, collab.lastRecord)
	}
}

func TestSubmit_BusyFlagRejectsReentry(t *testing.T) {
	collab := &collaborators{gate: make(chan struct{})}
	s := newSession(t, collab)
	walkToTerminal(t, s)
	if _, err := s.Stage(pngLogo()); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	done := make(chan submit.Outcome, 1)
	go func() {
		out, _ := s.Submit(context.Background())
		done <- out
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Busy() {
		if time.Now().After(deadline) {
			t.Fatalf("first submit never became busy")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := s.Submit(context.Background()); !errors.Is(err, session.ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}

	close(collab.gate)
	out := <-done
	if !out.Succeeded() {
		t.Fatalf("first submit should succeed, got %+v", out)
	}
	if collab.creates != 1 {
		t.Fatalf("expected exactly one create, got %d", collab.creates)
	}
}

func TestClose_ReleasesPreviewAndRejects(t *testing.T) {
	previews := upload.NewMemoryPreviews("")
	engine, err := wizard.New(companySteps())
	if err != nil {
		t.Fatalf("wizard.New: %v", err)
	}
	s := session.New(engine, upload.NewStager(previews), nil, (&collaborators{}).build())

	if _, err := s.Stage(pngLogo()); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if previews.Live() != 0 {
		t.Fatalf("close leaked %d previews", previews.Live())
	}
	if _, err := s.Stage(pngLogo()); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("expected ErrClosed from submit, got %v", err)
	}
}

func TestReset_ClearsStagedUpload(t *testing.T) {
	s := newSession(t, &collaborators{})
	walkToTerminal(t, s)
	if _, err := s.Stage(pngLogo()); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	snap := s.Reset()
	if snap.Index != 0 {
		t.Fatalf("expected index 0, got %d", snap.Index)
	}
	if _, ok := s.Stager().Pending(); ok {
		t.Fatalf("reset kept staged upload")
	}
}
