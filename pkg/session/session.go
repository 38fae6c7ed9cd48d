// Package session binds a wizard engine, an upload stager and a submission
// coordinator into the unit a presentation layer drives. The session holds
// the busy flag the coordinator relies on: a second Submit while one is in
// flight is refused instead of calling the create collaborator twice.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/upload"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

var (
	ErrSubmitInFlight = errors.New("session: a submission is already in progress")
	ErrNotTerminal    = errors.New("session: submit is only available on the last step")
	ErrIncomplete     = errors.New("session: steps have not been completed")
	ErrClosed         = errors.New("session: closed")
	ErrNotFound       = errors.New("session: not found")
)

// Option configures a Session.
type Option func(*Session)

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithWizardID records which wizard definition the session was built from.
func WithWizardID(id string) Option {
	return func(s *Session) {
		s.wizardID = id
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now, used by idle expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session is one user's walk through a wizard.
type Session struct {
	id       string
	wizardID string

	engine        *wizard.Engine
	stager        *upload.Stager
	coordinator   *submit.Coordinator
	collaborators submit.Collaborators
	logger        *zap.Logger
	now           func() time.Time

	busy     atomic.Bool
	closed   atomic.Bool
	mu       sync.Mutex
	lastSeen time.Time
}

// New assembles a session. The stager is owned by the session and released
// on Close.
func New(engine *wizard.Engine, stager *upload.Stager, coordinator *submit.Coordinator, collab submit.Collaborators, opts ...Option) *Session {
	s := &Session{
		id:            uuid.NewString(),
		engine:        engine,
		stager:        stager,
		coordinator:   coordinator,
		collaborators: collab,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.stager == nil {
		s.stager = upload.NewStager(nil)
	}
	if s.coordinator == nil {
		s.coordinator = submit.New(submit.WithSteps(engine.Steps()), submit.WithLogger(s.logger))
	}
	s.lastSeen = s.now()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// WizardID returns the definition id the session was created from.
func (s *Session) WizardID() string { return s.wizardID }

// Engine returns the session's wizard engine.
func (s *Session) Engine() *wizard.Engine { return s.engine }

// Stager returns the session's upload stager.
func (s *Session) Stager() *upload.Stager { return s.stager }

// Busy reports whether a submission is in flight.
func (s *Session) Busy() bool { return s.busy.Load() }

// Closed reports whether Close was called.
func (s *Session) Closed() bool { return s.closed.Load() }

// Touch records activity for idle expiry.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

// IdleSince returns the time of the last recorded activity.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Next forwards to the engine.
func (s *Session) Next(stepKey string, raw map[string]any) (wizard.Snapshot, error) {
	if s.Closed() {
		return s.engine.Snapshot(), ErrClosed
	}
	s.Touch()
	return s.engine.Next(stepKey, raw)
}

// Back forwards to the engine.
func (s *Session) Back() wizard.Snapshot {
	s.Touch()
	return s.engine.Back()
}

// Reset returns the engine to its first step and drops any staged upload.
func (s *Session) Reset() wizard.Snapshot {
	s.Touch()
	s.stager.Clear()
	return s.engine.Reset()
}

// Stage validates and stages file in place of any previous upload.
func (s *Session) Stage(file upload.File) (upload.PendingUpload, error) {
	if s.Closed() {
		return upload.PendingUpload{}, ErrClosed
	}
	s.Touch()
	return s.stager.Replace(file)
}

// Submit runs the terminal submission. It is refused while another
// submission is in flight, when the engine is not on its last step and when
// an applicable step with fields has no validated input.
// A successful outcome resets the engine and clears the staged upload;
// any other outcome leaves both untouched for a retry.
func (s *Session) Submit(ctx context.Context) (submit.Outcome, error) {
	if s.Closed() {
		return submit.Outcome{}, ErrClosed
	}
	if !s.busy.CompareAndSwap(false, true) {
		return submit.Outcome{}, ErrSubmitInFlight
	}
	defer s.busy.Store(false)
	s.Touch()

	if !s.engine.IsLast() {
		return submit.Outcome{}, ErrNotTerminal
	}
	if missing := s.engine.Incomplete(); len(missing) > 0 {
		return submit.Outcome{}, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}

	var pending *upload.PendingUpload
	if staged, ok := s.stager.Pending(); ok {
		pending = &staged
	}

	out := s.coordinator.Submit(ctx, s.engine.ActiveState(), pending, s.collaborators)
	s.logger.Info("session submit",
		zap.String("session", s.id),
		zap.String("wizard", s.wizardID),
		zap.String("outcome", string(out.Kind)),
		zap.String("stage", string(out.Stage)),
	)
	if out.Succeeded() {
		s.engine.Reset()
		s.stager.Clear()
	}
	return out, nil
}

// Close releases the staged preview. Further mutations return ErrClosed.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.stager.Close()
}
