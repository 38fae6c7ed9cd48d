package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	formwizard "github.com/goliatone/go-formwizard"
	"github.com/goliatone/go-formwizard/pkg/definition"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/upload"
	"github.com/goliatone/go-formwizard/pkg/validation"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// maxUploadBody bounds multipart and JSON upload bodies independently of the
// per-wizard limit, which the stager enforces.
const maxUploadBody = 32 << 20

type sessionView struct {
	ID       string                `json:"id"`
	Wizard   string                `json:"wizard"`
	Snapshot wizard.Snapshot       `json:"snapshot"`
	Upload   *upload.PendingUpload `json:"upload,omitempty"`
}

type stepRequest struct {
	Step   string         `json:"step"`
	Values map[string]any `json:"values"`
}

type uploadRequest struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Content  []byte `json:"content"`
}

type wizardView struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Steps       []string `json:"steps"`
}

func (s *Server) listWizards(w http.ResponseWriter, _ *http.Request) {
	ids := s.defs.IDs()
	out := make([]wizardView, 0, len(ids))
	for _, id := range ids {
		def, _ := s.defs.Wizard(id)
		view := wizardView{ID: id, Title: def.Title, Description: def.Description}
		for _, step := range def.Steps {
			view.Steps = append(view.Steps, step.Key)
		}
		out = append(out, view)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) openAPI(w http.ResponseWriter, _ *http.Request) {
	ids := s.defs.IDs()
	defs := make([]definition.Definition, 0, len(ids))
	for _, id := range ids {
		def, _ := s.defs.Wizard(id)
		defs = append(defs, def)
	}
	s.writeJSON(w, http.StatusOK, definition.OpenAPI("formwizard", Version, defs...))
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	wizardID := chi.URLParam(r, "wizard")
	def, ok := s.defs.Wizard(wizardID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "UNKNOWN_WIZARD", fmt.Sprintf("unknown wizard %q", wizardID))
		return
	}

	sess, err := s.newSession(def)
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	s.sessions.Add(sess)
	s.logger.Info("session created",
		zap.String("session", sess.ID()),
		zap.String("wizard", def.ID),
	)
	s.writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) newSession(def definition.Definition) (*session.Session, error) {
	sess, err := formwizard.NewSession(def, s.store.Collaborators(), s.previews, s.logger)
	if err != nil {
		return nil, fmt.Errorf("server: build session for %s: %w", def.ID, err)
	}
	return sess, nil
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Remove(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
			return
		}
		s.writeStatusError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) nextStep(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req stepRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeStatusError(w, err)
		return
	}
	snap, err := sess.Next(req.Step, req.Values)
	if err != nil {
		s.writeStepError(w, snap, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) writeStepError(w http.ResponseWriter, snap wizard.Snapshot, err error) {
	var invalid *validation.Error
	switch {
	case errors.As(err, &invalid):
		s.writeFieldErrors(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "the step has invalid fields", invalid.Fields)
	case errors.Is(err, wizard.ErrStepMismatch), errors.Is(err, wizard.ErrUnknownStep):
		s.writeError(w, http.StatusConflict, "STEP_MISMATCH", err.Error())
	case errors.Is(err, session.ErrClosed):
		s.writeError(w, http.StatusGone, "SESSION_CLOSED", err.Error())
	default:
		s.logger.Error("step failed", zap.String("step", snap.Key), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (s *Server) previousStep(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Back())
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Reset())
}

// submitSession optionally stores the terminal step's values before
// submitting, so a client can post the last step and submit in one call.
func (s *Server) submitSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if r.ContentLength != 0 {
		var req stepRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeStatusError(w, err)
			return
		}
		if req.Step != "" {
			if snap, err := sess.Next(req.Step, req.Values); err != nil {
				s.writeStepError(w, snap, err)
				return
			}
		}
	}

	out, err := sess.Submit(r.Context())
	switch {
	case errors.Is(err, session.ErrSubmitInFlight):
		s.writeError(w, http.StatusConflict, "SUBMIT_IN_FLIGHT", err.Error())
		return
	case errors.Is(err, session.ErrNotTerminal):
		s.writeError(w, http.StatusBadRequest, "NOT_TERMINAL", err.Error())
		return
	case errors.Is(err, session.ErrIncomplete):
		s.writeError(w, http.StatusUnprocessableEntity, "INCOMPLETE", err.Error())
		return
	case errors.Is(err, session.ErrClosed):
		s.writeError(w, http.StatusGone, "SESSION_CLOSED", err.Error())
		return
	case err != nil:
		s.writeStatusError(w, err)
		return
	}

	s.writeJSON(w, outcomeStatus(out), out)
}

// outcomeStatus maps a submission outcome onto a response status. Failures
// the user can fix are 422; collaborator failures are 502; wizard
// misconfiguration is 500.
func outcomeStatus(out submit.Outcome) int {
	switch {
	case out.Succeeded():
		return http.StatusCreated
	case out.Kind == submit.OutcomeMissingInput, len(out.FieldErrors) > 0:
		return http.StatusUnprocessableEntity
	case out.Stage == submit.StageUpload, out.Stage == submit.StageCreate:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) stageUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	file, err := readUpload(r)
	if err != nil {
		s.writeStatusError(w, err)
		return
	}

	pending, err := sess.Stage(file)
	var rejected *upload.RejectedError
	switch {
	case errors.As(err, &rejected):
		s.writeFieldErrors(w, http.StatusUnprocessableEntity, "UPLOAD_REJECTED", rejected.Error(), map[string]string{
			"reason":   rejected.Reason,
			"fileName": rejected.FileName,
		})
		return
	case errors.Is(err, session.ErrClosed), errors.Is(err, upload.ErrClosed):
		s.writeError(w, http.StatusGone, "SESSION_CLOSED", err.Error())
		return
	case err != nil:
		s.writeStatusError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pending)
}

func (s *Server) clearUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Touch()
	sess.Stager().Clear()
	w.WriteHeader(http.StatusNoContent)
}

// readUpload accepts a multipart "file" part or a JSON body with base64
// content.
func readUpload(r *http.Request) (upload.File, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		part, header, err := r.FormFile("file")
		if err != nil {
			return upload.File{}, StatusError{Code: http.StatusBadRequest, ErrCode: "INVALID_BODY", Err: err}
		}
		defer part.Close()
		content, err := io.ReadAll(part)
		if err != nil {
			return upload.File{}, StatusError{Code: http.StatusBadRequest, ErrCode: "INVALID_BODY", Err: err}
		}
		return upload.File{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Content:  content,
		}, nil
	}

	var req uploadRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return upload.File{}, StatusError{Code: http.StatusBadRequest, ErrCode: "INVALID_BODY", Err: err}
	}
	if strings.TrimSpace(req.Name) == "" {
		return upload.File{}, StatusError{Code: http.StatusBadRequest, ErrCode: "INVALID_BODY", Err: errors.New("name is required")}
	}
	return upload.File{Name: req.Name, MimeType: req.MimeType, Content: req.Content}, nil
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
		return nil, false
	}
	return sess, true
}

func viewOf(sess *session.Session) sessionView {
	view := sessionView{
		ID:       sess.ID(),
		Wizard:   sess.WizardID(),
		Snapshot: sess.Engine().Snapshot(),
	}
	if pending, ok := sess.Stager().Pending(); ok {
		view.Upload = &pending
	}
	return view
}
