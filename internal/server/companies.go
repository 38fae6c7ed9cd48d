package server

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-formwizard/internal/store"
)

type companyList struct {
	Data   []store.Company `json:"data"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	companies, total, err := s.store.List(r.Context(), store.Page{Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	if companies == nil {
		companies = []store.Company{}
	}
	s.writeJSON(w, http.StatusOK, companyList{Data: companies, Total: total, Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	company, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "company not found")
		return
	}
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, company)
}

// getUpload serves a persisted upload by storage key.
func (s *Server) getUpload(w http.ResponseWriter, r *http.Request) {
	file, err := s.store.File(r.Context(), chi.URLParam(r, "key"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "upload not found")
		return
	}
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	w.Header().Set("Content-Type", file.MimeType)
	http.ServeContent(w, r, file.Name, time.Time{}, bytes.NewReader(file.Content))
}
