package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/options"
)

type optionsResponse struct {
	Data []model.Option `json:"data"`
}

// searchOptions serves typeahead results over a field's declared options:
// GET /api/wizards/{wizard}/options/{field}?q=&limit=
func (s *Server) searchOptions(w http.ResponseWriter, r *http.Request) {
	def, ok := s.defs.Wizard(chi.URLParam(r, "wizard"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "UNKNOWN_WIZARD", "unknown wizard")
		return
	}
	path := chi.URLParam(r, "field")
	field, ok := options.Field(def.Steps, path)
	if !ok || len(field.Options) == 0 {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("field %q has no options", path))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results := options.Search(field.Options, r.URL.Query().Get("q"), limit, s.optionSearch)
	if results == nil {
		results = []model.Option{}
	}
	s.writeJSON(w, http.StatusOK, optionsResponse{Data: results})
}
