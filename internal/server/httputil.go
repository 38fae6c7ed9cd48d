package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// StatusError carries the HTTP status a handler error should be reported with.
type StatusError struct {
	Code    int
	ErrCode string
	Err     error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

// StatusCode returns the response status, defaulting to 500.
func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Fields any    `json:"fields,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorBody{Error: message, Code: code})
}

func (s *Server) writeFieldErrors(w http.ResponseWriter, status int, code, message string, fields any) {
	s.writeJSON(w, status, errorBody{Error: message, Code: code, Fields: fields})
}

// writeStatusError reports err with the status it carries, or 500.
func (s *Server) writeStatusError(w http.ResponseWriter, err error) {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.ErrCode
		if code == "" {
			code = "ERROR"
		}
		s.writeError(w, statusErr.StatusCode(), code, statusErr.Error())
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return StatusError{Code: http.StatusBadRequest, ErrCode: "INVALID_BODY", Err: err}
	}
	return nil
}

// pagination holds parsed listing parameters.
type pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads page_size and offset, clamping page_size to 100.
func parsePagination(r *http.Request) pagination {
	p := pagination{Limit: 20}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}
