package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/satindergrewal/cueline/internal/session"
	"github.com/satindergrewal/cueline/internal/song"
	"github.com/satindergrewal/cueline/internal/validation"
)

// maxBody caps request bodies; lyrics are the largest thing we accept.
const maxBody = 1 << 20

// Error codes.
const (
	CodeBadRequest  = "bad_request"
	CodeValidation  = "validation_error"
	CodeNotFound    = "not_found"
	CodeConflict    = "conflict"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal_error"
)

// ErrorBody is the error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message, Details: details}})
}

// classify maps a domain error to its HTTP status and envelope.
func classify(err error) (int, ErrorDetail) {
	var ve *validation.Error
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorDetail{Code: CodeValidation, Message: "validation failed", Details: ve.Fields}
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest, ErrorDetail{Code: CodeBadRequest, Message: err.Error()}
	case errors.Is(err, song.ErrNotFound):
		return http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, session.ErrNoSong), errors.Is(err, session.ErrArmWhileScrolling):
		return http.StatusConflict, ErrorDetail{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, session.ErrStopped):
		return http.StatusServiceUnavailable, ErrorDetail{Code: CodeUnavailable, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal error"}
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorBody{Error: detail})
}

var errBadJSON = errors.New("malformed JSON body")

type badJSON struct{ err error }

func (b badJSON) Error() string { return errBadJSON.Error() + ": " + b.err.Error() }
func (b badJSON) Is(target error) bool { return target == errBadJSON }
func (b badJSON) Unwrap() error { return b.err }

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badJSON{err}
	}
	return nil
}
