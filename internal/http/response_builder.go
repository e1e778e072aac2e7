package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"feeledger/internal/core"
	"feeledger/internal/log"
)

type errorPayload struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindAuth:
		return http.StatusUnauthorized
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindSizeLimit:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the JSON error body. Store and unclassified errors
// are logged in full and reported to the client with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)

	payload := errorPayload{Status: status, Code: string(kind)}
	var ce *core.Error
	if errors.As(err, &ce) {
		payload.Message = ce.Message
		payload.Field = ce.Field
	}

	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldErrorKind, string(kind),
			log.FieldError, err.Error())
		payload.Code = string(core.KindStore)
		payload.Message = "internal error"
		payload.Field = ""
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path,
			log.FieldErrorKind, string(kind),
			log.FieldError, err.Error())
	}
	if payload.Message == "" {
		payload.Message = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: payload})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
