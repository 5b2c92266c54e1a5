package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"ai-care-assistant-service/internal/apperr"
	"ai-care-assistant-service/internal/observability/logging"
)

type errorBody struct {
	Error string `json:"error"`
}

type handlers struct {
	deps Dependencies
}

func requestLogger(r *http.Request) zerolog.Logger {
	return logging.WithRequest(middleware.GetReqID(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeAppError sends validation messages verbatim and replaces anything
// else with internalMessage.
func writeAppError(w http.ResponseWriter, err error, internalMessage string) {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	}
	writeError(w, apperr.HTTPStatus(err), internalMessage)
}
