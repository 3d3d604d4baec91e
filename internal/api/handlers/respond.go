package handlers

import (
	"encoding/json"
	stdErrors "errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"qrstudio/internal/engine/render"
	"qrstudio/internal/engine/sessions"
	"qrstudio/internal/engine/studio"
	"qrstudio/internal/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// studioError maps controller and session errors onto an HTTP status and
// an error envelope.
func studioError(err error) (int, errors.ErrorResponse) {
	status, code, message := http.StatusUnprocessableEntity, errors.ErrCodeRenderFailed, err.Error()
	var details interface{}

	switch {
	case stdErrors.Is(err, studio.ErrTemplateOutOfRange):
		status, code = http.StatusBadRequest, errors.ErrCodeInvalidTemplate
		details = map[string]int{"templates": len(studio.Templates())}
	case stdErrors.Is(err, studio.ErrInvalidSize):
		status, code = http.StatusBadRequest, errors.ErrCodeInvalidInput
		details = map[string]interface{}{"sizes": studio.Sizes()}
	case stdErrors.Is(err, studio.ErrInvalidColor), stdErrors.Is(err, studio.ErrInvalidChannel):
		status, code = http.StatusBadRequest, errors.ErrCodeInvalidInput
	case stdErrors.Is(err, sessions.ErrNotFound):
		status, code, message = http.StatusNotFound, errors.ErrCodeNotFound, "Session not found or expired"
	case stdErrors.Is(err, sessions.ErrCapacity):
		status, code, message = http.StatusServiceUnavailable, errors.ErrCodeCapacityExceeded, "Too many active sessions"
	case stdErrors.Is(err, render.ErrNotDrawn):
		status = http.StatusConflict
	default:
		log.Error().Err(err).Msg("render failed")
	}

	return status, errors.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	}
}

func writeStudioError(w http.ResponseWriter, err error) {
	status, body := studioError(err)
	errors.WriteError(w, status, body.Code, body.Message, body.Details)
}
