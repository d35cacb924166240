package api

import (
	"errors"
	"net/http"

	"rentescrow/internal/service"
)

// statusForKind maps service error kinds to HTTP status codes.
func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindNotAuthorized:
		return http.StatusForbidden
	case service.KindStateConflict:
		return http.StatusConflict
	case service.KindWindowExpired, service.KindUnmappedBank:
		return http.StatusUnprocessableEntity
	case service.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeServiceError renders err. Internal errors never leak their cause.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) || svcErr.Kind == service.KindInternal {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: service.CodeInternal})
		return
	}

	writeJSON(w, statusForKind(svcErr.Kind), errorBody{Error: svcErr.Message, Code: svcErr.Code})
}
