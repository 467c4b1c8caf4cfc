package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
	"github.com/rs/zerolog/log"
)

// writeError maps a failure from the flow, session or connection layers to a
// response. A lost token sends the browser back through authentication.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrNoTokenForUser), apperrors.Is(err, apperrors.ErrRefreshFailed):
		log.Info().Err(err).Str("path", r.URL.Path).Msg("Token unavailable, signing in again")
		s.clearSessionCookie(w, r)
		http.Redirect(w, r, signInURL(r.URL.RequestURI()), http.StatusSeeOther)

	case apperrors.Is(err, apperrors.ErrUnauthorized):
		// The token lacks the scopes or tenant access; sign-up asks for them.
		log.Info().Err(err).Str("path", r.URL.Path).Msg("Access rejected by API, signing up again")
		s.clearSessionCookie(w, r)
		http.Redirect(w, r, signUpURL(r.URL.RequestURI()), http.StatusSeeOther)

	case apperrors.Is(err, apperrors.ErrProviderUnreachable):
		log.Err(err).Str("path", r.URL.Path).Msg("Identity provider unreachable")
		writeJSONError(w, "provider_unavailable", "The identity provider could not be reached", http.StatusBadGateway)

	case apperrors.Is(err, apperrors.ErrInvalidState),
		apperrors.Is(err, apperrors.ErrInvalidGrant),
		apperrors.Is(err, apperrors.ErrInvalidIDToken),
		apperrors.Is(err, apperrors.ErrMissingUserID):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
		writeJSONError(w, "authentication_failed", "Authentication could not be completed", http.StatusBadRequest)

	case apperrors.Is(err, apperrors.ErrUnknownFlow):
		writeJSONError(w, "not_found", "Unknown authentication flow", http.StatusNotFound)

	default:
		log.Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeJSONError(w, "server_error", "An unexpected error occurred", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write response")
	}
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
