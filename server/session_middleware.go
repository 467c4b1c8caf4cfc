package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-xero-auth/sessions"
	"github.com/rs/zerolog/log"
)

// ValidateSession decodes the session cookie and checks with the validator
// that the user still has a token. Accepted sessions put the principal on the
// request context. A cookie that fails either check is cleared and the request
// continues anonymously.
func (s *Server) ValidateSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.config.GetSessionCookieName())
		if err != nil || cookie.Value == "" {
			next(w, r)
			return
		}

		principal, err := s.codec.Decode(cookie.Value)
		if err != nil {
			log.Debug().Err(err).Msg("Session cookie discarded")
			s.clearSessionCookie(w, r)
			next(w, r)
			return
		}

		decision, err := s.validator.Validate(r.Context(), principal)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if decision == sessions.Rejected {
			s.clearSessionCookie(w, r)
			next(w, r)
			return
		}

		next(w, r.WithContext(sessions.WithPrincipal(r.Context(), principal)))
	}
}

// RequireSession challenges anonymous requests with the sign-in flow.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessions.PrincipalFromContext(r.Context()); !ok {
			http.Redirect(w, r, signInURL(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func signInURL(returnURL string) string {
	return RouteSignIn + "?" + url.Values{ParamReturnURL: {returnURL}}.Encode()
}

func signUpURL(returnURL string) string {
	return RouteSignUp + "?" + url.Values{ParamReturnURL: {returnURL}}.Encode()
}
