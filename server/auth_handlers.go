package server

import (
	"net/http"

	"github.com/jrsteele09/go-xero-auth/authflow"
	"github.com/rs/zerolog/log"
)

// BeginFlowHandler redirects the browser to the provider to start flow.
func (s *Server) BeginFlowHandler(flow authflow.Flow) http.HandlerFunc {
	defaultReturn := RouteOutstandingInvoices
	if flow == authflow.SignIn {
		defaultReturn = RouteHello
	}

	return func(w http.ResponseWriter, r *http.Request) {
		returnURL := r.URL.Query().Get(ParamReturnURL)
		if returnURL == "" {
			returnURL = defaultReturn
		}

		authURL, err := s.flows.Begin(r.Context(), flow, returnURL)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes flow and issues the session cookie.
func (s *Server) CallbackHandler(flow authflow.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params and POST form data
		if errorParam := r.FormValue("error"); errorParam != "" {
			log.Warn().
				Str("flow", flow.String()).
				Str("error", errorParam).
				Str("error_description", r.FormValue("error_description")).
				Msg("Authorization denied by provider")
			writeJSONError(w, errorParam, "Authorization was not granted", http.StatusBadRequest)
			return
		}

		principal, returnURL, err := s.flows.Complete(r.Context(), flow, r.FormValue("state"), r.FormValue("code"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		value, principal, err := s.codec.Encode(principal)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.setSessionCookie(w, r, value, principal.ExpiresAt)

		http.Redirect(w, r, authflow.LocalReturnURL(returnURL), http.StatusSeeOther)
	}
}

// SignOutHandler ends the local session only. The stored token is kept and
// the user stays signed in at the provider.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.clearSessionCookie(w, r)
		http.Redirect(w, r, RouteIndex, http.StatusSeeOther)
	}
}

// AddConnectionHandler signs out locally and starts the sign-up flow again so
// the user can authorise more organisations. The provider session is reused so
// no new login is needed.
func (s *Server) AddConnectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.clearSessionCookie(w, r)
		http.Redirect(w, r, signUpURL(RouteOutstandingInvoices), http.StatusSeeOther)
	}
}
