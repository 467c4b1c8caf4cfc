package server

import (
	"net/http"

	"github.com/jrsteele09/go-xero-auth/sessions"
)

// IndexHandler sends signed in users to their invoices and lists the entry
// points for everyone else.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessions.PrincipalFromContext(r.Context()); ok {
			http.Redirect(w, r, RouteOutstandingInvoices, http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"app":     s.config.GetAppName(),
			"sign_in": RouteSignIn,
			"sign_up": RouteSignUp,
		})
	}
}

type tenantResponse struct {
	TenantID            string `json:"tenant_id"`
	TenantType          string `json:"tenant_type"`
	OrganisationName    string `json:"organisation_name"`
	OutstandingInvoices int    `json:"outstanding_invoices"`
}

type outstandingInvoicesResponse struct {
	Name    string           `json:"name"`
	Data    map[string]int   `json:"data"`
	Tenants []tenantResponse `json:"tenants"`
}

// OutstandingInvoicesHandler reports, per connected organisation, how many
// sales invoices are awaiting payment.
func (s *Server) OutstandingInvoicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := sessions.PrincipalFromContext(r.Context())

		result, err := s.tenants.Enumerate(r.Context(), principal.UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if result.NoTenants {
			http.Redirect(w, r, RouteNoTenants, http.StatusSeeOther)
			return
		}

		resp := outstandingInvoicesResponse{
			Name:    principal.Name(),
			Data:    result.Data(),
			Tenants: make([]tenantResponse, 0, len(result.Tenants)),
		}
		for _, t := range result.Tenants {
			resp.Tenants = append(resp.Tenants, tenantResponse{
				TenantID:            t.TenantID.String(),
				TenantType:          t.TenantType,
				OrganisationName:    t.OrganisationName,
				OutstandingInvoices: t.OutstandingInvoices,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) NoTenantsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":        "No organisations are connected to this application.",
			"add_connection": RouteAddConnection,
		})
	}
}

// HelloHandler greets a signed in user. It needs no API access so it works
// for sessions from either flow.
func (s *Server) HelloHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := sessions.PrincipalFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Hello, " + principal.Name(),
			"user_id": principal.UserID,
			"email":   principal.Email,
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
