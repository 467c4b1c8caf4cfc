package server

import (
	"net/http"

	"github.com/jrsteele09/go-xero-auth/authflow"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// Sign in / sign up. Callbacks accept POST for the form_post response mode.
	s.RegisterRouteHandler("GET "+RouteSignIn, ChainMiddleware(s.BeginFlowHandler(authflow.SignIn), s.FlowMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSignUp, ChainMiddleware(s.BeginFlowHandler(authflow.SignUp), s.FlowMiddleWare()...))
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		s.RegisterRouteHandler(method+" "+s.config.GetSignInCallbackPath(), ChainMiddleware(s.CallbackHandler(authflow.SignIn), s.FlowMiddleWare()...))
		s.RegisterRouteHandler(method+" "+s.config.GetSignUpCallbackPath(), ChainMiddleware(s.CallbackHandler(authflow.SignUp), s.FlowMiddleWare()...))
	}
	s.RegisterRouteHandler("GET "+RouteSignOut, ChainMiddleware(s.SignOutHandler(), s.FlowMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAddConnection, ChainMiddleware(s.AddConnectionHandler(), s.FlowMiddleWare()...))

	// Pages that need an authenticated session
	s.RegisterRouteHandler("GET "+RouteOutstandingInvoices, ChainMiddleware(s.OutstandingInvoicesHandler(), s.HTMLMiddleWare(s.RequireSession)...))
	s.RegisterRouteHandler("GET "+RouteNoTenants, ChainMiddleware(s.NoTenantsHandler(), s.HTMLMiddleWare(s.RequireSession)...))
	s.RegisterRouteHandler("GET "+RouteHello, ChainMiddleware(s.HelloHandler(), s.HTMLMiddleWare(s.RequireSession)...))
}
