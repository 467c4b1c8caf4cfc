package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Authentication flows. The callback paths are configurable and are
	// registered from config; these are the defaults.
	RouteSignIn         = "/signin"
	RouteSignUp         = "/signup"
	RouteSignInCallback = "/signin-oidc"
	RouteSignUpCallback = "/signup-oidc"
	RouteSignOut        = "/signout"
	RouteAddConnection  = "/add-connection"

	// Protected pages
	RouteOutstandingInvoices = "/outstanding-invoices"
	RouteNoTenants           = "/no-tenants"
	RouteHello               = "/hello"

	RouteHealth = "/healthz"

	// Query parameter carrying the local path to return to after authentication
	ParamReturnURL = "returnUrl"
)
