package sessions

import (
	"context"
	"strings"
	"time"
)

// UserIDClaim is the provider specific claim carrying the stable external user id.
const UserIDClaim = "xero_userid"

// Principal is the authenticated identity attached to a session. It refers to
// the user's token by UserID only; the token store owns the token.
type Principal struct {
	UserID     string    // Value of the xero_userid claim
	Subject    string    // OIDC sub
	GivenName  string    // given_name claim
	FamilyName string    // family_name claim
	Email      string    // email claim
	SessionID  string    // Unique id of this session cookie
	IssuedAt   time.Time // When the session was established
	ExpiresAt  time.Time // When the session cookie stops being accepted
}

// Name returns the display name built from the given and family names.
func (p Principal) Name() string {
	return strings.TrimSpace(p.GivenName + " " + p.FamilyName)
}

type contextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the principal attached by the session middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
