package authflow

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
)

// Flow selects one of the two authentication schemes. Both share the same
// client registration and differ only in scopes and callback path.
type Flow int

const (
	// SignIn asks for identity scopes only. Its tokens cannot be refreshed.
	SignIn Flow = iota
	// SignUp additionally asks for offline_access and the accounting scopes.
	SignUp
)

func (f Flow) String() string {
	switch f {
	case SignIn:
		return "signin"
	case SignUp:
		return "signup"
	default:
		return fmt.Sprintf("flow(%d)", int(f))
	}
}

// ParseFlow is the inverse of Flow.String.
func ParseFlow(s string) (Flow, error) {
	switch s {
	case "signin":
		return SignIn, nil
	case "signup":
		return SignUp, nil
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrUnknownFlow, s)
}

// Scheme is the per-flow part of the client configuration.
type Scheme struct {
	Scopes       []string
	CallbackPath string
}
