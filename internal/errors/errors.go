package errors

import (
	"errors"
	"fmt"
)

// Common error types for the Xero sign-in / sign-up client
var (
	// Token store errors
	ErrNoTokenForUser = errors.New("no token for user")

	// Identity provider errors
	ErrRefreshFailed       = errors.New("token refresh failed")
	ErrProviderUnreachable = errors.New("identity provider unreachable")
	ErrUnauthorized        = errors.New("unauthorized")

	// Authentication flow errors
	ErrInvalidState   = errors.New("invalid state parameter")
	ErrInvalidGrant   = errors.New("invalid grant")
	ErrInvalidIDToken = errors.New("invalid id token")
	ErrMissingUserID  = errors.New("missing user id claim")
	ErrUnknownFlow    = errors.New("unknown authentication flow")

	// Session errors
	ErrSessionInvalid = errors.New("session invalid")
	ErrSessionExpired = errors.New("session expired")

	// General errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnexpected    = errors.New("unexpected response")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
