package sessions

import (
	"context"

	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
	"github.com/jrsteele09/go-xero-auth/token"
	"github.com/rs/zerolog/log"
)

// TokenLookup is the token store read used to back a session.
type TokenLookup interface {
	GetAccessToken(ctx context.Context, userID string) (token.Token, bool, error)
}

// Decision is the outcome of validating a session for one request.
type Decision int

const (
	Rejected Decision = iota
	Accepted
)

func (d Decision) String() string {
	if d == Accepted {
		return "accepted"
	}
	return "rejected"
}

// Validator checks on every authenticated request that the session's user
// still has a token. A cookie can outlive its token, e.g. after a restart
// empties the in-memory store.
type Validator struct {
	tokens TokenLookup
}

func NewValidator(tokens TokenLookup) *Validator {
	return &Validator{tokens: tokens}
}

// Validate accepts p if the store returns a token for p.UserID. A missing
// entry or a failed refresh rejects the session; other failures, such as an
// unreachable provider, are returned to the caller.
func (v *Validator) Validate(ctx context.Context, p Principal) (Decision, error) {
	if p.UserID == "" {
		return Rejected, nil
	}

	_, ok, err := v.tokens.GetAccessToken(ctx, p.UserID)
	switch {
	case apperrors.Is(err, apperrors.ErrRefreshFailed):
		log.Info().Err(err).Str("user_id", p.UserID).Msg("Session rejected, token can no longer be refreshed")
		return Rejected, nil
	case err != nil:
		return Rejected, apperrors.Wrapf(err, "[sessions Validate] user %s", p.UserID)
	case !ok:
		log.Info().Str("user_id", p.UserID).Msg("Session rejected, no token for user")
		return Rejected, nil
	}
	return Accepted, nil
}
