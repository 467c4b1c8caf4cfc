package sessions_test

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
	"github.com/jrsteele09/go-xero-auth/sessions"
	"github.com/jrsteele09/go-xero-auth/token"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	tokens map[string]token.Token
	err    error
	calls  []string
}

func (f *fakeLookup) GetAccessToken(_ context.Context, userID string) (token.Token, bool, error) {
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return token.Token{}, false, f.err
	}
	t, ok := f.tokens[userID]
	return t, ok, nil
}

func TestValidator_Validate(t *testing.T) {
	principal := sessions.Principal{
		UserID:    "xero-user-1",
		Subject:   "sub-1",
		Email:     "jane@example.com",
		SessionID: "session-1",
		ExpiresAt: testNow.Add(time.Hour),
	}

	t.Run("accepted when store has a token", func(t *testing.T) {
		lookup := &fakeLookup{tokens: map[string]token.Token{
			"xero-user-1": {AccessToken: "at", ExpiresAtUTC: testNow.Add(time.Hour)},
		}}
		decision, err := sessions.NewValidator(lookup).Validate(context.Background(), principal)
		require.NoError(t, err)
		require.Equal(t, sessions.Accepted, decision)
		require.Equal(t, []string{"xero-user-1"}, lookup.calls)
	})

	t.Run("rejected when store has no token", func(t *testing.T) {
		lookup := &fakeLookup{tokens: map[string]token.Token{}}
		decision, err := sessions.NewValidator(lookup).Validate(context.Background(), principal)
		require.NoError(t, err)
		require.Equal(t, sessions.Rejected, decision)
	})

	t.Run("rejected when refresh fails", func(t *testing.T) {
		lookup := &fakeLookup{err: apperrors.Wrapf(apperrors.ErrRefreshFailed, "invalid_grant")}
		decision, err := sessions.NewValidator(lookup).Validate(context.Background(), principal)
		require.NoError(t, err)
		require.Equal(t, sessions.Rejected, decision)
	})

	t.Run("rejected without user id", func(t *testing.T) {
		lookup := &fakeLookup{}
		decision, err := sessions.NewValidator(lookup).Validate(context.Background(), sessions.Principal{Email: "jane@example.com"})
		require.NoError(t, err)
		require.Equal(t, sessions.Rejected, decision)
		require.Empty(t, lookup.calls)
	})

	t.Run("provider unreachable is returned", func(t *testing.T) {
		lookup := &fakeLookup{err: apperrors.ErrProviderUnreachable}
		decision, err := sessions.NewValidator(lookup).Validate(context.Background(), principal)
		require.ErrorIs(t, err, apperrors.ErrProviderUnreachable)
		require.Equal(t, sessions.Rejected, decision)
	})
}

func TestDecision_String(t *testing.T) {
	require.Equal(t, "accepted", sessions.Accepted.String())
	require.Equal(t, "rejected", sessions.Rejected.String())
}

func TestPrincipalContext(t *testing.T) {
	_, ok := sessions.PrincipalFromContext(context.Background())
	require.False(t, ok)

	p := sessions.Principal{UserID: "xero-user-1"}
	got, ok := sessions.PrincipalFromContext(sessions.WithPrincipal(context.Background(), p))
	require.True(t, ok)
	require.Equal(t, p, got)
}
