package store

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
	"github.com/jrsteele09/go-xero-auth/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Refresher returns a currently valid version of a token, refreshing it with
// the identity provider when it has expired.
type Refresher interface {
	GetCurrentValidToken(ctx context.Context, t token.Token) (token.Token, error)
}

// Store maps an external user id to that user's current token. It is the only
// owner of the tokens; sessions refer to entries by user id.
//
// Entries live until overwritten or the process exits. There is no delete.
type Store struct {
	refresher Refresher

	mu     sync.RWMutex
	tokens map[string]token.Token

	refreshes singleflight.Group
}

// New creates an empty in-memory token store that refreshes through refresher.
func New(refresher Refresher) *Store {
	return &Store{
		refresher: refresher,
		tokens:    make(map[string]token.Token),
	}
}

// SetToken stores t for userID, replacing any existing entry.
func (s *Store) SetToken(userID string, t token.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = t
}

// GetAccessToken returns a valid token for userID. The stored token is passed
// through the refresher and the result is written back before it is returned,
// so a read may replace the entry.
//
// The bool is false, with a nil error, when the store holds no entry for the
// user. Concurrent reads for the same user share one refresh exchange. The
// exchange is not cancelled with ctx: if ctx ends first the caller gets
// ctx.Err() while the refresh still completes and commits.
func (s *Store) GetAccessToken(ctx context.Context, userID string) (token.Token, bool, error) {
	if _, ok := s.get(userID); !ok {
		return token.Token{}, false, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := s.refreshes.DoChan(userID, func() (interface{}, error) {
		current, ok := s.get(userID)
		if !ok {
			return nil, apperrors.ErrNoTokenForUser
		}

		refreshed, err := s.refresher.GetCurrentValidToken(detached, current)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Token refresh failed")
			return nil, err
		}

		return s.commit(userID, current, refreshed), nil
	})

	select {
	case <-ctx.Done():
		return token.Token{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if apperrors.Is(res.Err, apperrors.ErrNoTokenForUser) {
				return token.Token{}, false, nil
			}
			return token.Token{}, false, res.Err
		}
		return res.Val.(token.Token), true, nil
	}
}

// commit replaces the entry read before the exchange with refreshed. A
// SetToken that landed during the exchange is newer and is kept instead.
func (s *Store) commit(userID string, read, refreshed token.Token) token.Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.tokens[userID]; ok && !stored.Equal(read) {
		return stored
	}
	if !refreshed.Equal(read) {
		log.Debug().Str("user_id", userID).Time("expires_at", refreshed.ExpiresAtUTC).Msg("Token refreshed")
	}
	s.tokens[userID] = refreshed
	return refreshed
}

func (s *Store) get(userID string) (token.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[userID]
	return t, ok
}

// Len returns the number of users with a stored token.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
