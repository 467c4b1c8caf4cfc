package authflowrepo

import "time"

// AuthFlowState is what the coordinator remembers between redirecting the
// browser to the provider and handling the callback. Keyed by the state parameter.
type AuthFlowState struct {
	Flow         string
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	// Take returns the state and removes it, so each state is used at most once.
	Take(state string) (*AuthFlowState, error)
	// DeleteExpired removes states created before cutoff and returns how many were removed.
	DeleteExpired(cutoff time.Time) int
}
