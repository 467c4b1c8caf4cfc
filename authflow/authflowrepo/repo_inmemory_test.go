package authflowrepo_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-xero-auth/authflow/authflowrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestInMemoryRepo_UpsertTake(t *testing.T) {
	r := authflowrepo.NewInMemoryRepo()
	in := &authflowrepo.AuthFlowState{
		Flow:         "signup",
		CodeVerifier: "verifier",
		Nonce:        "nonce",
		ReturnURL:    "/outstanding-invoices",
		CreatedAt:    created,
	}
	require.NoError(t, r.Upsert("state-1", in))

	in.Nonce = "changed"

	got, err := r.Take("state-1")
	require.NoError(t, err)
	require.Equal(t, "nonce", got.Nonce)
	require.Equal(t, "signup", got.Flow)
	require.Equal(t, 0, r.Len())

	_, err = r.Take("state-1")
	require.ErrorIs(t, err, authflowrepo.ErrStateNotFound)
}

func TestInMemoryRepo_InvalidArguments(t *testing.T) {
	r := authflowrepo.NewInMemoryRepo()
	require.Error(t, r.Upsert("", &authflowrepo.AuthFlowState{}))
	require.Error(t, r.Upsert("state", nil))
	_, err := r.Take("")
	require.Error(t, err)
}

func TestInMemoryRepo_DeleteExpired(t *testing.T) {
	r := authflowrepo.NewInMemoryRepo()
	require.NoError(t, r.Upsert("old", &authflowrepo.AuthFlowState{CreatedAt: created.Add(-time.Hour)}))
	require.NoError(t, r.Upsert("new", &authflowrepo.AuthFlowState{CreatedAt: created}))

	require.Equal(t, 1, r.DeleteExpired(created.Add(-15*time.Minute)))
	require.Equal(t, 1, r.Len())

	_, err := r.Take("new")
	require.NoError(t, err)
}

func TestInMemoryRepo_TakeOnce(t *testing.T) {
	r := authflowrepo.NewInMemoryRepo()
	require.NoError(t, r.Upsert("state-1", &authflowrepo.AuthFlowState{CreatedAt: created}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Take("state-1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, authflowrepo.ErrStateNotFound)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}
