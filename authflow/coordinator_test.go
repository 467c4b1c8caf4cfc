package authflow_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-xero-auth/authflow"
	"github.com/jrsteele09/go-xero-auth/authflow/authflowrepo"
	"github.com/jrsteele09/go-xero-auth/identity"
	"github.com/jrsteele09/go-xero-auth/internal/config"
	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
	"github.com/jrsteele09/go-xero-auth/sessions"
	"github.com/jrsteele09/go-xero-auth/token/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientID     = "test-client"
	testClientSecret = "test-secret"
	testUserID       = "4a9e7ad2-9b10-4a10-9e3c-0b1f1e7c2d11"
)

var startTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// clock is a settable time source shared by every component in a scenario.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type grant struct {
	scopes    []string
	nonce     string
	challenge string
}

// fakeIdP issues codes for authorize URLs and answers the token endpoint with
// RS256 ID tokens.
type fakeIdP struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey
	clock  *clock

	mu           sync.Mutex
	grants       map[string]grant
	refreshes    int
	omitIDToken  bool
	omitUserID   bool
	wrongNonce   bool
	lastVerifier string
}

func newFakeIdP(t *testing.T, c *clock) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &fakeIdP{t: t, key: key, clock: c, grants: make(map[string]grant)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /connect/token", p.handleToken)
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeIdP) provider() authflow.Provider {
	return authflow.Provider{
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.server.URL + "/connect/authorize",
			TokenURL:  p.server.URL + "/connect/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		Verifier: oidc.NewVerifier(p.server.URL, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&p.key.PublicKey}}, &oidc.Config{
			ClientID: testClientID,
			Now:      p.clock.Now,
		}),
	}
}

// authorize plays the user consenting at authURL and returns the callback state and code.
func (p *fakeIdP) authorize(authURL string) (string, string) {
	p.t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(p.t, err)
	q := u.Query()
	require.Equal(p.t, "code", q.Get("response_type"))
	require.Equal(p.t, testClientID, q.Get("client_id"))

	p.mu.Lock()
	defer p.mu.Unlock()
	code := fmt.Sprintf("code-%d", len(p.grants)+1)
	p.grants[code] = grant{
		scopes:    strings.Fields(q.Get("scope")),
		nonce:     q.Get("nonce"),
		challenge: q.Get("code_challenge"),
	}
	return q.Get("state"), code
}

func (p *fakeIdP) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.FormValue("grant_type") {
	case "authorization_code":
		g, ok := p.grants[r.FormValue("code")]
		if !ok {
			writeTokenError(w, "invalid_grant")
			return
		}
		delete(p.grants, r.FormValue("code"))
		p.lastVerifier = r.FormValue("code_verifier")
		if g.challenge != "" {
			sum := sha256.Sum256([]byte(p.lastVerifier))
			if base64.RawURLEncoding.EncodeToString(sum[:]) != g.challenge {
				writeTokenError(w, "invalid_grant")
				return
			}
		}

		resp := map[string]any{
			"access_token": "access-" + r.FormValue("code"),
			"token_type":   "Bearer",
			"expires_in":   1800,
		}
		for _, s := range g.scopes {
			if s == oidc.ScopeOfflineAccess {
				resp["refresh_token"] = "refresh-" + r.FormValue("code")
			}
		}
		if !p.omitIDToken {
			nonce := g.nonce
			if p.wrongNonce {
				nonce = "other"
			}
			resp["id_token"] = p.idToken(nonce)
		}
		writeJSON(w, resp)

	case "refresh_token":
		p.refreshes++
		writeJSON(w, map[string]any{
			"access_token":  fmt.Sprintf("access-refreshed-%d", p.refreshes),
			"refresh_token": fmt.Sprintf("refresh-refreshed-%d", p.refreshes),
			"token_type":    "Bearer",
			"expires_in":    1800,
		})

	default:
		writeTokenError(w, "unsupported_grant_type")
	}
}

func (p *fakeIdP) idToken(nonce string) string {
	now := p.clock.Now()
	claims := jwt.MapClaims{
		"iss":         p.server.URL,
		"aud":         testClientID,
		"sub":         "subject-1",
		"iat":         now.Unix(),
		"exp":         now.Add(5 * time.Minute).Unix(),
		"nonce":       nonce,
		"given_name":  "Jane",
		"family_name": "Doe",
		"email":       "jane@example.com",
	}
	if !p.omitUserID {
		claims[sessions.UserIDClaim] = testUserID
	}
	// Runs on the server goroutine; an empty token fails verification in the test instead.
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.key)
	return signed
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeTokenError(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// fixture wires a coordinator, a real token store and the Xero identity client
// against one fake provider.
type fixture struct {
	clock       *clock
	idp         *fakeIdP
	states      *authflowrepo.InMemoryRepo
	store       *store.Store
	coordinator *authflow.Coordinator
}

func newFixture(t *testing.T, vars map[string]string) *fixture {
	t.Helper()
	env := map[string]string{
		"XERO_CLIENT_ID":     testClientID,
		"XERO_CLIENT_SECRET": testClientSecret,
		"SESSION_SECRET":     "0123456789abcdef0123456789abcdef",
		"BASE_URL":           "https://app.example.com",
	}
	for k, v := range vars {
		env[k] = v
	}
	cfg, err := config.NewFromMap(env)
	require.NoError(t, err)

	c := &clock{now: startTime}
	idp := newFakeIdP(t, c)
	provider := idp.provider()

	client := identity.NewXeroClient(testClientID, testClientSecret, provider.Endpoint, idp.server.URL,
		identity.WithHTTPClient(idp.server.Client()),
		identity.WithNowFunc(c.Now),
	)
	tokens := store.New(client)
	states := authflowrepo.NewInMemoryRepo()

	return &fixture{
		clock:  c,
		idp:    idp,
		states: states,
		store:  tokens,
		coordinator: authflow.New(cfg, provider, states, tokens,
			authflow.WithHTTPClient(idp.server.Client()),
			authflow.WithNowFunc(c.Now),
		),
	}
}

func (f *fixture) signIn(t *testing.T, flow authflow.Flow) sessions.Principal {
	t.Helper()
	authURL, err := f.coordinator.Begin(context.Background(), flow, "/outstanding-invoices")
	require.NoError(t, err)
	state, code := f.idp.authorize(authURL)

	principal, returnURL, err := f.coordinator.Complete(context.Background(), flow, state, code)
	require.NoError(t, err)
	require.Equal(t, "/outstanding-invoices", returnURL)
	return principal
}

func TestCoordinator_Begin(t *testing.T) {
	tests := []struct {
		name         string
		flow         authflow.Flow
		vars         map[string]string
		wantScope    string
		wantRedirect string
		wantPKCE     bool
	}{
		{
			name:         "sign in",
			flow:         authflow.SignIn,
			wantScope:    "openid profile email",
			wantRedirect: "https://app.example.com/signin-oidc",
			wantPKCE:     true,
		},
		{
			name:         "sign up",
			flow:         authflow.SignUp,
			wantScope:    "offline_access openid profile email accounting.settings accounting.transactions",
			wantRedirect: "https://app.example.com/signup-oidc",
			wantPKCE:     true,
		},
		{
			name:         "pkce disabled",
			flow:         authflow.SignIn,
			vars:         map[string]string{"REQUIRE_PKCE": "false"},
			wantScope:    "openid profile email",
			wantRedirect: "https://app.example.com/signin-oidc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.vars)
			authURL, err := f.coordinator.Begin(context.Background(), tt.flow, "/")
			require.NoError(t, err)

			u, err := url.Parse(authURL)
			require.NoError(t, err)
			q := u.Query()
			require.Equal(t, f.idp.server.URL+"/connect/authorize", u.Scheme+"://"+u.Host+u.Path)
			require.Equal(t, tt.wantScope, q.Get("scope"))
			require.Equal(t, tt.wantRedirect, q.Get("redirect_uri"))
			require.NotEmpty(t, q.Get("state"))
			require.NotEmpty(t, q.Get("nonce"))
			if tt.wantPKCE {
				require.Equal(t, "S256", q.Get("code_challenge_method"))
				require.NotEmpty(t, q.Get("code_challenge"))
			} else {
				require.Empty(t, q.Get("code_challenge"))
			}
			require.Equal(t, 1, f.states.Len())
		})
	}
}

func TestCoordinator_Begin_RemovesExpiredFlows(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.coordinator.Begin(context.Background(), authflow.SignIn, "/")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.coordinator.Begin(context.Background(), authflow.SignIn, "/")
	require.NoError(t, err)
	require.Equal(t, 1, f.states.Len())
}

// Sign up grants offline_access; an hour later the store refreshes the token
// and the session stays valid.
func TestScenario_SignUpThenRefresh(t *testing.T) {
	f := newFixture(t, nil)
	principal := f.signIn(t, authflow.SignUp)

	require.Equal(t, testUserID, principal.UserID)
	require.Equal(t, "subject-1", principal.Subject)
	require.Equal(t, "Jane Doe", principal.Name())
	require.Equal(t, "jane@example.com", principal.Email)
	require.NotEmpty(t, f.idp.lastVerifier)

	stored, ok, err := f.store.GetAccessToken(context.Background(), testUserID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "access-code-1", stored.AccessToken)
	require.Equal(t, "refresh-code-1", stored.RefreshToken)
	require.Equal(t, startTime.Add(30*time.Minute), stored.ExpiresAtUTC)

	f.clock.Advance(time.Hour)

	decision, err := sessions.NewValidator(f.store).Validate(context.Background(), principal)
	require.NoError(t, err)
	require.Equal(t, sessions.Accepted, decision)

	refreshed, ok, err := f.store.GetAccessToken(context.Background(), testUserID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "access-refreshed-1", refreshed.AccessToken)
	require.True(t, refreshed.ExpiresAtUTC.After(stored.ExpiresAtUTC))
	require.True(t, refreshed.Valid(f.clock.Now()))
	require.Equal(t, 1, f.idp.refreshes)
}

// Sign in has no offline_access; once the access token expires the session is rejected.
func TestScenario_SignInExpires(t *testing.T) {
	f := newFixture(t, nil)
	principal := f.signIn(t, authflow.SignIn)

	stored, ok, err := f.store.GetAccessToken(context.Background(), testUserID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, stored.RefreshToken)

	validator := sessions.NewValidator(f.store)
	decision, err := validator.Validate(context.Background(), principal)
	require.NoError(t, err)
	require.Equal(t, sessions.Accepted, decision)

	f.clock.Advance(time.Hour)

	_, _, err = f.store.GetAccessToken(context.Background(), testUserID)
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)

	decision, err = validator.Validate(context.Background(), principal)
	require.NoError(t, err)
	require.Equal(t, sessions.Rejected, decision)
	require.Equal(t, 0, f.idp.refreshes)
}

func TestCoordinator_Complete_Errors(t *testing.T) {
	t.Run("unknown state", func(t *testing.T) {
		f := newFixture(t, nil)
		_, _, err := f.coordinator.Complete(context.Background(), authflow.SignIn, "nope", "code")
		require.ErrorIs(t, err, apperrors.ErrInvalidState)
	})

	t.Run("missing code", func(t *testing.T) {
		f := newFixture(t, nil)
		_, _, err := f.coordinator.Complete(context.Background(), authflow.SignIn, "state", "")
		require.ErrorIs(t, err, apperrors.ErrInvalidState)
	})

	t.Run("state replayed", func(t *testing.T) {
		f := newFixture(t, nil)
		authURL, err := f.coordinator.Begin(context.Background(), authflow.SignIn, "/")
		require.NoError(t, err)
		state, code := f.idp.authorize(authURL)

		_, _, err = f.coordinator.Complete(context.Background(), authflow.SignIn, state, code)
		require.NoError(t, err)
		_, _, err = f.coordinator.Complete(context.Background(), authflow.SignIn, state, code)
		require.ErrorIs(t, err, apperrors.ErrInvalidState)
	})

	t.Run("state from the other flow", func(t *testing.T) {
		f := newFixture(t, nil)
		authURL, err := f.coordinator.Begin(context.Background(), authflow.SignIn, "/")
		require.NoError(t, err)
		state, code := f.idp.authorize(authURL)

		_, _, err = f.coordinator.Complete(context.Background(), authflow.SignUp, state, code)
		require.ErrorIs(t, err, apperrors.ErrInvalidState)
		require.Equal(t, 0, f.store.Len())
	})

	t.Run("flow timed out", func(t *testing.T) {
		f := newFixture(t, map[string]string{"AUTH_FLOW_TIMEOUT": "5m"})
		authURL, err := f.coordinator.Begin(context.Background(), authflow.SignIn, "/")
		require.NoError(t, err)
		state, code := f.idp.authorize(authURL)

		f.clock.Advance(6 * time.Minute)
		_, _, err = f.coordinator.Complete(context.Background(), authflow.SignIn, state, code)
		require.ErrorIs(t, err, apperrors.ErrInvalidState)
	})

	t.Run("code rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		authURL, err := f.coordinator.Begin(context.Background(), authflow.SignIn, "/")
		require.NoError(t, err)
		state, _ := f.idp.authorize(authURL)

		_, _, err = f.coordinator.Complete(context.Background(), authflow.SignIn, state, "forged")
		require.ErrorIs(t, err, apperrors.ErrInvalidGrant)
	})

	t.Run("provider unreachable", func(t *testing.T) {
		f := newFixture(t, nil)
		authURL, err := f.coordinator.Begin(context.Background(), authflow.SignIn, "/")
		require.NoError(t, err)
		state, code := f.idp.authorize(authURL)
		f.idp.server.Close()

		_, _, err = f.coordinator.Complete(context.Background(), authflow.SignIn, state, code)
		require.ErrorIs(t, err, apperrors.ErrProviderUnreachable)
	})

	idTokenCases := []struct {
		name  string
		setup func(*fakeIdP)
		want  error
	}{
		{"no id token", func(p *fakeIdP) { p.omitIDToken = true }, apperrors.ErrInvalidIDToken},
		{"nonce mismatch", func(p *fakeIdP) { p.wrongNonce = true }, apperrors.ErrInvalidIDToken},
		{"no user id claim", func(p *fakeIdP) { p.omitUserID = true }, apperrors.ErrMissingUserID},
	}
	for _, tc := range idTokenCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			tc.setup(f.idp)
			authURL, err := f.coordinator.Begin(context.Background(), authflow.SignUp, "/")
			require.NoError(t, err)
			state, code := f.idp.authorize(authURL)

			_, _, err = f.coordinator.Complete(context.Background(), authflow.SignUp, state, code)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, 0, f.store.Len())
		})
	}
}

func TestLocalReturnURL(t *testing.T) {
	tests := map[string]string{
		"":                      "/",
		"/outstanding-invoices": "/outstanding-invoices",
		"https://evil.example":  "/",
		"//evil.example":        "/",
		"/\\evil.example":       "/",
		"relative":              "/",
	}
	for in, want := range tests {
		require.Equal(t, want, authflow.LocalReturnURL(in), in)
	}
}

func TestParseFlow(t *testing.T) {
	for _, flow := range []authflow.Flow{authflow.SignIn, authflow.SignUp} {
		parsed, err := authflow.ParseFlow(flow.String())
		require.NoError(t, err)
		require.Equal(t, flow, parsed)
	}
	_, err := authflow.ParseFlow("admin")
	require.ErrorIs(t, err, apperrors.ErrUnknownFlow)
}

var (
	_ authflow.TokenSetter = (*store.Store)(nil)
	_ sessions.TokenLookup = (*store.Store)(nil)
)
