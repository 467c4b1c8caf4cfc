package authflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-xero-auth/authflow/authflowrepo"
	"github.com/jrsteele09/go-xero-auth/internal/config"
	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
	"github.com/jrsteele09/go-xero-auth/sessions"
	"github.com/jrsteele09/go-xero-auth/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// TokenSetter receives the token issued at the end of a flow.
type TokenSetter interface {
	SetToken(userID string, t token.Token)
}

// Config is the configuration the coordinator reads.
type Config interface {
	config.OAuthConfig
	GetBaseURL() string
	GetRequirePKCE() bool
}

// Provider is what the coordinator needs from OIDC discovery.
type Provider struct {
	Endpoint oauth2.Endpoint
	Verifier *oidc.IDTokenVerifier
}

// NewProvider builds a Provider from a discovered issuer.
func NewProvider(p *oidc.Provider, clientID string) Provider {
	return Provider{
		Endpoint: p.Endpoint(),
		Verifier: p.Verifier(&oidc.Config{ClientID: clientID}),
	}
}

// Coordinator runs the authorization code flow for both schemes and records
// the resulting token against the user's external id.
type Coordinator struct {
	clientID     string
	clientSecret string
	provider     Provider
	baseURL      string
	schemes      map[Flow]Scheme
	requirePKCE  bool
	timeout      time.Duration

	states     authflowrepo.Repo
	tokens     TokenSetter
	httpClient *http.Client
	nowFunc    func() time.Time
}

type Option func(*Coordinator)

func WithNowFunc(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowFunc = now
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Coordinator) {
		c.httpClient = client
	}
}

func New(cfg Config, provider Provider, states authflowrepo.Repo, tokens TokenSetter, options ...Option) *Coordinator {
	c := &Coordinator{
		clientID:     cfg.GetClientID(),
		clientSecret: cfg.GetClientSecret(),
		provider:     provider,
		baseURL:      cfg.GetBaseURL(),
		schemes: map[Flow]Scheme{
			SignIn: {Scopes: cfg.GetSignInScopes(), CallbackPath: cfg.GetSignInCallbackPath()},
			SignUp: {Scopes: cfg.GetSignUpScopes(), CallbackPath: cfg.GetSignUpCallbackPath()},
		},
		requirePKCE: cfg.GetRequirePKCE(),
		timeout:     cfg.GetAuthFlowTimeout(),
		states:      states,
		tokens:      tokens,
	}

	for _, opt := range options {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c
}

// Scheme returns the scopes and callback path of flow.
func (c *Coordinator) Scheme(flow Flow) (Scheme, bool) {
	s, ok := c.schemes[flow]
	return s, ok
}

// Begin records a new pending flow and returns the provider URL the browser
// should be redirected to. returnURL must be a local path; anything else is
// replaced by "/".
func (c *Coordinator) Begin(ctx context.Context, flow Flow, returnURL string) (string, error) {
	oauthConfig, err := c.oauthConfig(flow)
	if err != nil {
		return "", err
	}

	now := c.nowFunc()
	if removed := c.states.DeleteExpired(now.Add(-c.timeout)); removed > 0 {
		log.Debug().Int("removed", removed).Msg("Expired auth flows removed")
	}

	state, err := randomString(32)
	if err != nil {
		return "", err
	}
	nonce, err := randomString(32)
	if err != nil {
		return "", err
	}

	authState := &authflowrepo.AuthFlowState{
		Flow:      flow.String(),
		Nonce:     nonce,
		ReturnURL: LocalReturnURL(returnURL),
		CreatedAt: now,
	}
	params := []oauth2.AuthCodeOption{oidc.Nonce(nonce)}
	if c.requirePKCE {
		authState.CodeVerifier = oauth2.GenerateVerifier()
		params = append(params, oauth2.S256ChallengeOption(authState.CodeVerifier))
	}

	if err := c.states.Upsert(state, authState); err != nil {
		return "", apperrors.Wrapf(err, "[authflow Begin] failed to store state")
	}

	log.Debug().Str("flow", flow.String()).Msg("Authentication flow started")
	return oauthConfig.AuthCodeURL(state, params...), nil
}

// Complete finishes the flow identified by state: the code is exchanged, the
// ID token verified and the issued token stored under the user's external id
// before the principal is returned. The second result is the local path the
// flow was started from.
func (c *Coordinator) Complete(ctx context.Context, flow Flow, state, code string) (sessions.Principal, string, error) {
	oauthConfig, err := c.oauthConfig(flow)
	if err != nil {
		return sessions.Principal{}, "", err
	}
	if state == "" || code == "" {
		return sessions.Principal{}, "", fmt.Errorf("%w: missing state or code", apperrors.ErrInvalidState)
	}

	authState, err := c.states.Take(state)
	if err != nil {
		return sessions.Principal{}, "", fmt.Errorf("%w: %w", apperrors.ErrInvalidState, err)
	}
	if authState.Flow != flow.String() {
		return sessions.Principal{}, "", fmt.Errorf("%w: state belongs to %s flow", apperrors.ErrInvalidState, authState.Flow)
	}

	now := c.nowFunc()
	if now.Sub(authState.CreatedAt) > c.timeout {
		return sessions.Principal{}, "", fmt.Errorf("%w: flow timed out", apperrors.ErrInvalidState)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	var exchangeOpts []oauth2.AuthCodeOption
	if authState.CodeVerifier != "" {
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(authState.CodeVerifier))
	}
	oauth2Token, err := oauthConfig.Exchange(ctx, code, exchangeOpts...)
	if err != nil {
		return sessions.Principal{}, "", classifyExchangeError(err)
	}

	principal, err := c.verifyIDToken(ctx, oauth2Token, authState.Nonce)
	if err != nil {
		return sessions.Principal{}, "", err
	}

	c.tokens.SetToken(principal.UserID, token.FromResponse(oauth2Token, now))
	log.Info().
		Str("flow", flow.String()).
		Str("user_id", principal.UserID).
		Bool("offline_access", oauth2Token.RefreshToken != "").
		Msg("User authenticated")

	return principal, authState.ReturnURL, nil
}

func (c *Coordinator) verifyIDToken(ctx context.Context, oauth2Token *oauth2.Token, nonce string) (sessions.Principal, error) {
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return sessions.Principal{}, fmt.Errorf("%w: no id_token in token response", apperrors.ErrInvalidIDToken)
	}

	idToken, err := c.provider.Verifier.Verify(oidc.ClientContext(ctx, c.httpClient), rawIDToken)
	if err != nil {
		return sessions.Principal{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidIDToken, err)
	}
	if idToken.Nonce != nonce {
		return sessions.Principal{}, fmt.Errorf("%w: nonce mismatch", apperrors.ErrInvalidIDToken)
	}

	var claims struct {
		UserID     string `json:"xero_userid"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Email      string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return sessions.Principal{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidIDToken, err)
	}
	if claims.UserID == "" {
		return sessions.Principal{}, fmt.Errorf("%w: %s", apperrors.ErrMissingUserID, sessions.UserIDClaim)
	}

	return sessions.Principal{
		UserID:     claims.UserID,
		Subject:    idToken.Subject,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		Email:      claims.Email,
	}, nil
}

func (c *Coordinator) oauthConfig(flow Flow) (*oauth2.Config, error) {
	scheme, ok := c.schemes[flow]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownFlow, flow)
	}
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     c.provider.Endpoint,
		RedirectURL:  c.baseURL + scheme.CallbackPath,
		Scopes:       scheme.Scopes,
	}, nil
}

// classifyExchangeError separates a rejected code from a transport failure.
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if apperrors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s: %w", apperrors.ErrInvalidGrant, retrieveErr.ErrorCode, err)
	}
	return fmt.Errorf("%w: %w", apperrors.ErrProviderUnreachable, err)
}

// LocalReturnURL keeps returnURL only if it is a path on this site.
func LocalReturnURL(returnURL string) string {
	if !strings.HasPrefix(returnURL, "/") || strings.HasPrefix(returnURL, "//") || strings.HasPrefix(returnURL, "/\\") {
		return "/"
	}
	return returnURL
}

// randomString creates a random base64url string
func randomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random string: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
