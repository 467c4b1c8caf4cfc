package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
	"github.com/jrsteele09/go-xero-auth/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Client is the identity provider capability the token lifecycle depends on.
type Client interface {
	// GetCurrentValidToken returns t unchanged while it is valid, otherwise a
	// refreshed token. Fails with ErrRefreshFailed when t cannot be refreshed.
	GetCurrentValidToken(ctx context.Context, t token.Token) (token.Token, error)

	// ListConnections returns the tenants t is authorised for. An empty slice
	// means no tenants are connected and is not an error.
	ListConnections(ctx context.Context, t token.Token) ([]Connection, error)
}

// XeroClient implements Client against Xero Identity and the connections API.
type XeroClient struct {
	oauth          *oauth2.Config
	connectionsURL string
	httpClient     *http.Client
	expirySkew     time.Duration
	nowFunc        func() time.Time
}

var _ Client = (*XeroClient)(nil)

type Option func(*XeroClient)

func WithHTTPClient(c *http.Client) Option {
	return func(x *XeroClient) {
		x.httpClient = c
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(x *XeroClient) {
		x.nowFunc = now
	}
}

// WithExpirySkew refreshes tokens this long before their actual expiry.
func WithExpirySkew(skew time.Duration) Option {
	return func(x *XeroClient) {
		x.expirySkew = skew
	}
}

// WithConnectionsURL overrides the default {apiURL}/connections endpoint.
func WithConnectionsURL(u string) Option {
	return func(x *XeroClient) {
		x.connectionsURL = u
	}
}

// NewXeroClient creates a client for the given registration. endpoint is
// normally taken from OIDC discovery; apiURL is the Xero API base URL.
func NewXeroClient(clientID, clientSecret string, endpoint oauth2.Endpoint, apiURL string, options ...Option) *XeroClient {
	x := &XeroClient{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
		},
		connectionsURL: apiURL + "/connections",
	}

	for _, opt := range options {
		opt(x)
	}

	if x.httpClient == nil {
		x.httpClient = http.DefaultClient
	}
	if x.nowFunc == nil {
		x.nowFunc = time.Now
	}
	return x
}

func (x *XeroClient) GetCurrentValidToken(ctx context.Context, t token.Token) (token.Token, error) {
	now := x.nowFunc()
	if t.ValidWithSkew(now, x.expirySkew) {
		return t, nil
	}
	if !t.CanRefresh() {
		return token.Token{}, fmt.Errorf("%w: access token expired and no refresh token was granted", apperrors.ErrRefreshFailed)
	}

	// Only the refresh token is handed over so x/oauth2 always performs the
	// exchange, whatever its own clock says about the access token.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, x.httpClient)
	refreshed, err := x.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: t.RefreshToken}).Token()
	if err != nil {
		return token.Token{}, classifyTokenError(err)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = t.RefreshToken
	}

	newToken := token.FromResponse(refreshed, now)
	log.Debug().Time("expires_at", newToken.ExpiresAtUTC).Msg("Access token refreshed")
	return newToken, nil
}

func (x *XeroClient) ListConnections(ctx context.Context, t token.Token) ([]Connection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.connectionsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("[identity ListConnections] failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	t.OAuth2().SetAuthHeader(req)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: connections request rejected with status %d", apperrors.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: connections status %d: %s", apperrors.ErrUnexpected, resp.StatusCode, body)
	}

	var raw []connectionJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode connections: %w", apperrors.ErrUnexpected, err)
	}

	connections := make([]Connection, 0, len(raw))
	for _, r := range raw {
		connections = append(connections, r.toConnection())
	}
	return connections, nil
}

// classifyTokenError separates provider rejections from transport failures.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if apperrors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s: %w", apperrors.ErrRefreshFailed, retrieveErr.ErrorCode, err)
	}
	return fmt.Errorf("%w: %w", apperrors.ErrProviderUnreachable, err)
}
