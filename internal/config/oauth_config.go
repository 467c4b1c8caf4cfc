package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetAuthority() string
	GetAPIURL() string
	GetSignInScopes() []string
	GetSignUpScopes() []string
	GetSignInCallbackPath() string
	GetSignUpCallbackPath() string
	GetAuthFlowTimeout() time.Duration
	GetTokenExpirySkew() time.Duration
}

type OAuth struct {
	ClientID           string        `env:"XERO_CLIENT_ID,required,notEmpty"`
	ClientSecret       string        `env:"XERO_CLIENT_SECRET,required,notEmpty"`
	Authority          string        `env:"XERO_AUTHORITY" envDefault:"https://identity.xero.com"`
	APIURL             string        `env:"XERO_API_URL" envDefault:"https://api.xero.com"`
	SignInScopes       []string      `env:"XERO_SIGNIN_SCOPES" envSeparator:" " envDefault:"openid profile email"`
	SignUpScopes       []string      `env:"XERO_SIGNUP_SCOPES" envSeparator:" " envDefault:"offline_access openid profile email accounting.settings accounting.transactions"`
	SignInCallbackPath string        `env:"XERO_SIGNIN_CALLBACK" envDefault:"/signin-oidc"`
	SignUpCallbackPath string        `env:"XERO_SIGNUP_CALLBACK" envDefault:"/signup-oidc"`
	AuthFlowTimeout    time.Duration `env:"AUTH_FLOW_TIMEOUT" envDefault:"15m"`
	TokenExpirySkew    time.Duration `env:"TOKEN_EXPIRY_SKEW" envDefault:"0s"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

// GetAuthority returns the OIDC issuer used for discovery.
func (o OAuth) GetAuthority() string {
	return strings.TrimSuffix(o.Authority, "/")
}

func (o OAuth) GetAPIURL() string {
	return strings.TrimSuffix(o.APIURL, "/")
}

// GetSignInScopes returns the minimal identity scopes. No offline_access, so
// tokens issued by this flow cannot be refreshed.
func (o OAuth) GetSignInScopes() []string {
	return trimScopes(o.SignInScopes)
}

// GetSignUpScopes returns the identity scopes plus offline_access and the
// accounting resource scopes.
func (o OAuth) GetSignUpScopes() []string {
	return trimScopes(o.SignUpScopes)
}

func (o OAuth) GetSignInCallbackPath() string {
	return o.SignInCallbackPath
}

func (o OAuth) GetSignUpCallbackPath() string {
	return o.SignUpCallbackPath
}

// GetAuthFlowTimeout bounds the time between starting a flow and its callback.
func (o OAuth) GetAuthFlowTimeout() time.Duration {
	return o.AuthFlowTimeout
}

// GetTokenExpirySkew is subtracted from a token's expiry when checking validity.
func (o OAuth) GetTokenExpirySkew() time.Duration {
	return o.TokenExpirySkew
}

func trimScopes(scopes []string) []string {
	result := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}
