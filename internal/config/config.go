package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
)

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetOtelEndpoint() string
	GetHTTPClientTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
}

// New loads the configuration from the process environment.
func New() (Config, error) {
	return parse(env.Options{})
}

// NewFromMap loads the configuration from the given variables instead of the
// process environment. Unset variables take their defaults.
func NewFromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c mainConfig) validate() error {
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("%w: SESSION_SECRET must be at least 32 characters", apperrors.ErrInvalidConfig)
	}
	if c.SignInCallbackPath == c.SignUpCallbackPath {
		return fmt.Errorf("%w: sign-in and sign-up callback paths must differ", apperrors.ErrInvalidConfig)
	}
	if c.AuthFlowTimeout <= 0 {
		return fmt.Errorf("%w: AUTH_FLOW_TIMEOUT must be positive", apperrors.ErrInvalidConfig)
	}
	if c.TokenExpirySkew < 0 {
		return fmt.Errorf("%w: TOKEN_EXPIRY_SKEW must not be negative", apperrors.ErrInvalidConfig)
	}
	return nil
}
