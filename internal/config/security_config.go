package config

import "time"

type SecurityConfig interface {
	GetRequirePKCE() bool
	GetSessionSecret() string
	GetSessionCookieName() string
	GetMaxSessionAge() time.Duration
}

type Security struct {
	RequirePKCE       bool          `env:"REQUIRE_PKCE" envDefault:"true"`
	SessionSecret     string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"XeroIdentity"`
	MaxSessionAge     time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
}

var _ SecurityConfig = Security{}

func (s Security) GetRequirePKCE() bool {
	return s.RequirePKCE
}

func (s Security) GetSessionSecret() string {
	return s.SessionSecret
}

func (s Security) GetSessionCookieName() string {
	return s.SessionCookieName
}

func (s Security) GetMaxSessionAge() time.Duration {
	return s.MaxSessionAge
}
