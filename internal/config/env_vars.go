package config

import (
	"strings"
	"time"
)

type EnvVars struct {
	Port              string        `env:"PORT" envDefault:"8080"`
	AppName           string        `env:"APP_NAME" envDefault:"Xero OAuth2 Sample"`
	Env               string        `env:"ENV" envDefault:"DEV"`
	BaseURL           string        `env:"BASE_URL" envDefault:"http://localhost:8080"`
	OtelEndpoint      string        `env:"OTEL_ENDPOINT"`
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"30s"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

// GetBaseURL returns the externally visible base URL of this application (e.g., "https://app.example.com").
// Redirect URIs registered with the identity provider are built from it.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.BaseURL, "/")
}

// GetOtelEndpoint returns the OTLP/HTTP trace endpoint. Empty disables tracing.
func (e EnvVars) GetOtelEndpoint() string {
	return e.OtelEndpoint
}

func (e EnvVars) GetHTTPClientTimeout() time.Duration {
	return e.HTTPClientTimeout
}
