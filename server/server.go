package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-xero-auth/authflow"
	"github.com/jrsteele09/go-xero-auth/connections"
	"github.com/jrsteele09/go-xero-auth/internal/config"
	"github.com/jrsteele09/go-xero-auth/sessions"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// FlowCoordinator starts and completes the sign-in and sign-up flows.
type FlowCoordinator interface {
	Begin(ctx context.Context, flow authflow.Flow, returnURL string) (string, error)
	Complete(ctx context.Context, flow authflow.Flow, state, code string) (sessions.Principal, string, error)
}

type SessionValidator interface {
	Validate(ctx context.Context, p sessions.Principal) (sessions.Decision, error)
}

type TenantEnumerator interface {
	Enumerate(ctx context.Context, userID string) (connections.Result, error)
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	handler http.Handler
	routes  []string
	config  config.Config

	flows     FlowCoordinator
	codec     *sessions.Codec
	validator SessionValidator
	tenants   TenantEnumerator
}

func New(config config.Config, flows FlowCoordinator, codec *sessions.Codec, validator SessionValidator, tenants TenantEnumerator) *Server {
	s := &Server{
		env:       config.GetEnv(),
		mux:       http.NewServeMux(),
		config:    config,
		flows:     flows,
		codec:     codec,
		validator: validator,
		tenants:   tenants,
	}
	s.handler = otelhttp.NewHandler(s.mux, config.GetAppName(),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Info().Msgf("[%s] %s", colourMethod(parts[0]), parts[1])
		} else {
			log.Info().Msgf("[%s] %s", colourMethod(""), parts[0])
		}
	}
}
