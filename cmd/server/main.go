package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-xero-auth/accounting"
	"github.com/jrsteele09/go-xero-auth/authflow"
	"github.com/jrsteele09/go-xero-auth/authflow/authflowrepo"
	"github.com/jrsteele09/go-xero-auth/connections"
	"github.com/jrsteele09/go-xero-auth/identity"
	"github.com/jrsteele09/go-xero-auth/internal/config"
	"github.com/jrsteele09/go-xero-auth/internal/httpclient"
	"github.com/jrsteele09/go-xero-auth/internal/telemetry"
	"github.com/jrsteele09/go-xero-auth/server"
	"github.com/jrsteele09/go-xero-auth/sessions"
	"github.com/jrsteele09/go-xero-auth/token/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("[main run] failed to load config: %w", err)
	}
	setupLogging(c.GetEnv())
	displayAppname(c.GetAppName())

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, c.GetAppName(), c.GetOtelEndpoint())
	if err != nil {
		return fmt.Errorf("[main run] failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Err(err).Msg("Failed to flush traces")
		}
	}()

	handler, err := newHandler(ctx, c)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(server)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

// newHandler discovers the identity provider and wires the application.
func newHandler(ctx context.Context, c config.Config) (http.Handler, error) {
	httpClient := httpclient.New(c.GetHTTPClientTimeout())

	discovered, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), c.GetAuthority())
	if err != nil {
		return nil, fmt.Errorf("[main newHandler] OIDC discovery for %s failed: %w", c.GetAuthority(), err)
	}
	provider := authflow.NewProvider(discovered, c.GetClientID())

	identityClient := identity.NewXeroClient(c.GetClientID(), c.GetClientSecret(), provider.Endpoint, c.GetAPIURL(),
		identity.WithHTTPClient(httpClient),
		identity.WithExpirySkew(c.GetTokenExpirySkew()),
	)
	tokens := store.New(identityClient)

	codec, err := sessions.NewCodec(c.GetSessionSecret(), c.GetMaxSessionAge())
	if err != nil {
		return nil, fmt.Errorf("[main newHandler] failed to create session codec: %w", err)
	}

	coordinator := authflow.New(c, provider, authflowrepo.NewInMemoryRepo(), tokens,
		authflow.WithHTTPClient(httpClient),
	)
	enumerator := connections.NewEnumerator(tokens, identityClient, accounting.NewClient(c.GetAPIURL(), httpClient))

	return server.New(c, coordinator, codec, sessions.NewValidator(tokens), enumerator), nil
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
