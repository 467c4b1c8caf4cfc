package telemetry_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-xero-auth/internal/telemetry"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), "xero-sample", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	// The exporter connects lazily so no collector is needed.
	shutdown, err := telemetry.Setup(context.Background(), "xero-sample", "http://127.0.0.1:4318/v1/traces")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
}
