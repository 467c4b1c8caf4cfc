package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// New returns the client used for every outbound call to the identity
// provider and the APIs. Requests are traced through the global provider.
func New(timeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = 10
	return &http.Client{
		Transport: otelhttp.NewTransport(t),
		Timeout:   timeout,
	}
}
