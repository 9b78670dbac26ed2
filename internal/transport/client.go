package transport

import (
	"log/slog"
	"net/http"
)

type ClientConfig struct {
	Retry   RetryConfig
	Breaker BreakerConfig
}

// NewClient builds an HTTP client for one provider: a circuit breaker in
// front of the retrying transport in front of base. A nil base uses
// http.DefaultTransport.
func NewClient(name string, base http.RoundTripper, cfg ClientConfig, logger *slog.Logger) *http.Client {
	retrying := NewRetryingTransport(base, name, cfg.Retry, logger)
	return &http.Client{
		Transport: NewBreakerTransport(retrying, name, cfg.Breaker, logger),
	}
}
