package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"fitsync/internal/observability"
)

type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

var errServerFailure = errors.New("server failure")

// BreakerTransport fails fast with ErrCircuitOpen once a provider keeps
// failing after retries. 4xx responses count as successes.
type BreakerTransport struct {
	next http.RoundTripper
	name string
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

func NewBreakerTransport(next http.RoundTripper, name string, cfg BreakerConfig, logger *slog.Logger) *BreakerTransport {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"client", name,
				"from", from.String(),
				"to", to.String(),
			)
			observability.RecordBreakerState(name, int(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &BreakerTransport{
		next: next,
		name: name,
		cb:   gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.cb.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, errServerFailure
		}
		return resp, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, t.name)
	case errors.Is(err, errServerFailure):
		return resp, nil
	}
	return resp, err
}

// State reports the breaker state name.
func (t *BreakerTransport) State() string {
	return t.cb.State().String()
}
