package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"fitsync/internal/observability"
)

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// AttemptTimeout bounds each wire attempt. Zero leaves attempts bounded
	// only by the request context.
	AttemptTimeout time.Duration
}

// RetryingTransport retries transient failures (timeouts, connection resets,
// 5xx) with exponential backoff. 4xx responses are returned untouched.
type RetryingTransport struct {
	next   http.RoundTripper
	name   string
	cfg    RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

func NewRetryingTransport(next http.RoundTripper, name string, cfg RetryConfig, logger *slog.Logger) *RetryingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &RetryingTransport{
		next:   next,
		name:   name,
		cfg:    cfg,
		sleep:  sleepContext,
		logger: logger.With("client", name),
	}
}

func (t *RetryingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := t.attempt(req, attempt)

		reason, retry := t.retryable(req, resp, err)
		if !retry || attempt >= t.cfg.MaxRetries || !replayable(req) {
			return resp, err
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
		}

		delay := t.backoff(attempt)
		t.logger.Warn("request failed, retrying",
			"method", req.Method,
			"path", req.URL.Path,
			"attempt", attempt+1,
			"reason", reason,
			"backoff", delay,
			"error", err,
		)
		observability.RecordRetry(t.name, reason)

		if err := t.sleep(req.Context(), delay); err != nil {
			return nil, err
		}
	}
}

func (t *RetryingTransport) attempt(req *http.Request, attempt int) (*http.Response, error) {
	r := req
	if attempt > 0 && req.Body != nil && req.Body != http.NoBody {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r = req.Clone(req.Context())
		r.Body = body
	}

	if t.cfg.AttemptTimeout <= 0 {
		return t.next.RoundTrip(r)
	}

	ctx, cancel := context.WithTimeout(r.Context(), t.cfg.AttemptTimeout)
	resp, err := t.next.RoundTrip(r.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (t *RetryingTransport) retryable(req *http.Request, resp *http.Response, err error) (string, bool) {
	if err == nil {
		if resp.StatusCode >= 500 {
			return "status_5xx", true
		}
		return "", false
	}

	// The caller gave up; nothing to retry.
	if req.Context().Err() != nil {
		return "", false
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout", true
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout", true
	case errors.Is(err, syscall.ECONNRESET):
		return "connection_reset", true
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection_refused", true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return "unexpected_eof", true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "network", true
	}
	return "", false
}

// backoff returns BaseDelay * 2^attempt, capped at MaxDelay.
func (t *RetryingTransport) backoff(attempt int) time.Duration {
	delay := t.cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if t.cfg.MaxDelay > 0 && delay >= t.cfg.MaxDelay {
			return t.cfg.MaxDelay
		}
	}
	if t.cfg.MaxDelay > 0 && delay > t.cfg.MaxDelay {
		return t.cfg.MaxDelay
	}
	return delay
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
