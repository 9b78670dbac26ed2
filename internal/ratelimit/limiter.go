package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"fitsync/internal/domain"
	"fitsync/internal/observability"
)

// Limits describes a provider's documented request quotas. A zero limit
// disables that window.
type Limits struct {
	ShortTermLimit  int
	ShortTermWindow time.Duration
	DailyLimit      int
	DailyWindow     time.Duration
}

// Decision is the non-blocking answer to "may I send a request now?".
type Decision struct {
	Allowed bool
	// Wait is how long until the short-term window frees a slot. Only set
	// when Allowed is false and the daily quota is not exhausted.
	Wait           time.Duration
	DailyExhausted bool
}

type window struct {
	mu     sync.Mutex
	limits Limits
	recent []time.Time
	daily  []time.Time
}

// Limiter gates outbound requests per provider using sliding windows.
// Providers have independent state and never block each other.
//
// A slot is taken by Record, not by CheckAndWait, so two callers for the same
// provider can both pass a window with one slot left. Callers must issue one
// request at a time per provider; the scheduler guarantees that by running at
// most one sync per provider.
type Limiter struct {
	windows map[domain.Provider]*window
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

type Option func(*Limiter)

// WithClock replaces the wall clock and the sleep used while waiting.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

func New(limits map[domain.Provider]Limits, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[domain.Provider]*window, len(limits)),
		now:     time.Now,
		sleep:   sleepContext,
		logger:  logger,
	}
	for p, lim := range limits {
		l.windows[p] = &window{limits: lim}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check reports whether a request may be sent now without blocking.
func (l *Limiter) Check(provider domain.Provider) Decision {
	w, ok := l.windows[provider]
	if !ok {
		return Decision{Allowed: true}
	}
	return w.check(l.now())
}

// CheckAndWait blocks while the short-term window is full and returns true
// once a slot is free. It returns false without waiting when the daily quota
// is exhausted. A wait lasts at most one short-term window per iteration; the
// only error is the context's.
func (l *Limiter) CheckAndWait(ctx context.Context, provider domain.Provider) (bool, error) {
	for {
		d := l.Check(provider)
		if d.DailyExhausted {
			observability.RecordRateLimitDenied(provider.String())
			l.logger.Warn("daily rate limit reached", "provider", provider)
			return false, nil
		}
		if d.Allowed {
			return true, nil
		}

		l.logger.Info("rate limit reached, waiting",
			"provider", provider,
			"wait", d.Wait,
		)
		observability.RecordRateLimitWait(provider.String(), d.Wait)

		if err := l.sleep(ctx, d.Wait); err != nil {
			return false, err
		}
	}
}

// Record counts one outbound request against the provider's quotas.
func (l *Limiter) Record(provider domain.Provider) {
	observability.RecordRequest(provider.String())

	w, ok := l.windows[provider]
	if !ok {
		return
	}

	now := l.now()
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	w.recent = append(w.recent, now)
	w.daily = append(w.daily, now)
}

// Remaining returns how many requests are left in the short-term and daily
// windows. Unlimited windows report math.MaxInt.
func (l *Limiter) Remaining(provider domain.Provider) (shortTerm, daily int) {
	w, ok := l.windows[provider]
	if !ok {
		return math.MaxInt, math.MaxInt
	}

	now := l.now()
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	return remaining(w.limits.ShortTermLimit, len(w.recent)), remaining(w.limits.DailyLimit, len(w.daily))
}

func (w *window) check(now time.Time) Decision {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)

	if w.limits.DailyLimit > 0 && len(w.daily) >= w.limits.DailyLimit {
		return Decision{DailyExhausted: true}
	}

	if w.limits.ShortTermLimit > 0 && len(w.recent) >= w.limits.ShortTermLimit {
		wait := w.limits.ShortTermWindow - now.Sub(w.recent[0])
		if wait > 0 {
			return Decision{Wait: wait}
		}
	}

	return Decision{Allowed: true}
}

// prune drops timestamps that have aged out of their window. Must be called
// with mu held.
func (w *window) prune(now time.Time) {
	w.recent = dropOlder(w.recent, now.Add(-w.limits.ShortTermWindow))
	w.daily = dropOlder(w.daily, now.Add(-w.limits.DailyWindow))
}

func dropOlder(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

func remaining(limit, used int) int {
	if limit <= 0 {
		return math.MaxInt
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
