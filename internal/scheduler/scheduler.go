package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fitsync/internal/domain"
)

var ErrSyncInProgress = errors.New("sync already in progress")

// Syncer defines the interface for sync operations.
type Syncer interface {
	Sync(ctx context.Context, provider domain.Provider, force bool) (domain.SyncResult, error)
	Providers() []domain.Provider
}

// Scheduler triggers a sync of every provider on each tick. Providers run
// concurrently; a provider never has more than one sync in flight.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[domain.Provider]struct{}
}

func NewScheduler(syncer Syncer, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		inFlight: make(map[domain.Provider]struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"interval", s.interval,
		"providers", s.syncer.Providers(),
	)

	s.runAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range s.syncer.Providers() {
		wg.Add(1)
		go func(p domain.Provider) {
			defer wg.Done()
			if _, err := s.TriggerNow(ctx, p, false); errors.Is(err, ErrSyncInProgress) {
				s.logger.Debug("skipping tick, sync in progress", "provider", p)
			}
		}(p)
	}
	wg.Wait()
}

// TriggerNow runs one sync of provider unless one is already running, in
// which case it returns ErrSyncInProgress without waiting.
func (s *Scheduler) TriggerNow(ctx context.Context, provider domain.Provider, force bool) (domain.SyncResult, error) {
	if !s.acquire(provider) {
		return domain.SyncResult{Provider: provider}, fmt.Errorf("%s: %w", provider, ErrSyncInProgress)
	}
	defer s.release(provider)

	syncCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.syncer.Sync(syncCtx, provider, force)
	if err != nil {
		s.logger.Error("sync failed", "provider", provider, "error", err)
		return result, err
	}

	s.logger.Info("sync finished", "provider", provider, "result", result.Message())
	return result, nil
}

// Running reports whether provider has a sync in flight.
func (s *Scheduler) Running(provider domain.Provider) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[provider]
	return ok
}

func (s *Scheduler) acquire(provider domain.Provider) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[provider]; busy {
		return false
	}
	s.inFlight[provider] = struct{}{}
	return true
}

func (s *Scheduler) release(provider domain.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, provider)
}
