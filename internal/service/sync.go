package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"fitsync/internal/config"
	"fitsync/internal/domain"
	"fitsync/internal/observability"
	"fitsync/internal/transport"
)

// SyncService runs incremental syncs for a single provider. It is not safe
// to run Sync twice concurrently for the same provider; the scheduler keeps
// at most one run in flight.
type SyncService struct {
	adapter    ProviderAdapter
	tokens     TokenSupply
	activities ActivityStore
	cursors    CursorStore
	limiter    RateLimiter
	txManager  TransactionManager
	publisher  Publisher
	logger     *slog.Logger
	config     config.SyncConfig

	pacer *rate.Limiter
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSyncService(
	adapter ProviderAdapter,
	tokens TokenSupply,
	activities ActivityStore,
	cursors CursorStore,
	limiter RateLimiter,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	pacer := rate.NewLimiter(rate.Inf, 1)
	if cfg.StreamDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(cfg.StreamDelay), 1)
	}

	return &SyncService{
		adapter:    adapter,
		tokens:     tokens,
		activities: activities,
		cursors:    cursors,
		limiter:    limiter,
		txManager:  txManager,
		publisher:  publisher,
		logger:     logger.With("provider", adapter.Provider()),
		config:     cfg,
		pacer:      pacer,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

func (s *SyncService) Provider() domain.Provider {
	return s.adapter.Provider()
}

// Sync fetches activities created since the last run and stores the new
// ones. Degraded outcomes (quota exhausted mid-run, failed pages, failed
// streams, malformed records) are reported in the result. Only auth
// failures, an exhausted daily quota before the first request, store
// failures and cancellation are returned as errors.
func (s *SyncService) Sync(ctx context.Context, force bool) (domain.SyncResult, error) {
	start := s.now()
	logger := s.logger.With("run_id", uuid.NewString())

	logger.Info("starting sync",
		"force", force,
		"max_pages", s.config.MaxPages,
		"per_page", s.config.PerPage,
	)

	result, err := s.run(ctx, logger, start, force)
	result.Provider = s.adapter.Provider()
	result.Duration = s.now().Sub(start)

	outcome := runOutcome(result, err)
	observability.RecordSyncRun(result.Provider.String(), outcome, result.Duration,
		result.SyncedCount, result.SkippedCount, result.ErrorCount)

	if err != nil {
		logger.Error("sync failed",
			"reason", result.Reason,
			"synced", result.SyncedCount,
			"error", err,
		)
		return result, err
	}

	logger.Info("sync completed",
		"outcome", outcome,
		"synced", result.SyncedCount,
		"skipped", result.SkippedCount,
		"errors", result.ErrorCount,
		"pages", result.Pages,
		"stopped_early", result.StoppedEarly,
		"quota_exhausted", result.QuotaExhausted,
		"duration", result.Duration,
	)

	return result, nil
}

func (s *SyncService) run(ctx context.Context, logger *slog.Logger, start time.Time, force bool) (domain.SyncResult, error) {
	var result domain.SyncResult
	provider := s.adapter.Provider()

	var cursor *time.Time
	if !force {
		c, err := s.cursors.GetCursor(ctx, provider)
		if err != nil {
			return result, fmt.Errorf("get cursor: %w", err)
		}
		cursor = c
	}

	if cursor != nil && start.Sub(*cursor) < s.config.MinInterval {
		logger.Debug("sync not needed yet", "last_synced_at", *cursor)
		result.SkippedEntirely = true
		result.Reason = domain.ReasonNotNeeded
		return result, nil
	}

	if _, daily := s.limiter.Remaining(provider); daily == 0 {
		result.QuotaExhausted = true
		result.Reason = domain.ReasonQuotaExceeded
		return result, fmt.Errorf("%s: %w", provider, domain.ErrQuotaExceeded)
	}

	token, err := s.tokens.AccessToken(ctx, provider)
	if err != nil {
		result.Reason = domain.ReasonNotAuthenticated
		if errors.Is(err, domain.ErrRefreshFailed) {
			result.Reason = domain.ReasonRefreshFailed
		}
		return result, fmt.Errorf("authenticate: %w", err)
	}

	after := start.Add(-s.config.BackfillWindow)
	if cursor != nil {
		after = *cursor
	}
	logger.Info("fetching activities", "after", after)

pages:
	for page := 1; page <= s.config.MaxPages; page++ {
		if page > 1 && s.config.PageDelay > 0 {
			if err := s.sleep(ctx, s.config.PageDelay); err != nil {
				return result, err
			}
		}

		remotes, err := s.fetchPage(ctx, logger, token, after, page)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return result, ctx.Err()
		case errors.Is(err, domain.ErrQuotaExceeded):
			logger.Warn("daily quota exhausted, stopping pagination", "page", page)
			result.QuotaExhausted = true
			result.StoppedEarly = true
			break pages
		default:
			logger.Warn("page fetch failed, stopping pagination", "page", page, "error", err)
			result.StoppedEarly = true
			break pages
		}

		result.Pages++
		logger.Debug("fetched page", "page", page, "count", len(remotes))

		for _, remote := range remotes {
			if err := s.processActivity(ctx, logger, token, remote, &result); err != nil {
				return result, err
			}
		}

		if len(remotes) < s.config.PerPage {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := s.cursors.SetCursor(ctx, provider, start); err != nil {
		return result, fmt.Errorf("set cursor: %w", err)
	}
	observability.RecordCursor(provider.String(), start)

	switch {
	case result.QuotaExhausted && result.SyncedCount == 0:
		result.Reason = domain.ReasonQuotaExceeded
	case result.SyncedCount == 0 && result.ErrorCount == 0 && !result.StoppedEarly:
		result.Reason = domain.ReasonNoNewActivities
	}

	return result, nil
}

// fetchPage lists one page. A provider-side 429 gets a single backoff and
// one more attempt. A longer Retry-After from the provider wins.
func (s *SyncService) fetchPage(ctx context.Context, logger *slog.Logger, token string, after time.Time, page int) ([]domain.RemoteActivity, error) {
	remotes, err := s.listPage(ctx, token, after, page)
	if !errors.Is(err, transport.ErrTooManyRequests) {
		return remotes, err
	}

	backoff := s.config.RateLimitBackoff
	var statusErr *transport.StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > backoff {
		backoff = statusErr.RetryAfter
	}

	logger.Warn("provider rate limited page fetch, backing off",
		"page", page,
		"backoff", backoff,
	)
	if err := s.sleep(ctx, backoff); err != nil {
		return nil, err
	}

	return s.listPage(ctx, token, after, page)
}

func (s *SyncService) listPage(ctx context.Context, token string, after time.Time, page int) ([]domain.RemoteActivity, error) {
	provider := s.adapter.Provider()

	allowed, err := s.limiter.CheckAndWait(ctx, provider)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domain.ErrQuotaExceeded
	}

	remotes, err := s.adapter.ListActivities(ctx, token, after, page, s.config.PerPage)
	s.record(err)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}
	return remotes, nil
}

// processActivity stores one remote activity. The returned error is fatal
// for the run; anything recoverable is counted in result instead.
func (s *SyncService) processActivity(ctx context.Context, logger *slog.Logger, token string, remote domain.RemoteActivity, result *domain.SyncResult) error {
	provider := s.adapter.Provider()

	if remote.SourceID == "" {
		logger.Warn("skipping activity without id")
		result.ErrorCount++
		return nil
	}

	id := domain.ActivityID(provider, remote.SourceID)
	exists, err := s.activities.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check activity %s: %w", id, err)
	}
	if exists {
		result.SkippedCount++
		return nil
	}

	activity, err := s.adapter.Normalize(remote, s.now())
	if err != nil {
		logger.Warn("skipping malformed activity", "activity_id", id, "error", err)
		result.ErrorCount++
		return nil
	}

	samples, streamFailed, err := s.fetchSamples(ctx, logger, token, remote, activity.ID, result)
	if err != nil {
		return err
	}

	activity.HasStreams = len(samples) > 0
	if err := s.persist(ctx, activity, samples); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("failed to save activity", "activity_id", activity.ID, "error", err)
		result.ErrorCount++
		return nil
	}

	result.SyncedCount++
	if streamFailed {
		result.ErrorCount++
	}

	s.publish(ctx, logger, activity, len(samples))
	return nil
}

// fetchSamples returns the activity's samples when the quota allows it.
// A failed fetch is reported through streamFailed; err is fatal.
func (s *SyncService) fetchSamples(
	ctx context.Context,
	logger *slog.Logger,
	token string,
	remote domain.RemoteActivity,
	activityID string,
	result *domain.SyncResult,
) (samples []domain.Sample, streamFailed bool, err error) {
	provider := s.adapter.Provider()

	allowed, err := s.limiter.CheckAndWait(ctx, provider)
	if err != nil {
		return nil, false, err
	}
	if !allowed {
		logger.Info("daily quota exhausted, saving activity without streams", "activity_id", activityID)
		result.QuotaExhausted = true
		return nil, false, nil
	}

	if err := s.pacer.Wait(ctx); err != nil {
		return nil, false, err
	}

	samples, fetchErr := s.adapter.GetSamples(ctx, token, remote, activityID)
	s.record(fetchErr)
	if fetchErr != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		logger.Warn("stream fetch failed, saving activity without streams",
			"activity_id", activityID,
			"error", fetchErr,
		)
		return nil, true, nil
	}
	return samples, false, nil
}

// record counts one adapter call against the quota. Calls rejected by an
// open circuit breaker never reached the provider and are not counted.
func (s *SyncService) record(err error) {
	if errors.Is(err, transport.ErrCircuitOpen) {
		return
	}
	s.limiter.Record(s.adapter.Provider())
}

func (s *SyncService) persist(ctx context.Context, activity *domain.Activity, samples []domain.Sample) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.activities.UpsertActivity(txCtx, activity); err != nil {
			return fmt.Errorf("upsert activity: %w", err)
		}
		if len(samples) == 0 {
			return nil
		}
		if err := s.activities.UpsertSamples(txCtx, samples); err != nil {
			return fmt.Errorf("upsert samples: %w", err)
		}
		return nil
	})
}

func (s *SyncService) publish(ctx context.Context, logger *slog.Logger, activity *domain.Activity, samples int) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishActivity(ctx, activity, samples); err != nil {
		logger.Warn("failed to publish activity", "activity_id", activity.ID, "error", err)
		observability.RecordPublishFailure(activity.Source.String())
	}
}

func runOutcome(result domain.SyncResult, err error) string {
	switch {
	case err != nil:
		return "failed"
	case result.SkippedEntirely:
		return "skipped"
	case result.StoppedEarly || result.ErrorCount > 0 || result.QuotaExhausted:
		return "partial"
	default:
		return "success"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
