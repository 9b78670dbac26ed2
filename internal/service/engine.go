package service

import (
	"context"
	"fmt"
	"log/slog"

	"fitsync/internal/domain"
)

// Engine routes sync requests to the SyncService of each configured
// provider and owns per-provider account cleanup.
type Engine struct {
	services   map[domain.Provider]*SyncService
	tokens     TokenRevoker
	cursors    CursorResetter
	activities ActivityPurger
	logger     *slog.Logger
}

func NewEngine(tokens TokenRevoker, cursors CursorResetter, activities ActivityPurger, logger *slog.Logger, services ...*SyncService) *Engine {
	e := &Engine{
		services:   make(map[domain.Provider]*SyncService, len(services)),
		tokens:     tokens,
		cursors:    cursors,
		activities: activities,
		logger:     logger,
	}
	for _, svc := range services {
		e.services[svc.Provider()] = svc
	}
	return e
}

// Providers lists the registered providers in a stable order.
func (e *Engine) Providers() []domain.Provider {
	var out []domain.Provider
	for _, p := range domain.Providers {
		if _, ok := e.services[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) Sync(ctx context.Context, provider domain.Provider, force bool) (domain.SyncResult, error) {
	svc, ok := e.services[provider]
	if !ok {
		return domain.SyncResult{Provider: provider}, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)
	}
	return svc.Sync(ctx, force)
}

// Disconnect forgets the provider's token and cursor so the next sync
// after re-authentication starts with a fresh backfill. With purge set the
// provider's stored activities are deleted as well.
func (e *Engine) Disconnect(ctx context.Context, provider domain.Provider, purge bool) error {
	if !provider.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)
	}

	if err := e.tokens.Revoke(ctx, provider); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if err := e.cursors.DeleteCursor(ctx, provider); err != nil {
		return fmt.Errorf("delete cursor: %w", err)
	}

	var purged int64
	if purge {
		n, err := e.activities.DeleteBySource(ctx, provider)
		if err != nil {
			return fmt.Errorf("delete activities: %w", err)
		}
		purged = n
	}

	e.logger.Info("provider disconnected", "provider", provider, "purged_activities", purged)
	return nil
}
