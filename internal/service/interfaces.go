package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"fitsync/internal/domain"
)

type TokenSupply interface {
	AccessToken(ctx context.Context, provider domain.Provider) (string, error)
}

type ActivityStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	UpsertActivity(ctx context.Context, activity *domain.Activity) error
	UpsertSamples(ctx context.Context, samples []domain.Sample) error
}

type CursorStore interface {
	GetCursor(ctx context.Context, provider domain.Provider) (*time.Time, error)
	SetCursor(ctx context.Context, provider domain.Provider, ts time.Time) error
}

// ProviderAdapter is the capability set one remote provider offers to the
// orchestrator. ListActivities and GetSamples are metered calls.
type ProviderAdapter interface {
	Provider() domain.Provider
	ListActivities(ctx context.Context, token string, after time.Time, page, perPage int) ([]domain.RemoteActivity, error)
	Normalize(remote domain.RemoteActivity, now time.Time) (*domain.Activity, error)
	GetSamples(ctx context.Context, token string, remote domain.RemoteActivity, activityID string) ([]domain.Sample, error)
}

type RateLimiter interface {
	CheckAndWait(ctx context.Context, provider domain.Provider) (bool, error)
	Record(provider domain.Provider)
	Remaining(provider domain.Provider) (shortTerm, daily int)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	PublishActivity(ctx context.Context, activity *domain.Activity, samples int) error
	Close() error
}

type TokenRevoker interface {
	Revoke(ctx context.Context, provider domain.Provider) error
}

type CursorResetter interface {
	DeleteCursor(ctx context.Context, provider domain.Provider) error
}

type ActivityPurger interface {
	DeleteBySource(ctx context.Context, source domain.Provider) (int64, error)
}
