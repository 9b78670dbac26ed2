package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"fitsync/internal/domain"
)

type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

// GetCursor returns nil when the provider has never completed a sync.
func (s *SyncStateStore) GetCursor(ctx context.Context, provider domain.Provider) (*time.Time, error) {
	var state domain.SyncState
	query := s.db.Rebind(`
		SELECT provider, last_synced_at
		FROM sync_state
		WHERE provider = ?`)

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ts := state.LastSyncedAt.UTC()
	return &ts, nil
}

// SetCursor stores ts unless the stored cursor is already later, so the
// cursor never moves backward.
func (s *SyncStateStore) SetCursor(ctx context.Context, provider domain.Provider, ts time.Time) error {
	query := s.db.Rebind(`
		INSERT INTO sync_state (provider, last_synced_at)
		VALUES (?, ?)
		ON CONFLICT (provider) DO UPDATE SET
			last_synced_at = CASE
				WHEN sync_state.last_synced_at > excluded.last_synced_at THEN sync_state.last_synced_at
				ELSE excluded.last_synced_at
			END`)

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, provider, ts.UTC())
	return err
}

func (s *SyncStateStore) DeleteCursor(ctx context.Context, provider domain.Provider) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		s.db.Rebind(`DELETE FROM sync_state WHERE provider = ?`),
		provider,
	)
	return err
}
