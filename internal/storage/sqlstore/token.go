package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"fitsync/internal/domain"
)

type TokenStore struct {
	db *sqlx.DB
}

func NewTokenStore(db *sqlx.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) GetToken(ctx context.Context, provider domain.Provider) (*domain.Token, error) {
	var tok domain.Token
	query := s.db.Rebind(`
		SELECT provider, access_token, refresh_token, expires_at, updated_at
		FROM provider_tokens
		WHERE provider = ?`)

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &tok, query, provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tok.ExpiresAt = tok.ExpiresAt.UTC()
	tok.UpdatedAt = tok.UpdatedAt.UTC()
	return &tok, nil
}

func (s *TokenStore) SaveToken(ctx context.Context, tok *domain.Token) error {
	query := s.db.Rebind(`
		INSERT INTO provider_tokens (provider, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`)

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		tok.Provider,
		tok.AccessToken,
		tok.RefreshToken,
		tok.ExpiresAt.UTC(),
		tok.UpdatedAt.UTC(),
	)
	return err
}

func (s *TokenStore) DeleteToken(ctx context.Context, provider domain.Provider) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		s.db.Rebind(`DELETE FROM provider_tokens WHERE provider = ?`),
		provider,
	)
	return err
}
