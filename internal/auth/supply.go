package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"fitsync/internal/domain"
)

// DefaultRefreshThreshold is how close to expiry a token gets refreshed.
const DefaultRefreshThreshold = time.Hour

type TokenStore interface {
	// GetToken returns domain.ErrNotFound when no token is stored.
	GetToken(ctx context.Context, provider domain.Provider) (*domain.Token, error)
	SaveToken(ctx context.Context, token *domain.Token) error
	DeleteToken(ctx context.Context, provider domain.Provider) error
}

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.Token, error)
}

// Supply hands out valid access tokens, refreshing them when they are about
// to expire. Concurrent callers for one provider share a single refresh.
type Supply struct {
	store      TokenStore
	refreshers map[domain.Provider]Refresher
	threshold  time.Duration
	now        func() time.Time
	group      singleflight.Group
	logger     *slog.Logger
}

func NewSupply(store TokenStore, refreshers map[domain.Provider]Refresher, logger *slog.Logger) *Supply {
	return &Supply{
		store:      store,
		refreshers: refreshers,
		threshold:  DefaultRefreshThreshold,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *Supply) AccessToken(ctx context.Context, provider domain.Provider) (string, error) {
	tok, err := s.store.GetToken(ctx, provider)
	if errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", provider, domain.ErrNotAuthenticated)
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%s: %w", provider, domain.ErrNotAuthenticated)
	}

	if !tok.ExpiresWithin(s.now(), s.threshold) {
		return tok.AccessToken, nil
	}

	v, err, _ := s.group.Do(provider.String(), func() (interface{}, error) {
		return s.refresh(ctx, provider, tok)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Supply) refresh(ctx context.Context, provider domain.Provider, current *domain.Token) (string, error) {
	if current.RefreshToken == "" {
		return "", fmt.Errorf("%s: no refresh token: %w", provider, domain.ErrNotAuthenticated)
	}

	r, ok := s.refreshers[provider]
	if !ok {
		return "", fmt.Errorf("%s: no refresher configured: %w", provider, domain.ErrRefreshFailed)
	}

	fresh, err := r.Refresh(ctx, current.RefreshToken)
	if err != nil {
		s.logger.Warn("token refresh failed", "provider", provider, "error", err)
		return "", fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}

	fresh.Provider = provider
	fresh.UpdatedAt = s.now()
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}

	if err := s.store.SaveToken(ctx, fresh); err != nil {
		return "", fmt.Errorf("%w: save token: %w", domain.ErrRefreshFailed, err)
	}

	s.logger.Info("access token refreshed",
		"provider", provider,
		"expires_at", fresh.ExpiresAt,
	)

	return fresh.AccessToken, nil
}

// Import stores a token obtained outside this service, e.g. by an OAuth
// authorization-code exchange.
func (s *Supply) Import(ctx context.Context, token *domain.Token) error {
	if !token.Provider.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownProvider, token.Provider)
	}
	if token.AccessToken == "" {
		return errors.New("access token is required")
	}
	token.UpdatedAt = s.now()
	return s.store.SaveToken(ctx, token)
}

// Revoke forgets the stored token of a provider.
func (s *Supply) Revoke(ctx context.Context, provider domain.Provider) error {
	return s.store.DeleteToken(ctx, provider)
}
