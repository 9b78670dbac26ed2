package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"fitsync/internal/domain"
	"fitsync/internal/transport"
)

const maxTokenResponse = 64 << 10

type OAuthConfig struct {
	TokenURL string
	ClientID string
	// ClientSecret is omitted from the request when empty (public clients).
	ClientSecret string
}

// OAuthRefresher exchanges a refresh token at a provider's token endpoint.
type OAuthRefresher struct {
	httpClient *http.Client
	cfg        OAuthConfig
	now        func() time.Time
}

func NewOAuthRefresher(cfg OAuthConfig, httpClient *http.Client) *OAuthRefresher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuthRefresher{
		httpClient: httpClient,
		cfg:        cfg,
		now:        time.Now,
	}
}

// tokenResponse covers both absolute (expires_at) and relative (expires_in)
// expiry conventions.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresAt    int64  `json:"expires_at"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*domain.Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {r.cfg.ClientID},
		"refresh_token": {refreshToken},
	}
	if r.cfg.ClientSecret != "" {
		form.Set("client_secret", r.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := transport.CheckResponse(resp); err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponse)).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	var expiresAt time.Time
	switch {
	case tr.ExpiresAt > 0:
		expiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		expiresAt = r.now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
	default:
		return nil, errors.New("token response missing expiry")
	}

	return &domain.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}
