package domain

import "errors"

var (
	// ErrNotAuthenticated is returned when no token is stored for a provider.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrRefreshFailed is returned when an expiring token could not be refreshed.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrQuotaExceeded is returned when the daily request budget is spent before a sync starts.
	ErrQuotaExceeded = errors.New("rate limit exceeded")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNotFound        = errors.New("not found")
)
