package domain

import "time"

// Token is an OAuth2 bearer credential for one provider.
type Token struct {
	Provider     Provider  `db:"provider"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ExpiresWithin reports whether the token expires less than d after now.
func (t Token) ExpiresWithin(now time.Time, d time.Duration) bool {
	return t.ExpiresAt.Sub(now) < d
}
