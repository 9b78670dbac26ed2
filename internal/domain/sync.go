package domain

import (
	"fmt"
	"time"
)

const (
	ReasonNotNeeded        = "Sync not needed yet"
	ReasonNoNewActivities  = "No new activities"
	ReasonQuotaExceeded    = "Rate limit exceeded, try later"
	ReasonNotAuthenticated = "Not authenticated"
	ReasonRefreshFailed    = "Token refresh failed"
)

// SyncResult is the outcome of one sync run for one provider.
// SkippedEntirely is never set together with a nonzero SyncedCount.
type SyncResult struct {
	Provider        Provider
	SyncedCount     int
	SkippedCount    int
	ErrorCount      int
	SkippedEntirely bool
	Reason          string
	Pages           int
	StoppedEarly    bool
	QuotaExhausted  bool
	Duration        time.Duration
}

// Message renders the result for display.
func (r SyncResult) Message() string {
	if r.Reason != "" && r.SyncedCount == 0 && r.SkippedCount == 0 && r.ErrorCount == 0 {
		return r.Reason
	}
	return fmt.Sprintf("Synced %d activities, %d already existed, %d had stream errors",
		r.SyncedCount, r.SkippedCount, r.ErrorCount)
}

// SyncState is the persisted cursor of a provider.
type SyncState struct {
	Provider     Provider  `db:"provider"`
	LastSyncedAt time.Time `db:"last_synced_at"`
}
