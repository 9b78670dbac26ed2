package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"fitsync/internal/domain"
)

type providerStatus struct {
	Provider       domain.Provider `json:"provider"`
	Authenticated  bool            `json:"authenticated"`
	TokenExpiresAt *time.Time      `json:"token_expires_at,omitempty"`
	LastSyncedAt   *time.Time      `json:"last_synced_at,omitempty"`
	Activities     int             `json:"activities"`
}

func newStatusCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show token, cursor and stored activity count per provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			var statuses []providerStatus
			for _, p := range a.engine.Providers() {
				st, err := loadStatus(cmd, a, p)
				if err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
				statuses = append(statuses, st)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statuses)
			}

			out := cmd.OutOrStdout()
			for _, st := range statuses {
				last := "never"
				if st.LastSyncedAt != nil {
					last = st.LastSyncedAt.Local().Format(time.RFC3339)
				}
				auth := "not authenticated"
				if st.Authenticated {
					auth = "authenticated"
				}
				fmt.Fprintf(out, "%-8s %-18s last sync: %-26s activities: %d\n",
					st.Provider, auth, last, st.Activities)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func loadStatus(cmd *cobra.Command, a *app, p domain.Provider) (providerStatus, error) {
	ctx := cmd.Context()
	st := providerStatus{Provider: p}

	tok, err := a.tokenStore.GetToken(ctx, p)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return st, fmt.Errorf("load token: %w", err)
	default:
		st.Authenticated = tok.AccessToken != ""
		st.TokenExpiresAt = &tok.ExpiresAt
	}

	if st.LastSyncedAt, err = a.cursors.GetCursor(ctx, p); err != nil {
		return st, fmt.Errorf("load cursor: %w", err)
	}

	if st.Activities, err = a.activities.Count(ctx, p); err != nil {
		return st, fmt.Errorf("count activities: %w", err)
	}

	return st, nil
}
