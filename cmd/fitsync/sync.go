package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(configPath *string) *cobra.Command {
	var (
		provider string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync for the enabled providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, appOptions{publisher: true})
			if err != nil {
				return err
			}
			defer a.Close()

			providers, err := selectProviders(a, provider)
			if err != nil {
				return err
			}

			var errs []error
			for _, p := range providers {
				result, err := a.engine.Sync(cmd.Context(), p, force)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", p, result.Message())
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", p, err))
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "provider to sync (strava or garmin); all enabled when empty")
	cmd.Flags().BoolVar(&force, "force", false, "ignore the minimum sync interval and the stored cursor")

	return cmd
}
