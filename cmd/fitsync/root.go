package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fitsync/internal/domain"
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "fitsync",
		Short:         "Incremental, rate-limited sync of Strava and Garmin activities",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newSyncCmd(&configPath),
		newStatusCmd(&configPath),
		newTokenCmd(&configPath),
		newDisconnectCmd(&configPath),
		newMigrateCmd(&configPath),
	)

	return rootCmd
}

// selectProviders resolves a --provider flag. An empty value selects every
// enabled provider.
func selectProviders(a *app, flag string) ([]domain.Provider, error) {
	if flag == "" {
		return a.engine.Providers(), nil
	}

	p, err := domain.ParseProvider(flag)
	if err != nil {
		return nil, err
	}
	if _, ok := a.cfg.Provider(p); !ok {
		return nil, fmt.Errorf("provider %s is not enabled", p)
	}
	return []domain.Provider{p}, nil
}
