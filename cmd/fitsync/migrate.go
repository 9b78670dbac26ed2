package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fitsync/internal/storage/sqlstore"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := sqlstore.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", a.cfg.Database.Driver)
			return nil
		},
	}
}
