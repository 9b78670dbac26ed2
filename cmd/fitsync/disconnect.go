package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fitsync/internal/domain"
)

func newDisconnectCmd(configPath *string) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "disconnect <provider>",
		Short: "Forget a provider's token and sync cursor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParseProvider(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(*configPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.Disconnect(cmd.Context(), p, purge); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s disconnected\n", p)
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "also delete the provider's stored activities")

	return cmd
}
