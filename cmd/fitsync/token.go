package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fitsync/internal/domain"
)

func newTokenCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage provider OAuth tokens",
	}
	cmd.AddCommand(newTokenImportCmd(configPath))
	return cmd
}

func newTokenImportCmd(configPath *string) *cobra.Command {
	var (
		accessToken  string
		refreshToken string
		expiresAt    string
		expiresIn    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "import <provider>",
		Short: "Store a token obtained from the provider's OAuth flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParseProvider(args[0])
			if err != nil {
				return err
			}

			expiry, err := tokenExpiry(expiresAt, expiresIn, time.Now())
			if err != nil {
				return err
			}

			a, err := newApp(*configPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.tokens.Import(cmd.Context(), &domain.Token{
				Provider:     p,
				AccessToken:  accessToken,
				RefreshToken: refreshToken,
				ExpiresAt:    expiry,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s token stored, expires %s\n", p, expiry.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&accessToken, "access-token", "", "OAuth access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "OAuth refresh token")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "access token expiry (RFC3339 or unix seconds)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "access token lifetime from now")
	_ = cmd.MarkFlagRequired("access-token")

	return cmd
}

func tokenExpiry(expiresAt string, expiresIn time.Duration, now time.Time) (time.Time, error) {
	switch {
	case expiresAt != "" && expiresIn != 0:
		return time.Time{}, errors.New("use either --expires-at or --expires-in")
	case expiresIn != 0:
		return now.Add(expiresIn).UTC(), nil
	case expiresAt == "":
		// Unknown expiry: force a refresh on first use.
		return now.UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339, expiresAt); err == nil {
		return t.UTC(), nil
	}
	if unix, err := strconv.ParseInt(expiresAt, 10, 64); err == nil && unix > 0 {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid --expires-at %q", expiresAt)
}
