// Package login implements the user upsert command. The Apple sign-in flow
// itself happens on the device; this command takes its opaque identifier as
// input and creates or refreshes the backing user row.
package login

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvirtanen/galleria/internal/backend"
	"github.com/kvirtanen/galleria/internal/conf"
	"github.com/kvirtanen/galleria/internal/httpclient"
	"github.com/kvirtanen/galleria/internal/logging"
)

// Command creates the 'login' command.
func Command(settings *conf.Settings) *cobra.Command {
	var appleID string
	var email string
	var name string
	var avatarURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Create or refresh the user row for an Apple sign-in identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			httpCfg := httpclient.DefaultConfig()
			httpCfg.DefaultTimeout = settings.Backend.Timeout

			logger, closeLog := logging.ServiceLogger("backend")
			defer func() { _ = closeLog() }()

			client, err := backend.NewClient(backend.Config{
				BaseURL:           settings.Backend.URL,
				APIKey:            settings.Backend.APIKey,
				Timeout:           settings.Backend.Timeout,
				RequestsPerSecond: settings.Backend.RequestsPerSecond,
			}, httpclient.New(&httpCfg), logger, nil)
			if err != nil {
				return err
			}
			defer client.Close()

			user, err := client.UpsertUser(cmd.Context(), backend.UserUpsert{
				AppleID:   appleID,
				Email:     email,
				Name:      name,
				AvatarURL: avatarURL,
			})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Printf("signed in as %s (row id %d, last login %s)\n", user.Name, user.ID, user.LastLogin)
			return nil
		},
	}

	cmd.Flags().StringVar(&appleID, "apple-id", "", "Opaque Apple sign-in identifier (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&avatarURL, "avatar-url", "", "Avatar image URL")
	_ = cmd.MarkFlagRequired("apple-id")

	return cmd
}
