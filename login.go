package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"

	"github.com/driveindex/driveindex/internal/config"
	"github.com/driveindex/driveindex/internal/drive"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize access to a Google Drive account",
		Long: `Run the OAuth authorization flow and store the resulting token.

Requires an OAuth client credentials file (download it from the Google
Cloud console). Only the read-only metadata scope is requested: the tool
never sees file contents.`,
		RunE: runLogin,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault(flagConfigPath)
	if err != nil {
		return err
	}

	secret, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("reading credentials file: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(secret, drivev3.DriveMetadataReadonlyScope)
	if err != nil {
		return fmt.Errorf("parsing credentials file: %w", err)
	}

	authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Printf("Open this URL in a browser and authorize access:\n\n  %s\n\n", authURL)
	fmt.Print("Paste the authorization code here: ")

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return fmt.Errorf("reading authorization code: %w", err)
	}

	token, err := oauthCfg.Exchange(cmd.Context(), code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	if err := drive.SaveToken(cfg.TokenFile, token); err != nil {
		return err
	}

	fmt.Printf("Logged in. Token saved to %s\n", cfg.TokenFile)

	return nil
}
