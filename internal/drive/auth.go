package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// NewAuthenticatedService builds a Drive v3 service from an OAuth client
// secret file and a stored token file. Token refresh happens inside the
// oauth2 transport; a refreshed token is not written back — the refresh
// token itself does not rotate for installed apps.
func NewAuthenticatedService(ctx context.Context, credentialsFile, tokenFile string, pageSize int64, logger *slog.Logger) (*Service, error) {
	secret, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("drive: reading credentials %s: %w", credentialsFile, err)
	}

	oauthCfg, err := google.ConfigFromJSON(secret, drivev3.DriveMetadataReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("drive: parsing credentials: %w", err)
	}

	token, err := loadToken(tokenFile)
	if err != nil {
		return nil, err
	}

	api, err := drivev3.NewService(ctx,
		option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("drive: building client: %w", err)
	}

	return NewService(api, pageSize, logger), nil
}

// loadToken reads a stored oauth2 token. A missing or unparsable token
// file is an auth error: the user has not completed the consent flow.
func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("drive: reading token %s (%v): %w", path, err, ErrAuth)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("drive: parsing token %s (%v): %w", path, err, ErrAuth)
	}

	if token.RefreshToken == "" && !token.Valid() {
		return nil, fmt.Errorf("drive: token %s is expired and has no refresh token: %w", path, ErrAuth)
	}

	return &token, nil
}

// SaveToken writes an oauth2 token to path with restrictive permissions.
// Used by the authorization command after the consent flow completes.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("drive: encoding token: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("drive: writing token %s: %w", path, err)
	}

	return nil
}
