package backend

import (
	"errors"
	"fmt"

	"finora/internal/config"
	"finora/internal/remote/sheets"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	cfg := Config{
		Data:         DataType(appConfig.DataBackend),
		Remote:       RemoteType(appConfig.RemoteBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		Sheets: sheets.Config{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleBackupSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
			OAuthClientJSON: appConfig.GoogleOAuthClientJSON,
			OAuthClientFile: appConfig.GoogleOAuthClientFile,
			OAuthTokenFile:  appConfig.GoogleOAuthTokenFile,
		},
	}
	if cfg.Remote == "" {
		cfg.Remote = NoRemote
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !c.Data.IsValid() {
		return fmt.Errorf("invalid data backend: %s", c.Data)
	}
	if !c.Remote.IsValid() {
		return fmt.Errorf("invalid remote backend: %s", c.Remote)
	}
	if c.Data == SQLiteData && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}
	if c.Remote == SheetsRemote {
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets remote")
		}
		hasSA := c.Sheets.CredentialsJSON != "" || c.Sheets.CredentialsFile != ""
		hasOAuth := c.Sheets.OAuthClientJSON != "" || c.Sheets.OAuthClientFile != ""
		if !hasSA && !hasOAuth {
			return errors.New("service account or OAuth credentials are required for sheets remote")
		}
	}
	return nil
}
