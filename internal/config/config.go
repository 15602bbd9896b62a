package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Local persistence
	DataBackend  string
	SQLiteDBPath string

	// Remote backup
	RemoteBackend            string
	GoogleSpreadsheetID      string
	GoogleBackupSheetName    string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	OAuthRedirectPort        string
	RemoteTimeout            time.Duration
	RemoteRetryDelay         time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// PIN lock
	PINMaxAttempts  int
	PINLockDuration time.Duration
	PINScheme       string

	// Views
	Timezone     string
	CacheTTL     time.Duration
	CacheSize    int
	RateLimitRPM int

	SampleDataFile string
}

var (
	validDataBackends   = []string{"memory", "sqlite"}
	validRemoteBackends = []string{"none", "memory", "sheets"}
	validPINSchemes     = []string{"legacy", "bcrypt"}
)

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finora.db"),

		RemoteBackend:            getEnv("REMOTE_BACKEND", "none"),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleBackupSheetName:    getEnv("GOOGLE_BACKUP_SHEET_NAME", "Backups"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", "token.json"),
		OAuthRedirectPort:        getEnv("OAUTH_REDIRECT_PORT", "8085"),
		RemoteTimeout:            getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),
		RemoteRetryDelay:         getEnvDuration("REMOTE_RETRY_DELAY", 2*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finora"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "backup_requests"),

		PINMaxAttempts:  getEnvInt("PIN_MAX_ATTEMPTS", 5),
		PINLockDuration: getEnvDuration("PIN_LOCK_DURATION", 3*time.Minute),
		PINScheme:       getEnv("PIN_SCHEME", "legacy"),

		Timezone:     getEnv("TIMEZONE", "Local"),
		CacheTTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize:    getEnvInt("CACHE_SIZE", 512),
		RateLimitRPM: getEnvInt("RATE_LIMIT_RPM", 120),

		SampleDataFile: getEnv("SAMPLE_DATA_FILE", ""),
	}
}

func (c *Config) HasServiceAccount() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
}

func (c *Config) HasOAuthClient() bool {
	return c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != ""
}

// Location resolves Timezone. Call Validate first; an unknown zone falls back
// to time.Local here.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if !slices.Contains(validDataBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validDataBackends))
	}
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if !slices.Contains(validRemoteBackends, c.RemoteBackend) {
		errs = append(errs, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validRemoteBackends))
	}
	if c.RemoteBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errs = append(errs, "GOOGLE_SPREADSHEET_ID is required when using sheets remote backend")
		}
		if !c.HasServiceAccount() && !c.HasOAuthClient() {
			errs = append(errs, "either a service account (GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE) or an OAuth client (GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE) must be provided for sheets remote backend")
		}
		if !c.HasServiceAccount() && c.HasOAuthClient() {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google OAuth token file does not exist: %s (run finoractl sheets auth)", c.GoogleOAuthTokenFile))
			}
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	if c.RemoteTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid remote timeout %v: must be positive", c.RemoteTimeout))
	}
	if c.RemoteRetryDelay < 0 {
		errs = append(errs, fmt.Sprintf("invalid remote retry delay %v: must not be negative", c.RemoteRetryDelay))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.PINMaxAttempts < 1 || c.PINMaxAttempts > 20 {
		errs = append(errs, fmt.Sprintf("invalid PIN max attempts %d: must be between 1 and 20", c.PINMaxAttempts))
	}
	if c.PINLockDuration < time.Second {
		errs = append(errs, fmt.Sprintf("invalid PIN lock duration %v: must be at least 1 second", c.PINLockDuration))
	}
	if !slices.Contains(validPINSchemes, c.PINScheme) {
		errs = append(errs, fmt.Sprintf("invalid PIN scheme '%s': must be one of %v", c.PINScheme, validPINSchemes))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}
	if c.CacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.RateLimitRPM < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}

	if c.SampleDataFile != "" {
		if _, err := os.Stat(c.SampleDataFile); err != nil {
			errs = append(errs, fmt.Sprintf("sample data file is not readable: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
