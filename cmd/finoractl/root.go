package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"finora/internal/backend"
	"finora/internal/backup"
	"finora/internal/cli"
	"finora/internal/config"
	"finora/internal/ledger"
	applog "finora/internal/log"
	"finora/internal/pin"
	"finora/internal/sample"
)

type rootFlags struct {
	DBPath string
	User   string
}

// env opens the stores on first use, so commands that never touch data
// (sheets auth) run without a database.
type env struct {
	flags *rootFlags

	cfg     *config.Config
	backend *backend.Backend
	ledger  *ledger.Service
	pins    *pin.Service
	backups *backup.Service
}

// newRootCmd builds the command tree on e. The caller closes e after
// Execute.
func newRootCmd(e *env) *cobra.Command {
	flags := &rootFlags{}
	e.flags = flags

	cmd := &cobra.Command{
		Use:           "finoractl",
		Short:         "Inspect and maintain finora data",
		Long:          `finoractl works directly on the finora database: export and import documents, browse months and breakdowns, and manage PIN locks.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flags.DBPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	cmd.PersistentFlags().StringVarP(&flags.User, "user", "u", "", "user id to operate on")

	cmd.AddCommand(newExportCmd(e))
	cmd.AddCommand(newImportCmd(e))
	cmd.AddCommand(newResetCmd(e))
	cmd.AddCommand(newBackupCmd(e))
	cmd.AddCommand(newRestoreCmd(e))
	cmd.AddCommand(newSyncCmd(e))
	cmd.AddCommand(newMonthsCmd(e))
	cmd.AddCommand(newTransactionsCmd(e))
	cmd.AddCommand(newBreakdownCmd(e))
	cmd.AddCommand(newPINCmd(e))
	cmd.AddCommand(newSheetsCmd(e))

	return cmd
}

func (e *env) open(ctx context.Context) error {
	if e.backend != nil {
		return nil
	}
	cli.LoadEnvFile()

	cfg := config.Load()
	if e.flags.DBPath != "" {
		cfg.DataBackend = string(backend.SQLiteData)
		cfg.SQLiteDBPath = e.flags.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logs go to stderr so that export can write the document to stdout.
	logger := applog.New(applog.Config{Level: slog.LevelWarn, Component: applog.ComponentApp, Output: os.Stderr})
	applog.SetDefault(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	b, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}

	scheme, err := pin.ParseScheme(cfg.PINScheme)
	if err != nil {
		_ = b.Close()
		return err
	}

	e.cfg = cfg
	e.backend = b
	e.pins = pin.NewService(b.KV, pin.Config{
		MaxAttempts:  cfg.PINMaxAttempts,
		LockDuration: cfg.PINLockDuration,
		Scheme:       scheme,
	})
	e.ledger = ledger.NewService(b.Finance, e.pins)
	e.backups = backup.NewService(b.Finance, b.Remote, backup.Config{
		Timeout:    cfg.RemoteTimeout,
		RetryDelay: cfg.RemoteRetryDelay,
	}, backup.WithSample(sample.Loader(cfg.SampleDataFile)), backup.WithSyncLog(b.KV))
	return nil
}

func (e *env) close() error {
	if e.backend == nil {
		return nil
	}
	err := e.backend.Close()
	e.backend = nil
	return err
}

// userID opens the stores and returns the --user flag.
func (e *env) userID(ctx context.Context) (string, error) {
	uid := strings.TrimSpace(e.flags.User)
	if uid == "" {
		return "", errors.New("--user is required")
	}
	if err := e.open(ctx); err != nil {
		return "", err
	}
	return uid, nil
}
