package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finora/internal/kv"
	"finora/internal/remote"
	remotemem "finora/internal/remote/memory"
	"finora/internal/remote/sheets"
	"finora/internal/storage"
	"finora/internal/storage/memory"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger.With("component", "backend")}
}

// CreateBackend opens the local stores first and the remote second; a
// remote failure closes what was already opened.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b, err := f.createLocal(config)
	if err != nil {
		return nil, err
	}

	rem, err := f.createRemote(ctx, config)
	if err != nil {
		if cerr := b.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}
	b.Remote = rem

	f.logger.Info("Backend ready", "data", config.Data, "remote", config.Remote)
	return b, nil
}

func (f *DefaultFactory) createLocal(config Config) (*Backend, error) {
	switch config.Data {
	case SQLiteData:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &Backend{Finance: repo, KV: repo, Cleanup: repo.Close}, nil
	case MemoryData:
		f.logger.Warn("Using in-memory data backend, data is lost on restart")
		return &Backend{Finance: memory.NewStore(), KV: kv.NewMemoryStore()}, nil
	default:
		return nil, fmt.Errorf("unsupported data backend: %s", config.Data)
	}
}

func (f *DefaultFactory) createRemote(ctx context.Context, config Config) (remote.Store, error) {
	switch config.Remote {
	case NoRemote:
		f.logger.Info("Remote backup disabled")
		return nil, nil
	case MemoryRemote:
		return remotemem.New(), nil
	case SheetsRemote:
		cli, err := sheets.New(ctx, config.Sheets)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		return cli, nil
	default:
		return nil, fmt.Errorf("unsupported remote backend: %s", config.Remote)
	}
}
