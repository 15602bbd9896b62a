package backend

import (
	"context"

	"finora/internal/kv"
	"finora/internal/remote"
	"finora/internal/remote/sheets"
	"finora/internal/storage"
)

// CleanupFunc releases what the factory opened.
type CleanupFunc func() error

// Backend is the set of stores the services run on. Remote is nil when
// remote backup is disabled.
type Backend struct {
	Finance storage.FinanceStore
	KV      kv.Store
	Remote  remote.Store
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (b *Backend) Close() error {
	if b == nil || b.Cleanup == nil {
		return nil
	}
	return b.Cleanup()
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Data   DataType
	Remote RemoteType

	// sqlite
	SQLiteDBPath string

	// sheets
	Sheets sheets.Config
}

// DataType selects local persistence.
type DataType string

const (
	SQLiteData DataType = "sqlite"
	MemoryData DataType = "memory"
)

func (t DataType) String() string { return string(t) }

func (t DataType) IsValid() bool {
	switch t {
	case SQLiteData, MemoryData:
		return true
	default:
		return false
	}
}

// RemoteType selects the remote backup target.
type RemoteType string

const (
	NoRemote     RemoteType = "none"
	MemoryRemote RemoteType = "memory"
	SheetsRemote RemoteType = "sheets"
)

func (t RemoteType) String() string { return string(t) }

func (t RemoteType) IsValid() bool {
	switch t {
	case NoRemote, MemoryRemote, SheetsRemote:
		return true
	default:
		return false
	}
}
