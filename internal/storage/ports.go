package storage

import (
	"context"
	"time"

	"finora/internal/core"
)

// FinanceStore is the local persistence port for per-user finance documents.
// Load reports a user without data with ok == false and a nil error.
type FinanceStore interface {
	Load(ctx context.Context, userID string) (data core.FinanceData, ok bool, err error)
	Save(ctx context.Context, userID string, data core.FinanceData) error
	Clear(ctx context.Context, userID string) error
	LastSaved(ctx context.Context, userID string) (time.Time, bool, error)
}
