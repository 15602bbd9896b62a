// Package remote defines the cloud backup ports. A backup is one document per
// user, addressed by user id.
package remote

import (
	"context"
	"errors"

	"finora/internal/core"
)

var (
	// ErrUnavailable marks transient failures: offline, timeouts, throttling.
	// Callers fall back to local or sample data.
	ErrUnavailable = errors.New("remote backup service unavailable")

	// ErrPermissionDenied is not retryable; the message is shown to the user.
	ErrPermissionDenied = errors.New("permission denied by remote backup service: check that the service account has edit access to the backup spreadsheet")
)

type (
	// Fetcher returns the stored backup. A user without a backup yields
	// ok == false and a nil error.
	Fetcher interface {
		Fetch(ctx context.Context, userID string) (data core.FinanceData, ok bool, err error)
	}

	// Backuper replaces the stored backup.
	Backuper interface {
		Backup(ctx context.Context, userID string, data core.FinanceData) error
	}

	Store interface {
		Fetcher
		Backuper
	}
)

// IsRetryable reports whether err is worth a second attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
