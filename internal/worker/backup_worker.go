package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finora/internal/amqp"
	"finora/internal/backup"
	"finora/internal/remote"
)

// Backuper pushes a user's local data to the remote backup.
type Backuper interface {
	Backup(ctx context.Context, userID string) error
}

// BackupWorker handles queued backup requests.
type BackupWorker struct {
	backups Backuper
}

func NewBackupWorker(backups Backuper) *BackupWorker {
	return &BackupWorker{backups: backups}
}

// HandleBackupRequest processes one message. Transient failures are returned
// for redelivery; failures a retry cannot fix are wrapped in amqp.ErrPermanent.
func (w *BackupWorker) HandleBackupRequest(ctx context.Context, msg *amqp.BackupRequestMessage) error {
	slog.InfoContext(ctx, "Processing backup request",
		"user_id", msg.UserID,
		"queued_for", time.Since(msg.Timestamp).Round(time.Millisecond))

	err := w.backups.Backup(ctx, msg.UserID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, backup.ErrNoLocalData):
		slog.InfoContext(ctx, "Nothing to back up", "user_id", msg.UserID)
		return nil
	case errors.Is(err, remote.ErrPermissionDenied), errors.Is(err, backup.ErrRemoteDisabled):
		return fmt.Errorf("%w: %v", amqp.ErrPermanent, err)
	default:
		return err
	}
}
