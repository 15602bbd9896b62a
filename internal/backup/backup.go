// Package backup coordinates the local store with the remote backup: restore
// on login, push on demand, and the fallback to sample data.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"finora/internal/core"
	"finora/internal/kv"
	"finora/internal/remote"
	"finora/internal/storage"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultRetryDelay = 2 * time.Second

	// StaleAfter is how old the last sync may get before the user is asked
	// to back up again.
	StaleAfter = 24 * time.Hour

	syncKeyPrefix = "finora_last_sync_"
)

var (
	ErrNoLocalData    = errors.New("no local data to back up")
	ErrRemoteDisabled = errors.New("remote backup is not configured")
)

// Source tells where LoadOrSample found the data.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
	SourceSample Source = "sample"
)

// Publisher queues a backup for asynchronous processing.
type Publisher interface {
	PublishBackupRequest(ctx context.Context, userID string) error
}

type Config struct {
	Timeout    time.Duration
	RetryDelay time.Duration
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithSample(load func() (core.FinanceData, error)) Option {
	return func(s *Service) { s.sample = load }
}

// WithSyncLog records the time of every successful backup or restore in
// store, so that SyncStatus can report it. Processes sharing the store
// share the record.
func WithSyncLog(store kv.Store) Option {
	return func(s *Service) { s.syncLog = store }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	local     storage.FinanceStore
	remote    remote.Store
	publisher Publisher
	sample    func() (core.FinanceData, error)
	syncLog   kv.Store
	now       func() time.Time
	cfg       Config
	group     singleflight.Group
}

// NewService wires the local store with an optional remote store. A nil rem
// disables Restore and Backup.
func NewService(local storage.FinanceStore, rem remote.Store, cfg Config, opts ...Option) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	s := &Service{local: local, remote: rem, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RemoteEnabled reports whether a remote store is configured.
func (s *Service) RemoteEnabled() bool { return s.remote != nil }

type restored struct {
	data  core.FinanceData
	found bool
}

// Restore fetches the user's remote backup and stores it locally. found is
// false when there is no backup or the service stayed unavailable after one
// retry; in that case err is nil and the caller falls back to other data.
// Concurrent restores of the same user share one fetch.
func (s *Service) Restore(ctx context.Context, userID string) (core.FinanceData, bool, error) {
	if s.remote == nil {
		return core.FinanceData{}, false, ErrRemoteDisabled
	}

	v, err, shared := s.group.Do("restore:"+userID, func() (any, error) {
		var (
			data  core.FinanceData
			found bool
		)
		err := s.withRetry(ctx, "restore", userID, func(ctx context.Context) error {
			var err error
			data, found, err = s.remote.Fetch(ctx, userID)
			return err
		})
		if remote.IsRetryable(err) {
			slog.WarnContext(ctx, "Remote backup unavailable, continuing without it",
				"user_id", userID, "error", err)
			return restored{}, nil
		}
		if err != nil {
			return nil, err
		}
		if !found {
			return restored{}, nil
		}

		if err := s.local.Save(ctx, userID, data); err != nil {
			slog.ErrorContext(ctx, "Failed to cache restored data locally", "user_id", userID, "error", err)
		}
		s.recordSync(ctx, userID)
		slog.InfoContext(ctx, "Restored data from remote backup",
			"user_id", userID, "transactions", len(data.Transactions))
		return restored{data: data, found: true}, nil
	})
	if err != nil {
		return core.FinanceData{}, false, fmt.Errorf("restore %s: %w", userID, err)
	}
	if shared {
		slog.DebugContext(ctx, "Restore shared with concurrent caller", "user_id", userID)
	}
	r := v.(restored)
	return r.data, r.found, nil
}

// LoadOrSample returns local data if present, otherwise the remote backup,
// otherwise the sample dataset. Remote or sample data is saved locally.
// Permission errors from the remote are returned; every other remote
// failure degrades to the sample.
func (s *Service) LoadOrSample(ctx context.Context, userID string) (core.FinanceData, Source, error) {
	data, ok, err := s.local.Load(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load local data", "user_id", userID, "error", err)
	}
	if ok {
		return data, SourceLocal, nil
	}

	if s.remote != nil {
		data, found, err := s.Restore(ctx, userID)
		switch {
		case errors.Is(err, remote.ErrPermissionDenied):
			return core.FinanceData{}, "", err
		case err != nil:
			slog.WarnContext(ctx, "Restore failed, starting with sample data", "user_id", userID, "error", err)
		case found:
			return data, SourceRemote, nil
		default:
			slog.InfoContext(ctx, "No remote backup found, starting with sample data", "user_id", userID)
		}
	}

	data, err = s.UseSample(ctx, userID)
	if err != nil {
		return core.FinanceData{}, "", err
	}
	return data, SourceSample, nil
}

// UseSample replaces the user's local data with the sample dataset.
func (s *Service) UseSample(ctx context.Context, userID string) (core.FinanceData, error) {
	if s.sample == nil {
		return core.FinanceData{}.Normalized(), nil
	}
	data, err := s.sample()
	if err != nil {
		return core.FinanceData{}, fmt.Errorf("load sample data: %w", err)
	}
	if err := s.local.Save(ctx, userID, data); err != nil {
		slog.ErrorContext(ctx, "Failed to save sample data locally", "user_id", userID, "error", err)
	}
	return data, nil
}

// Backup pushes the user's local data to the remote store, retrying once on
// transient failure.
func (s *Service) Backup(ctx context.Context, userID string) error {
	if s.remote == nil {
		return ErrRemoteDisabled
	}

	_, err, _ := s.group.Do("backup:"+userID, func() (any, error) {
		data, ok, err := s.local.Load(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load local data: %w", err)
		}
		if !ok {
			return nil, ErrNoLocalData
		}
		err = s.withRetry(ctx, "backup", userID, func(ctx context.Context) error {
			return s.remote.Backup(ctx, userID, data)
		})
		if err != nil {
			return nil, err
		}
		s.recordSync(ctx, userID)
		slog.InfoContext(ctx, "Backup completed", "user_id", userID, "transactions", len(data.Transactions))
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("backup %s: %w", userID, err)
	}
	return nil
}

// RequestBackup queues a backup when a publisher is configured and runs it
// inline otherwise. queued reports which path was taken.
func (s *Service) RequestBackup(ctx context.Context, userID string) (queued bool, err error) {
	if s.remote == nil && s.publisher == nil {
		return false, ErrRemoteDisabled
	}
	if s.publisher != nil {
		err := s.publisher.PublishBackupRequest(ctx, userID)
		if err == nil {
			return true, nil
		}
		slog.WarnContext(ctx, "Failed to queue backup, running inline", "user_id", userID, "error", err)
	}
	return false, s.Backup(ctx, userID)
}

// SyncStatus describes how current the user's remote backup is.
type SyncStatus struct {
	RemoteEnabled bool
	// LastSync is the last successful backup or restore, nil if none was
	// recorded.
	LastSync *time.Time
	// LastSaved is the last write of the local document, nil without local
	// data.
	LastSaved *time.Time
	// NeedsSync is set when there is local data to protect and it was never
	// synced or the last sync is StaleAfter old.
	NeedsSync bool
}

// Since formats the age of the last sync the way the app shows it: "just
// now", "12m ago", "5h ago", "3d ago". It is empty without a sync.
func (st SyncStatus) Since(now time.Time) string {
	if st.LastSync == nil {
		return ""
	}
	d := now.Sub(*st.LastSync)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return strconv.Itoa(int(d/time.Minute)) + "m ago"
	case d < StaleAfter:
		return strconv.Itoa(int(d/time.Hour)) + "h ago"
	default:
		return strconv.Itoa(int(d/StaleAfter)) + "d ago"
	}
}

// SyncStatus reports when the user's data was last synced and saved.
func (s *Service) SyncStatus(ctx context.Context, userID string) (SyncStatus, error) {
	st := SyncStatus{RemoteEnabled: s.remote != nil}

	saved, ok, err := s.local.LastSaved(ctx, userID)
	if err != nil {
		return SyncStatus{}, fmt.Errorf("read last save: %w", err)
	}
	if ok {
		st.LastSaved = &saved
	}

	if s.syncLog != nil {
		raw, ok, err := s.syncLog.Get(ctx, syncKeyPrefix+userID)
		if err != nil {
			return SyncStatus{}, fmt.Errorf("read last sync: %w", err)
		}
		if ok {
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				slog.WarnContext(ctx, "Ignoring malformed sync record", "user_id", userID, "value", raw)
			} else {
				t := time.UnixMilli(ms)
				st.LastSync = &t
			}
		}
	}

	st.NeedsSync = st.RemoteEnabled && st.LastSaved != nil &&
		(st.LastSync == nil || s.now().Sub(*st.LastSync) >= StaleAfter)
	return st, nil
}

// recordSync stores the current time as the user's last sync. A failure is
// logged only: the backup itself went through.
func (s *Service) recordSync(ctx context.Context, userID string) {
	if s.syncLog == nil {
		return
	}
	v := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.syncLog.Set(ctx, syncKeyPrefix+userID, v); err != nil {
		slog.ErrorContext(ctx, "Failed to record sync time", "user_id", userID, "error", err)
	}
}

// withRetry runs op with the configured timeout and repeats it once after
// RetryDelay if it failed with remote.ErrUnavailable.
func (s *Service) withRetry(ctx context.Context, opName, userID string, op func(context.Context) error) error {
	err := s.attempt(ctx, op)
	if !remote.IsRetryable(err) {
		return err
	}

	slog.WarnContext(ctx, "Remote unavailable, retrying once",
		"operation", opName, "user_id", userID, "delay", s.cfg.RetryDelay, "error", err)

	t := time.NewTimer(s.cfg.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", remote.ErrUnavailable, ctx.Err())
	case <-t.C:
	}
	return s.attempt(ctx, op)
}

func (s *Service) attempt(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	err := op(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, remote.ErrUnavailable) {
		return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return err
}
