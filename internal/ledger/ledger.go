// Package ledger applies user edits to a finance document and persists the
// result.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finora/internal/core"
	"finora/internal/storage"
)

var ErrNotFound = errors.New("transaction not found")

// PINClearer removes a user's PIN record as part of a wipe.
type PINClearer interface {
	ClearPIN(ctx context.Context, userID string) error
}

// NewTransaction is the user input for a transaction. ID, sync state and a
// missing date are filled in by the service.
type NewTransaction struct {
	AccountID   string               `json:"accountId"`
	Type        core.TransactionType `json:"type"`
	Amount      core.Decimal         `json:"amount"`
	ToAmount    *core.Decimal        `json:"toAmount,omitempty"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	DateTime    *int64               `json:"dateTime,omitempty"`
	DueDate     *int64               `json:"dueDate,omitempty"`
	CategoryID  string               `json:"categoryId,omitempty"`
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// Service serializes mutations per process so that read-modify-write cycles
// on the same document do not interleave.
type Service struct {
	store storage.FinanceStore
	pins  PINClearer
	now   func() time.Time
	newID func() string

	mu       sync.Mutex
	versions map[string]uint64
}

func NewService(store storage.FinanceStore, pins PINClearer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		pins:     pins,
		now:      time.Now,
		newID:    uuid.NewString,
		versions: make(map[string]uint64),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Version changes whenever the user's data is modified through the service.
// It is used as a cache key for derived views.
func (s *Service) Version(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[userID]
}

// Data returns the user's document; a user without data gets an empty one.
func (s *Service) Data(ctx context.Context, userID string) (core.FinanceData, error) {
	data, ok, err := s.store.Load(ctx, userID)
	if err != nil {
		return core.FinanceData{}, fmt.Errorf("load data: %w", err)
	}
	if !ok {
		return core.FinanceData{}.Normalized(), nil
	}
	return data, nil
}

// CreateTransaction validates input and appends it as a new, unsynced
// transaction dated now unless a date was given.
func (s *Service) CreateTransaction(ctx context.Context, userID string, in NewTransaction) (core.Transaction, error) {
	synced := false
	tx := core.Transaction{
		ID:          s.newID(),
		AccountID:   strings.TrimSpace(in.AccountID),
		Type:        in.Type,
		Amount:      in.Amount,
		ToAmount:    in.ToAmount,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		DateTime:    in.DateTime,
		DueDate:     in.DueDate,
		CategoryID:  strings.TrimSpace(in.CategoryID),
		IsSynced:    &synced,
	}
	if tx.DateTime == nil && tx.DueDate == nil {
		now := s.now().UnixMilli()
		tx.DateTime = &now
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := s.mutate(ctx, userID, func(d *core.FinanceData) error {
		d.Transactions = append(d.Transactions, tx)
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transaction created",
		"user_id", userID, "id", tx.ID, "type", tx.Type, "amount", tx.Amount.Float64())
	return tx, nil
}

// UpdateTransaction replaces the transaction with tx.ID. The update marks it
// unsynced.
func (s *Service) UpdateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	synced := false
	tx.IsSynced = &synced
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	err := s.mutate(ctx, userID, func(d *core.FinanceData) error {
		for i := range d.Transactions {
			if d.Transactions[i].ID == tx.ID {
				d.Transactions[i] = tx
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// DeleteTransaction removes the transaction with id.
func (s *Service) DeleteTransaction(ctx context.Context, userID, id string) error {
	return s.mutate(ctx, userID, func(d *core.FinanceData) error {
		for i := range d.Transactions {
			if d.Transactions[i].ID == id {
				d.Transactions = append(d.Transactions[:i], d.Transactions[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

// Import replaces the user's document.
func (s *Service) Import(ctx context.Context, userID string, data core.FinanceData) error {
	if err := s.store.Save(ctx, userID, data.Normalized()); err != nil {
		return fmt.Errorf("save imported data: %w", err)
	}
	s.Touch(userID)
	slog.InfoContext(ctx, "Data imported", "user_id", userID, "transactions", len(data.Transactions))
	return nil
}

// Reset clears the local document only; remote backups are kept.
func (s *Service) Reset(ctx context.Context, userID string) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear local data: %w", err)
	}
	s.Touch(userID)
	slog.InfoContext(ctx, "Local data reset", "user_id", userID)
	return nil
}

// Wipe clears the local document and the PIN record.
func (s *Service) Wipe(ctx context.Context, userID string) error {
	if err := s.Reset(ctx, userID); err != nil {
		return err
	}
	if s.pins != nil {
		if err := s.pins.ClearPIN(ctx, userID); err != nil {
			return fmt.Errorf("clear PIN: %w", err)
		}
	}
	slog.InfoContext(ctx, "Account wiped", "user_id", userID)
	return nil
}

func (s *Service) mutate(ctx context.Context, userID string, fn func(*core.FinanceData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.store.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	if !ok {
		data = core.FinanceData{}.Normalized()
	}
	if err := fn(&data); err != nil {
		return err
	}
	if err := s.store.Save(ctx, userID, data); err != nil {
		slog.ErrorContext(ctx, "Failed to persist finance data", "user_id", userID, "error", err)
		return fmt.Errorf("save data: %w", err)
	}
	s.versions[userID]++
	return nil
}

// Touch invalidates derived views after the document was replaced outside
// the service, e.g. by a restore.
func (s *Service) Touch(userID string) {
	s.mu.Lock()
	s.versions[userID]++
	s.mu.Unlock()
}
