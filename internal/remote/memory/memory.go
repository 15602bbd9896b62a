// Package memory is an in-process remote.Store with fault injection.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"finora/internal/core"
	"finora/internal/remote"
)

var _ remote.Store = (*Store)(nil)

type Store struct {
	mu       sync.Mutex
	docs     map[string][]byte
	failures []error
	fetches  int
	backups  int
}

func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// FailNext makes the next len(errs) calls return errs in order.
func (s *Store) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// Calls returns how many Fetch and Backup calls were made.
func (s *Store) Calls() (fetches, backups int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches, s.backups
}

func (s *Store) Fetch(ctx context.Context, userID string) (core.FinanceData, bool, error) {
	s.mu.Lock()
	s.fetches++
	err := s.popFailure(ctx)
	b, ok := s.docs[userID]
	s.mu.Unlock()

	if err != nil {
		return core.FinanceData{}, false, err
	}
	if !ok {
		return core.FinanceData{}, false, nil
	}
	var data core.FinanceData
	if err := json.Unmarshal(b, &data); err != nil {
		return core.FinanceData{}, false, fmt.Errorf("decode backup: %w", err)
	}
	return data.Normalized(), true, nil
}

func (s *Store) Backup(ctx context.Context, userID string, data core.FinanceData) error {
	b, err := json.Marshal(data.Normalized())
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backups++
	if err := s.popFailure(ctx); err != nil {
		return err
	}
	s.docs[userID] = b
	return nil
}

func (s *Store) popFailure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	if len(s.failures) == 0 {
		return nil
	}
	err := s.failures[0]
	s.failures = s.failures[1:]
	return err
}
