// Package memory provides an in-process FinanceStore for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"finora/internal/core"
)

type document struct {
	payload []byte
	saved   time.Time
}

// Store keeps documents serialized so callers never share slices with it.
type Store struct {
	mu   sync.RWMutex
	docs map[string]document
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{docs: make(map[string]document), now: time.Now}
}

func (s *Store) Load(_ context.Context, userID string) (core.FinanceData, bool, error) {
	s.mu.RLock()
	doc, ok := s.docs[userID]
	s.mu.RUnlock()
	if !ok {
		return core.FinanceData{}, false, nil
	}
	var data core.FinanceData
	if err := json.Unmarshal(doc.payload, &data); err != nil {
		return core.FinanceData{}, false, fmt.Errorf("decode finance data: %w", err)
	}
	return data.Normalized(), true, nil
}

func (s *Store) Save(_ context.Context, userID string, data core.FinanceData) error {
	b, err := json.Marshal(data.Normalized())
	if err != nil {
		return fmt.Errorf("encode finance data: %w", err)
	}
	s.mu.Lock()
	s.docs[userID] = document{payload: b, saved: s.now()}
	s.mu.Unlock()
	return nil
}

func (s *Store) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.docs, userID)
	s.mu.Unlock()
	return nil
}

func (s *Store) LastSaved(_ context.Context, userID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[userID]
	return doc.saved, ok, nil
}
