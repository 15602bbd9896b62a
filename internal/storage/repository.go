package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finora/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps one finance document per user plus the key-value
// records used by the PIN gate.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load implements FinanceStore.
func (r *SQLiteRepository) Load(ctx context.Context, userID string) (core.FinanceData, bool, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM finance_documents WHERE user_id = ?`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FinanceData{}, false, nil
	}
	if err != nil {
		return core.FinanceData{}, false, fmt.Errorf("load finance data: %w", err)
	}

	var data core.FinanceData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return core.FinanceData{}, false, fmt.Errorf("decode finance data: %w", err)
	}
	return data.Normalized(), true, nil
}

// Save implements FinanceStore.
func (r *SQLiteRepository) Save(ctx context.Context, userID string, data core.FinanceData) error {
	payload, err := json.Marshal(data.Normalized())
	if err != nil {
		return fmt.Errorf("encode finance data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO finance_documents (user_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		userID, string(payload), r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save finance data: %w", err)
	}

	slog.DebugContext(ctx, "Finance data saved to SQLite",
		"user_id", userID,
		"transactions", len(data.Transactions),
		"bytes", len(payload))
	return nil
}

// Clear implements FinanceStore.
func (r *SQLiteRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM finance_documents WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear finance data: %w", err)
	}
	slog.InfoContext(ctx, "Finance data cleared", "user_id", userID)
	return nil
}

// LastSaved implements FinanceStore.
func (r *SQLiteRepository) LastSaved(ctx context.Context, userID string) (time.Time, bool, error) {
	var ms int64
	err := r.db.QueryRowContext(ctx,
		`SELECT updated_at FROM finance_documents WHERE user_id = ?`, userID).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read last saved: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}

// Get implements kv.Store.
func (r *SQLiteRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// Set implements kv.Store.
func (r *SQLiteRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete implements kv.Store.
func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
