// Package pin implements the local PIN gate: a per-user PIN with a failed
// attempt counter and a temporary lock after too many wrong entries.
//
// The default "legacy" scheme stores base64(pin + userID). It keeps records
// written by older clients readable and is an obfuscation, not a hash. The
// "bcrypt" scheme stores a salted one-way hash; legacy records are rewritten
// in that scheme on their next successful verification.
package pin

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"finora/internal/core"
	"finora/internal/kv"
)

const (
	DefaultMaxAttempts  = 5
	DefaultLockDuration = 3 * time.Minute
	MinLength           = 4

	pinKeyPrefix      = "finora_user_pin_"
	attemptsKeyPrefix = "finora_pin_attempts_"
	lockKeyPrefix     = "finora_pin_locked_time_"

	bcryptPrefix = "$2"
)

// Scheme selects how new PINs are stored.
type Scheme string

const (
	SchemeLegacy Scheme = "legacy"
	SchemeBcrypt Scheme = "bcrypt"
)

// ErrNoPIN is returned by VerifyPIN when the user has not set a PIN.
var ErrNoPIN = errors.New("no PIN set")

// LockedError reports that verification is refused until the lock expires.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many wrong attempts, PIN locked. Try again in %d seconds", seconds(e.Remaining))
}

// WrongPinError reports a mismatch that did not trigger the lock.
type WrongPinError struct {
	AttemptsLeft int
}

func (e *WrongPinError) Error() string {
	suffix := "s"
	if e.AttemptsLeft == 1 {
		suffix = ""
	}
	return fmt.Sprintf("wrong PIN. %d attempt%s remaining", e.AttemptsLeft, suffix)
}

// Status is the observable PIN state of a user.
type Status struct {
	IsPINSet        bool          `json:"isPINSet"`
	IsLocked        bool          `json:"isLocked"`
	AttemptsLeft    int           `json:"attemptsLeft"`
	TimeUntilUnlock time.Duration `json:"-"`
}

// SecondsUntilUnlock rounds the remaining lock time up to whole seconds.
func (s Status) SecondsUntilUnlock() int64 { return seconds(s.TimeUntilUnlock) }

type Config struct {
	MaxAttempts  int
	LockDuration time.Duration
	Scheme       Scheme
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  DefaultMaxAttempts,
		LockDuration: DefaultLockDuration,
		Scheme:       SchemeLegacy,
	}
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost sets the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// Service is the lockout state machine. Concurrent calls for the same user
// are last-writer-wins on the underlying store.
type Service struct {
	store      kv.Store
	cfg        Config
	now        func() time.Time
	bcryptCost int
}

func NewService(store kv.Store, cfg Config, opts ...Option) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = DefaultLockDuration
	}
	if cfg.Scheme == "" {
		cfg.Scheme = SchemeLegacy
	}
	s := &Service{store: store, cfg: cfg, now: time.Now, bcryptCost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ParseScheme accepts "legacy" or "bcrypt".
func ParseScheme(v string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(v))) {
	case SchemeLegacy, "":
		return SchemeLegacy, nil
	case SchemeBcrypt:
		return SchemeBcrypt, nil
	default:
		return "", fmt.Errorf("unknown PIN scheme %q", v)
	}
}

// Status reports the state of userID. An expired lock is cleared and the
// attempt counter reset as a side effect.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	now := s.now()

	attempts, err := s.attempts(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	lockUntil, locked, err := s.lockUntil(ctx, userID)
	if err != nil {
		return Status{}, err
	}

	var st Status
	if locked {
		if now.Before(lockUntil) {
			st.IsLocked = true
			st.TimeUntilUnlock = lockUntil.Sub(now)
		} else {
			if err := s.store.Delete(ctx, lockKeyPrefix+userID); err != nil {
				return Status{}, fmt.Errorf("clear expired lock: %w", err)
			}
			if err := s.store.Set(ctx, attemptsKeyPrefix+userID, "0"); err != nil {
				return Status{}, fmt.Errorf("reset attempts: %w", err)
			}
			attempts = 0
			slog.DebugContext(ctx, "PIN lock expired", "user_id", userID)
		}
	}

	_, st.IsPINSet, err = s.store.Get(ctx, pinKeyPrefix+userID)
	if err != nil {
		return Status{}, fmt.Errorf("read PIN: %w", err)
	}
	st.AttemptsLeft = max(0, s.cfg.MaxAttempts-attempts)
	return st, nil
}

// SetPIN stores a new PIN and clears any lockout.
func (s *Service) SetPIN(ctx context.Context, userID, pin string) error {
	if err := validate(pin); err != nil {
		return err
	}
	encoded, err := s.encode(userID, pin)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, pinKeyPrefix+userID, encoded); err != nil {
		return fmt.Errorf("store PIN: %w", err)
	}
	if err := s.store.Set(ctx, attemptsKeyPrefix+userID, "0"); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	if err := s.store.Delete(ctx, lockKeyPrefix+userID); err != nil {
		return fmt.Errorf("clear lock: %w", err)
	}
	slog.InfoContext(ctx, "PIN set", "user_id", userID, "scheme", string(s.cfg.Scheme))
	return nil
}

// VerifyPIN checks pin against the stored record. It returns nil on a match,
// *LockedError while locked or when this attempt triggers the lock,
// *WrongPinError on other mismatches and ErrNoPIN when no PIN is set.
// A locked or PIN-less call consumes no attempt.
func (s *Service) VerifyPIN(ctx context.Context, userID, pin string) error {
	st, err := s.Status(ctx, userID)
	if err != nil {
		return err
	}
	if st.IsLocked {
		return &LockedError{Remaining: st.TimeUntilUnlock}
	}

	stored, ok, err := s.store.Get(ctx, pinKeyPrefix+userID)
	if err != nil {
		return fmt.Errorf("read PIN: %w", err)
	}
	if !ok {
		return ErrNoPIN
	}

	if s.matches(userID, pin, stored) {
		if err := s.store.Set(ctx, attemptsKeyPrefix+userID, "0"); err != nil {
			return fmt.Errorf("reset attempts: %w", err)
		}
		if err := s.store.Delete(ctx, lockKeyPrefix+userID); err != nil {
			return fmt.Errorf("clear lock: %w", err)
		}
		s.upgrade(ctx, userID, pin, stored)
		return nil
	}

	used := s.cfg.MaxAttempts - st.AttemptsLeft + 1
	if err := s.store.Set(ctx, attemptsKeyPrefix+userID, strconv.Itoa(used)); err != nil {
		return fmt.Errorf("store attempts: %w", err)
	}
	if used >= s.cfg.MaxAttempts {
		until := s.now().Add(s.cfg.LockDuration)
		if err := s.store.Set(ctx, lockKeyPrefix+userID, strconv.FormatInt(until.UnixMilli(), 10)); err != nil {
			return fmt.Errorf("store lock: %w", err)
		}
		slog.WarnContext(ctx, "PIN locked after failed attempts", "user_id", userID, "attempts", used)
		return &LockedError{Remaining: s.cfg.LockDuration}
	}
	return &WrongPinError{AttemptsLeft: s.cfg.MaxAttempts - used}
}

// ClearPIN removes the PIN record. It succeeds when nothing is stored.
func (s *Service) ClearPIN(ctx context.Context, userID string) error {
	for _, k := range []string{pinKeyPrefix, attemptsKeyPrefix, lockKeyPrefix} {
		if err := s.store.Delete(ctx, k+userID); err != nil {
			return fmt.Errorf("clear PIN: %w", err)
		}
	}
	return nil
}

func validate(pin string) error {
	if len(pin) < MinLength {
		return core.NewValidationError("pin", fmt.Sprintf("PIN must be at least %d digits", MinLength))
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return core.NewValidationError("pin", "PIN must contain digits only")
		}
	}
	return nil
}

func (s *Service) encode(userID, pin string) (string, error) {
	if s.cfg.Scheme == SchemeBcrypt {
		h, err := bcrypt.GenerateFromPassword([]byte(pin), s.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("hash PIN: %w", err)
		}
		return string(h), nil
	}
	return legacyEncode(userID, pin), nil
}

func (s *Service) matches(userID, pin, stored string) bool {
	if strings.HasPrefix(stored, bcryptPrefix) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(pin)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(legacyEncode(userID, pin))) == 1
}

// upgrade rewrites a legacy record once the plain PIN is known. Failure only
// delays the migration to the next successful verification.
func (s *Service) upgrade(ctx context.Context, userID, pin, stored string) {
	if s.cfg.Scheme != SchemeBcrypt || strings.HasPrefix(stored, bcryptPrefix) {
		return
	}
	encoded, err := s.encode(userID, pin)
	if err == nil {
		err = s.store.Set(ctx, pinKeyPrefix+userID, encoded)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to upgrade legacy PIN record", "user_id", userID, "error", err)
		return
	}
	slog.InfoContext(ctx, "Upgraded legacy PIN record", "user_id", userID)
}

func legacyEncode(userID, pin string) string {
	return base64.StdEncoding.EncodeToString([]byte(pin + userID))
}

func (s *Service) attempts(ctx context.Context, userID string) (int, error) {
	v, ok, err := s.store.Get(ctx, attemptsKeyPrefix+userID)
	if err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		// A corrupt counter is treated as a fresh one.
		return 0, nil
	}
	return n, nil
}

func (s *Service) lockUntil(ctx context.Context, userID string) (time.Time, bool, error) {
	v, ok, err := s.store.Get(ctx, lockKeyPrefix+userID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read lock: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
