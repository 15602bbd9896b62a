package pin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"finora/internal/core"
	"finora/internal/kv"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time         { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type PINSuite struct {
	suite.Suite
	ctx   context.Context
	store *kv.MemoryStore
	clock *clock
	svc   *Service
}

func (s *PINSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = kv.NewMemoryStore()
	s.clock = &clock{t: time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)}
	s.svc = NewService(s.store, DefaultConfig(), WithClock(s.clock.Now))
}

func TestPINSuite(t *testing.T) {
	suite.Run(t, new(PINSuite))
}

func (s *PINSuite) TestNoPIN() {
	st, err := s.svc.Status(s.ctx, "u1")
	s.Require().NoError(err)
	s.False(st.IsPINSet)
	s.False(st.IsLocked)
	s.Equal(DefaultMaxAttempts, st.AttemptsLeft)

	s.ErrorIs(s.svc.VerifyPIN(s.ctx, "u1", "1234"), ErrNoPIN)

	st, err = s.svc.Status(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(DefaultMaxAttempts, st.AttemptsLeft, "verify without PIN must not consume attempts")
}

func (s *PINSuite) TestSetPINValidation() {
	for _, bad := range []string{"", "123", "12a4", "１２３４"} {
		err := s.svc.SetPIN(s.ctx, "u1", bad)
		var ve *core.ValidationError
		s.Require().ErrorAs(err, &ve, "pin %q", bad)
		s.Equal("pin", ve.Field)
	}
	s.Equal(0, s.store.Len())
}

func (s *PINSuite) TestLegacyRecordLayout() {
	s.Require().NoError(s.svc.SetPIN(s.ctx, "u1", "1234"))

	v, ok, _ := s.store.Get(s.ctx, "finora_user_pin_u1")
	s.True(ok)
	s.Equal("MTIzNHUx", v) // base64("1234u1")

	v, ok, _ = s.store.Get(s.ctx, "finora_pin_attempts_u1")
	s.True(ok)
	s.Equal("0", v)
}

func (s *PINSuite) TestCorrectPINResetsAttempts() {
	s.Require().NoError(s.svc.SetPIN(s.ctx, "u1", "4321"))

	var wrong *WrongPinError
	s.Require().ErrorAs(s.svc.VerifyPIN(s.ctx, "u1", "0000"), &wrong)
	s.Equal(4, wrong.AttemptsLeft)

	s.Require().NoError(s.svc.VerifyPIN(s.ctx, "u1", "4321"))
	st, err := s.svc.Status(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(DefaultMaxAttempts, st.AttemptsLeft)
}

func (s *PINSuite) TestLockoutLifecycle() {
	s.Require().NoError(s.svc.SetPIN(s.ctx, "u1", "1234"))

	for want := 4; want >= 1; want-- {
		var wrong *WrongPinError
		s.Require().ErrorAs(s.svc.VerifyPIN(s.ctx, "u1", "9999"), &wrong)
		s.Equal(want, wrong.AttemptsLeft)
	}

	var locked *LockedError
	s.Require().ErrorAs(s.svc.VerifyPIN(s.ctx, "u1", "9999"), &locked)
	s.Equal(DefaultLockDuration, locked.Remaining)

	st, err := s.svc.Status(s.ctx, "u1")
	s.Require().NoError(err)
	s.True(st.IsLocked)
	s.Equal(0, st.AttemptsLeft)
	s.Equal(int64(180), st.SecondsUntilUnlock())

	// The correct PIN is refused while locked, and no attempt is consumed.
	s.clock.Advance(time.Minute)
	s.Require().ErrorAs(s.svc.VerifyPIN(s.ctx, "u1", "1234"), &locked)
	s.Equal(2*time.Minute, locked.Remaining)
	s.Contains(locked.Error(), "120 seconds")

	s.clock.Advance(2 * time.Minute)
	st, err = s.svc.Status(s.ctx, "u1")
	s.Require().NoError(err)
	s.False(st.IsLocked)
	s.Equal(DefaultMaxAttempts, st.AttemptsLeft)

	_, ok, _ := s.store.Get(s.ctx, "finora_pin_locked_time_u1")
	s.False(ok, "expired lock must be removed")

	s.NoError(s.svc.VerifyPIN(s.ctx, "u1", "1234"))
}

func (s *PINSuite) TestSetPINClearsLock() {
	s.Require().NoError(s.svc.SetPIN(s.ctx, "u1", "1234"))
	for i := 0; i < DefaultMaxAttempts; i++ {
		_ = s.svc.VerifyPIN(s.ctx, "u1", "0000")
	}
	st, _ := s.svc.Status(s.ctx, "u1")
	s.Require().True(st.IsLocked)

	s.Require().NoError(s.svc.SetPIN(s.ctx, "u1", "5678"))
	st, _ = s.svc.Status(s.ctx, "u1")
	s.False(st.IsLocked)
	s.NoError(s.svc.VerifyPIN(s.ctx, "u1", "5678"))
}

func (s *PINSuite) TestClearPINIsIdempotent() {
	s.Require().NoError(s.svc.ClearPIN(s.ctx, "u1"))
	s.Require().NoError(s.svc.SetPIN(s.ctx, "u1", "1234"))
	s.Require().NoError(s.svc.ClearPIN(s.ctx, "u1"))
	s.Require().NoError(s.svc.ClearPIN(s.ctx, "u1"))
	s.Equal(0, s.store.Len())

	st, err := s.svc.Status(s.ctx, "u1")
	s.Require().NoError(err)
	s.False(st.IsPINSet)
}

func (s *PINSuite) TestUsersAreIndependent() {
	s.Require().NoError(s.svc.SetPIN(s.ctx, "a", "1111"))
	s.Require().NoError(s.svc.SetPIN(s.ctx, "b", "1111"))
	_ = s.svc.VerifyPIN(s.ctx, "a", "2222")

	st, _ := s.svc.Status(s.ctx, "b")
	s.Equal(DefaultMaxAttempts, st.AttemptsLeft)
}

func TestBcryptSchemeUpgradesLegacyRecord(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	legacy := NewService(store, DefaultConfig())
	require.NoError(t, legacy.SetPIN(ctx, "u1", "2468"))

	cfg := DefaultConfig()
	cfg.Scheme = SchemeBcrypt
	svc := NewService(store, cfg, WithBcryptCost(bcrypt.MinCost))

	require.NoError(t, svc.VerifyPIN(ctx, "u1", "2468"))
	v, _, _ := store.Get(ctx, "finora_user_pin_u1")
	assert.True(t, strings.HasPrefix(v, "$2"), "record should be rehashed, got %q", v)

	require.NoError(t, svc.VerifyPIN(ctx, "u1", "2468"))
	var wrong *WrongPinError
	assert.ErrorAs(t, svc.VerifyPIN(ctx, "u1", "1357"), &wrong)
}

func TestCustomLimits(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Unix(0, 0)}
	svc := NewService(kv.NewMemoryStore(), Config{MaxAttempts: 2, LockDuration: 10 * time.Second}, WithClock(c.Now))
	require.NoError(t, svc.SetPIN(ctx, "u", "0000"))

	var wrong *WrongPinError
	require.ErrorAs(t, svc.VerifyPIN(ctx, "u", "1111"), &wrong)
	assert.Equal(t, 1, wrong.AttemptsLeft)
	assert.Equal(t, "wrong PIN. 1 attempt remaining", wrong.Error())

	err := svc.VerifyPIN(ctx, "u", "1111")
	var locked *LockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, 10*time.Second, locked.Remaining)
}

func TestParseScheme(t *testing.T) {
	for in, want := range map[string]Scheme{"": SchemeLegacy, "LEGACY": SchemeLegacy, " bcrypt ": SchemeBcrypt} {
		got, err := ParseScheme(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseScheme("argon2")
	assert.Error(t, err)
}
