// Package http serves the finora JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finora/internal/backup"
	"finora/internal/cache"
	"finora/internal/core"
	"finora/internal/ledger"
	applog "finora/internal/log"
	"finora/internal/middleware/ratelimit"
	"finora/internal/middleware/security"
	"finora/internal/middleware/trace"
	"finora/internal/pin"
)

// Ledger reads and edits a user's finance document.
type Ledger interface {
	Data(ctx context.Context, userID string) (core.FinanceData, error)
	Version(userID string) uint64
	Touch(userID string)
	CreateTransaction(ctx context.Context, userID string, in ledger.NewTransaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error
	Import(ctx context.Context, userID string, data core.FinanceData) error
	Reset(ctx context.Context, userID string) error
	Wipe(ctx context.Context, userID string) error
}

// Backups moves documents between the local store, the remote backup and
// the sample dataset.
type Backups interface {
	LoadOrSample(ctx context.Context, userID string) (core.FinanceData, backup.Source, error)
	Restore(ctx context.Context, userID string) (core.FinanceData, bool, error)
	RequestBackup(ctx context.Context, userID string) (bool, error)
	UseSample(ctx context.Context, userID string) (core.FinanceData, error)
	SyncStatus(ctx context.Context, userID string) (backup.SyncStatus, error)
	RemoteEnabled() bool
}

// PINs is the PIN lockout machine.
type PINs interface {
	Status(ctx context.Context, userID string) (pin.Status, error)
	SetPIN(ctx context.Context, userID, pin string) error
	VerifyPIN(ctx context.Context, userID, pin string) error
	ClearPIN(ctx context.Context, userID string) error
}

// Pinger reports whether the local store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr         string
	Location     *time.Location
	CacheTTL     time.Duration
	CacheSize    int
	UnlockTTL    time.Duration
	RateLimitRPM int
	Now          func() time.Time
}

type Server struct {
	http.Server

	ledger  Ledger
	backups Backups
	pins    PINs
	ready   Pinger
	loc     *time.Location
	now     func() time.Time

	logger      *applog.Logger
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	monthsCache    *cache.LRUCache[[]core.MonthOption]
	breakdownCache *cache.LRUCache[breakdownResponse]
	unlocks        *cache.LRUCache[string]
	unlockTTL      time.Duration
	janitor        *cache.Janitor

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. ready may be nil.
func NewServer(cfg Config, l Ledger, b Backups, p PINs, ready Pinger, logger *applog.Logger) *Server {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}
	if cfg.UnlockTTL <= 0 {
		cfg.UnlockTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	clientIP := security.NewClientIP()
	s := &Server{
		ledger:         l,
		backups:        b,
		pins:           p,
		ready:          ready,
		loc:            cfg.Location,
		now:            cfg.Now,
		logger:         logger,
		rateLimiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitRPM}),
		tracer:         trace.NewMiddleware(clientIP.Extract, logger),
		monthsCache:    cache.NewLRUCache[[]core.MonthOption](cfg.CacheSize, cfg.CacheTTL),
		breakdownCache: cache.NewLRUCache[breakdownResponse](cfg.CacheSize, cfg.CacheTTL),
		unlocks:        cache.NewLRUCache[string](cfg.CacheSize, cfg.UnlockTTL),
		unlockTTL:      cfg.UnlockTTL,
	}
	s.janitor = cache.NewJanitor(s.monthsCache, s.breakdownCache, s.unlocks)
	s.janitor.Start(10 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(clientIP.Extract, s.onRateLimit)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.tracer.Middleware(h)
	h = applog.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/users/{uid}/session", s.handleOpenSession)

	mux.HandleFunc("GET /api/users/{uid}/months", s.unlocked(s.handleMonths))
	mux.HandleFunc("GET /api/users/{uid}/transactions", s.unlocked(s.handleListTransactions))
	mux.HandleFunc("POST /api/users/{uid}/transactions", s.unlocked(s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/users/{uid}/transactions/{id}", s.unlocked(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/users/{uid}/transactions/{id}", s.unlocked(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/users/{uid}/breakdown", s.unlocked(s.handleBreakdown))

	mux.HandleFunc("GET /api/users/{uid}/pin", s.handlePINStatus)
	mux.HandleFunc("PUT /api/users/{uid}/pin", s.unlocked(s.handleSetPIN))
	mux.HandleFunc("POST /api/users/{uid}/pin/verify", s.handleVerifyPIN)
	mux.HandleFunc("DELETE /api/users/{uid}/pin", s.unlocked(s.handleClearPIN))

	mux.HandleFunc("GET /api/users/{uid}/export", s.unlocked(s.handleExport))
	mux.HandleFunc("POST /api/users/{uid}/import", s.unlocked(s.handleImport))
	mux.HandleFunc("POST /api/users/{uid}/reset", s.unlocked(s.handleReset))
	mux.HandleFunc("POST /api/users/{uid}/wipe", s.handleWipe)

	mux.HandleFunc("POST /api/users/{uid}/backup", s.unlocked(s.handleBackup))
	mux.HandleFunc("POST /api/users/{uid}/restore", s.unlocked(s.handleRestore))
	mux.HandleFunc("GET /api/users/{uid}/sync", s.unlocked(s.handleSyncStatus))
	mux.HandleFunc("POST /api/users/{uid}/sample", s.unlocked(s.handleSample))
}

// Shutdown stops the background loops and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true, "remoteBackup": s.backups.RemoteEnabled()})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded", "method", r.Method, "path", r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later", Code: "rate_limited"})
}
