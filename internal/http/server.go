// Package http exposes the ledger commands as a local JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"caja/internal/commands"
	"caja/internal/log"
	"caja/internal/middleware/ratelimit"
	"caja/internal/middleware/security"
	"caja/internal/middleware/trace"
)

// Options tune the server middleware.
type Options struct {
	// RateLimitPerMinute caps write requests per client; zero uses the limiter default.
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	cmd          *commands.Dispatcher
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	guard        *security.LoopbackGuard
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, cmd *commands.Dispatcher, logger *log.Logger, opts Options) *Server {
	logger = logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		cmd:     cmd,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(logger, security.ClientIP),
		guard:   security.NewLoopbackGuard(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/active", s.handleActiveSession)
	mux.HandleFunc("GET /api/sessions/active/exists", s.handleHasActiveSession)
	mux.HandleFunc("POST /api/sessions/{id}/close", s.handleCloseSession)
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.handleSessionSummary)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/recent", s.handleRecentTransactions)
	mux.HandleFunc("GET /api/transactions/search", s.handleSearchTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleRenameCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeactivateCategory)

	mux.HandleFunc("GET /api/summary/today", s.handleTodaySummary)
	mux.HandleFunc("GET /api/summary/today/transactions", s.handleTodayTransactionsSummary)
	mux.HandleFunc("GET /api/summary/daily/{date}", s.handleDailySummary)

	mux.HandleFunc("GET /api/backups", s.handleListBackups)
	mux.HandleFunc("POST /api/backups", s.handleCreateBackup)
	mux.HandleFunc("GET /api/backups/history", s.handleBackupHistory)
	mux.HandleFunc("GET /api/backups/database", s.handleDatabaseInfo)
	mux.HandleFunc("DELETE /api/backups/{name}", s.handleDeleteBackup)

	limitLogger := logger.WithComponent(log.ComponentRateLimit)
	limited := s.limiter.Middleware(security.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		limitLogger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, security.ClientIP(r), log.FieldPath, r.URL.Path)
		writeJSON(w, r, http.StatusTooManyRequests, commands.Response{
			Success: false,
			Error:   "Demasiadas solicitudes. Intente nuevamente en un minuto.",
		})
	})

	var handler http.Handler = mux
	handler = limited(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.guard.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and drains the server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
