// Package server assembles the engine's operator-facing HTTP and WebSocket
// API: route registration, the middleware chain, and the listener
// lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
	"github.com/phetrusrodrigues1997/predictionpot/internal/server/handler"
	"github.com/phetrusrodrigues1997/predictionpot/internal/server/middleware"
	"github.com/phetrusrodrigues1997/predictionpot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string             // empty disables authentication
	RateLimiter domain.RateLimiter // nil disables rate limiting
}

// Per-client request budget for the rate limit middleware.
const (
	rateLimitRequests = 120
	rateLimitWindow   = time.Minute
)

// Handlers carries every handler the server registers routes for.
type Handlers struct {
	Health      *handler.HealthHandler
	Outcomes    *handler.OutcomeHandler
	Settlements *handler.SettlementHandler
	Winners     *handler.WinnerHandler
	ReEntries   *handler.ReEntryHandler
	Ledger      *handler.LedgerHandler
	Pots        *handler.PotHandler
	Admin       *handler.AdminHandler
}

// Server is the engine's headless HTTP + WebSocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps them in the middleware chain:
// CORS outermost, then request logging, rate limiting, and auth closest to
// the mux. The health endpoint sits inside the chain too, so probes also
// need the API key when one is set.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	registerRoutes(mux, handlers, wsHub)

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if cfg.RateLimiter != nil {
		h = middleware.RateLimit(cfg.RateLimiter, rateLimitRequests, rateLimitWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func registerRoutes(mux *http.ServeMux, handlers Handlers, wsHub *ws.Hub) {
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Outcome state machine.
	mux.HandleFunc("POST /api/outcomes/provisional", handlers.Outcomes.SetProvisional)
	mux.HandleFunc("POST /api/outcomes/dispute", handlers.Outcomes.Dispute)
	mux.HandleFunc("GET /api/outcomes", handlers.Outcomes.Get)

	// Settlement pipeline.
	mux.HandleFunc("POST /api/settle", handlers.Settlements.Settle)
	mux.HandleFunc("GET /api/settlements", handlers.Settlements.ListRuns)

	// Winner resolution.
	mux.HandleFunc("POST /api/markets/{type}/winners", handlers.Winners.Resolve)

	// Re-entry reconciliation.
	mux.HandleFunc("POST /api/reentry", handlers.ReEntries.Reconcile)
	mux.HandleFunc("GET /api/reentry/penalties", handlers.ReEntries.ListPenalties)

	// Participation ledger.
	mux.HandleFunc("POST /api/ledger/events", handlers.Ledger.RecordEvent)
	mux.HandleFunc("GET /api/ledger/events", handlers.Ledger.History)
	mux.HandleFunc("GET /api/ledger/eligible", handlers.Ledger.Eligible)

	// Pot lifecycle.
	mux.HandleFunc("GET /api/pots/{contract}", handlers.Pots.Get)
	mux.HandleFunc("POST /api/pots", handlers.Pots.Upsert)

	// Administrative resets.
	mux.HandleFunc("POST /api/admin/reset/market/{type}", handlers.Admin.ResetMarket)
	mux.HandleFunc("POST /api/admin/reset/contract/{contract}", handlers.Admin.ResetContract)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}
}

// Start listens until the server fails or Shutdown is called. A clean
// shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
