package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phetrusrodrigues1997/predictionpot/internal/notify"
	"github.com/phetrusrodrigues1997/predictionpot/internal/scheduler"
	"github.com/phetrusrodrigues1997/predictionpot/internal/server"
	"github.com/phetrusrodrigues1997/predictionpot/internal/server/handler"
	"github.com/phetrusrodrigues1997/predictionpot/internal/server/ws"
)

// ServeMode runs the HTTP + WebSocket API and the notification dispatcher.
// Settlement happens only when an operator calls POST /api/settle.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startNotifications(ctx, g, deps)
	return g.Wait()
}

// ScheduleMode runs only the daily settlement cron and the notification
// dispatcher. Useful for a worker deployment separated from the API.
func (a *App) ScheduleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting schedule mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startScheduler(ctx, g, deps); err != nil {
		return err
	}
	a.startNotifications(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the daily settlement cron together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	if a.cfg.Scheduler.Enabled {
		if err := a.startScheduler(ctx, g, deps); err != nil {
			return err
		}
	}
	a.startNotifications(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled by configuration")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimiter: deps.RateLimiter,
	}, server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Outcomes:    handler.NewOutcomeHandler(deps.Outcomes, a.logger),
		Settlements: handler.NewSettlementHandler(deps.Settlements, a.logger),
		Winners:     handler.NewWinnerHandler(deps.Winners, a.logger),
		ReEntries:   handler.NewReEntryHandler(deps.ReEntries, a.logger),
		Ledger:      handler.NewLedgerHandler(deps.Ledger, a.logger),
		Pots:        handler.NewPotHandler(deps.Admin, a.logger),
		Admin:       handler.NewAdminHandler(deps.Admin, a.logger),
	}, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startScheduler adds the daily settlement cron goroutine to the errgroup.
func (a *App) startScheduler(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	sched, err := scheduler.New(deps.Settlements, a.cfg.Scheduler.SettleCron, a.logger)
	if err != nil {
		return fmt.Errorf("app: build scheduler: %w", err)
	}
	g.Go(func() error {
		err := sched.Start(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	return nil
}

// startNotifications bridges bus events to the configured notification
// channels. Runs only when at least one sender is configured.
func (a *App) startNotifications(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Notifier == nil {
		return
	}
	dispatcher := notify.NewDispatcher(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		err := dispatcher.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
}
