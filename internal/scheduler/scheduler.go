// Package scheduler runs the daily settlement tick: provisional outcomes
// whose evidence window has expired and which are not disputed are promoted
// to final and settled.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// tickTimeout bounds one settlement tick across all markets.
const tickTimeout = 5 * time.Minute

// Settler is the slice of the settlement service the scheduler drives.
type Settler interface {
	SettleDueProvisional(ctx context.Context) ([]domain.SettlementResult, error)
}

// Scheduler triggers settlement on a cron expression.
type Scheduler struct {
	cron     *cron.Cron
	settler  Settler
	cronSpec string
	logger   *slog.Logger
}

// slogCronLogger adapts slog to the cron.Logger interface used by the
// recovery chain.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info("scheduler: "+msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{slog.String("error", err.Error())}, keysAndValues...)
	l.logger.Error("scheduler: "+msg, args...)
}

// New creates a Scheduler that runs SettleDueProvisional on the given
// 6-field cron expression (seconds included, e.g. "0 5 0 * * *" for 00:00:05
// UTC daily).
func New(settler Settler, cronSpec string, logger *slog.Logger) (*Scheduler, error) {
	logger = logger.With(slog.String("component", "scheduler"))
	cl := slogCronLogger{logger: logger}
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl)))

	s := &Scheduler{
		cron:     c,
		settler:  settler,
		cronSpec: cronSpec,
		logger:   logger,
	}
	if _, err := c.AddFunc(cronSpec, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron loop and blocks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.String("cron", s.cronSpec))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// tick runs one settlement pass. Each run is bounded so a stuck RPC or
// database call cannot pile up overlapping runs.
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	results, err := s.settler.SettleDueProvisional(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "settlement tick failed",
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "settlement tick completed",
		slog.Int("markets_settled", len(results)),
	)
}
