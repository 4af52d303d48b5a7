package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-sql/civil"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// DefaultGraceWindow is the trailing entry window within which a wallet is
// not penalized for missing a prediction. A wallet that joined hours before
// the deadline had no real chance to submit one.
const DefaultGraceWindow = 20 * time.Hour

// GracePolicy decides whether a wallet is exempt from penalty on a given
// date. Every internal failure resolves to exempt: elimination is effectively
// irreversible once funds move, so the policy always errs on the side of the
// participant.
type GracePolicy struct {
	pots   domain.PotStore
	ledger domain.LedgerStore
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewGracePolicy creates a GracePolicy. A non-positive window falls back to
// DefaultGraceWindow.
func NewGracePolicy(pots domain.PotStore, ledger domain.LedgerStore, window time.Duration, logger *slog.Logger) *GracePolicy {
	if window <= 0 {
		window = DefaultGraceWindow
	}
	return &GracePolicy{
		pots:   pots,
		ledger: ledger,
		window: window,
		logger: logger.With(slog.String("component", "grace_policy")),
		now:    time.Now,
	}
}

// IsExempt reports whether the wallet escapes penalty for targetDate on the
// given contract. Exemption applies when the pot has no record, has not
// started, started on targetDate itself, or the wallet entered within the
// trailing grace window before the current settlement instant.
func (g *GracePolicy) IsExempt(ctx context.Context, wallet, contract string, targetDate civil.Date) bool {
	info, err := g.pots.Get(ctx, contract)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.WarnContext(ctx, "pot lookup failed, defaulting to exempt",
				slog.String("contract", contract),
				slog.String("error", err.Error()),
			)
		}
		return true
	}

	if !info.HasStarted {
		return true
	}
	if info.StartedOn != nil && *info.StartedOn == targetDate {
		return true
	}

	since := g.now().Add(-g.window)
	recent, err := g.ledger.HasRecentEntry(ctx, wallet, contract, since)
	if err != nil {
		g.logger.WarnContext(ctx, "recent entry lookup failed, defaulting to exempt",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		return true
	}
	return recent
}
