package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// ReEntryService reconciles an eliminated wallet after it pays the re-entry
// fee on-chain. Clearing the penalty rows and appending a re-entry ledger
// event restores the wallet to eligible standing for future settlement days;
// past settled days are never revisited.
type ReEntryService struct {
	registry  *Registry
	penalties domain.PenaltyStore
	ledger    domain.LedgerStore
	bus       domain.SignalBus
	audit     domain.AuditStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewReEntryService creates a ReEntryService. Bus and audit are optional.
func NewReEntryService(
	registry *Registry,
	penalties domain.PenaltyStore,
	ledger domain.LedgerStore,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *ReEntryService {
	return &ReEntryService{
		registry:  registry,
		penalties: penalties,
		ledger:    ledger,
		bus:       bus,
		audit:     audit,
		logger:    logger.With(slog.String("component", "reentry_service")),
		now:       time.Now,
	}
}

// Reconcile clears every penalty the wallet holds in the market partition and
// appends a re-entry event to the participation ledger. Payment verification
// happens on-chain before this is called; the engine only records the state
// change. A wallet with no penalties is already in good standing, so the call
// succeeds as a no-op and still records the ledger event.
func (s *ReEntryService) Reconcile(ctx context.Context, mt domain.MarketType, wallet string) (int64, error) {
	market, err := s.registry.Get(mt)
	if err != nil {
		return 0, err
	}
	wallet = strings.ToLower(strings.TrimSpace(wallet))
	if wallet == "" {
		return 0, domain.ErrInvalidWallet
	}

	cleared, err := s.penalties.DeleteByWallet(ctx, mt, wallet)
	if err != nil {
		return 0, fmt.Errorf("reentry: clear penalties: %w", err)
	}

	ev := domain.ParticipationEvent{
		Wallet:    wallet,
		Contract:  market.Contract,
		EventType: domain.EventReEntry,
		EventAt:   s.now().UTC(),
	}
	if err := s.ledger.Append(ctx, ev); err != nil {
		return cleared, fmt.Errorf("reentry: append ledger event: %w", err)
	}

	s.logger.InfoContext(ctx, "re-entry reconciled",
		slog.String("market_type", string(mt)),
		slog.String("wallet", wallet),
		slog.Int64("penalties_cleared", cleared),
	)

	if s.audit != nil {
		_ = s.audit.Log(ctx, "reentry_reconciled", map[string]any{
			"market_type":       string(mt),
			"wallet":            wallet,
			"penalties_cleared": cleared,
		})
	}
	if s.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"event":             "reentry_reconciled",
			"market_type":       string(mt),
			"wallet":            wallet,
			"penalties_cleared": cleared,
		})
		if err := s.bus.Publish(ctx, "reentries", payload); err != nil {
			s.logger.WarnContext(ctx, "publish re-entry event failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return cleared, nil
}

// Penalties lists the penalty rows a wallet currently holds in a market
// partition, which is what a re-entry fee quote is based on.
func (s *ReEntryService) Penalties(ctx context.Context, mt domain.MarketType, wallet string) ([]domain.Penalty, error) {
	if _, err := s.registry.Get(mt); err != nil {
		return nil, err
	}
	wallet = strings.ToLower(strings.TrimSpace(wallet))
	if wallet == "" {
		return nil, domain.ErrInvalidWallet
	}
	rows, err := s.penalties.ListByWallet(ctx, mt, wallet)
	if err != nil {
		return nil, fmt.Errorf("reentry: list penalties: %w", err)
	}
	return rows, nil
}
