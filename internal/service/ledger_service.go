package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-sql/civil"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// LedgerService fronts the append-only participation ledger: recording
// entry/exit/re-entry events and projecting eligibility for a target date.
type LedgerService struct {
	ledger domain.LedgerStore
	cache  domain.ParticipantCache
	logger *slog.Logger
	now    func() time.Time
}

// NewLedgerService creates a LedgerService. Cache is optional; when present
// it is invalidated on every append so eligibility reads never serve a list
// from before the event.
func NewLedgerService(ledger domain.LedgerStore, cache domain.ParticipantCache, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		ledger: ledger,
		cache:  cache,
		logger: logger.With(slog.String("component", "ledger_service")),
		now:    time.Now,
	}
}

// RecordEvent appends one participation event. A zero EventAt defaults to the
// current instant. Events are immutable once written.
func (s *LedgerService) RecordEvent(ctx context.Context, ev domain.ParticipationEvent) error {
	if _, err := domain.ParseEventType(string(ev.EventType)); err != nil {
		return err
	}
	ev.Wallet = strings.ToLower(strings.TrimSpace(ev.Wallet))
	if ev.Wallet == "" {
		return domain.ErrInvalidWallet
	}
	ev.Contract = strings.ToLower(strings.TrimSpace(ev.Contract))
	if ev.EventAt.IsZero() {
		ev.EventAt = s.now().UTC()
	}

	if err := s.ledger.Append(ctx, ev); err != nil {
		return fmt.Errorf("ledger: append event: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ev.Contract); err != nil {
			s.logger.WarnContext(ctx, "participant cache invalidation failed",
				slog.String("contract", ev.Contract),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "participation event recorded",
		slog.String("wallet", ev.Wallet),
		slog.String("contract", ev.Contract),
		slog.String("event_type", string(ev.EventType)),
	)
	return nil
}

// Eligible projects the wallets eligible for penalization on targetDate: the
// latest ledger event on or before that date per wallet is entry or re-entry.
// A zero targetDate means the current UTC date.
func (s *LedgerService) Eligible(ctx context.Context, contract string, targetDate civil.Date) ([]string, error) {
	contract = strings.ToLower(strings.TrimSpace(contract))
	if targetDate == (civil.Date{}) {
		targetDate = civil.DateOf(s.now().UTC())
	}
	wallets, err := s.ledger.EligibleWallets(ctx, contract, targetDate)
	if err != nil {
		return nil, fmt.Errorf("ledger: eligible wallets: %w", err)
	}
	return wallets, nil
}

// History returns the raw event stream for a contract, newest first.
func (s *LedgerService) History(ctx context.Context, contract string, opts domain.ListOpts) ([]domain.ParticipationEvent, error) {
	contract = strings.ToLower(strings.TrimSpace(contract))
	events, err := s.ledger.ListByContract(ctx, contract, opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: list events: %w", err)
	}
	return events, nil
}
