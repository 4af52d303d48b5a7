package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-sql/civil"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// DefaultEvidenceWindow is how long disputes may be raised after a
// provisional outcome is set.
const DefaultEvidenceWindow = time.Hour

// OutcomeService manages the provisional/final outcome state machine and is
// the only component that mutates outcome rows.
type OutcomeService struct {
	registry *Registry
	outcomes domain.OutcomeStore
	bus      domain.SignalBus
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewOutcomeService creates an OutcomeService. A non-positive window falls
// back to DefaultEvidenceWindow; bus may be nil.
func NewOutcomeService(registry *Registry, outcomes domain.OutcomeStore, bus domain.SignalBus, window time.Duration, logger *slog.Logger) *OutcomeService {
	if window <= 0 {
		window = DefaultEvidenceWindow
	}
	return &OutcomeService{
		registry: registry,
		outcomes: outcomes,
		bus:      bus,
		window:   window,
		logger:   logger.With(slog.String("component", "outcome_service")),
		now:      time.Now,
	}
}

// SetProvisional records a provisional outcome for the market's question on
// the given date, opening (or restarting) the evidence window and clearing
// any standing dispute.
func (s *OutcomeService) SetProvisional(ctx context.Context, mt domain.MarketType, date civil.Date, outcome domain.Outcome) (domain.OutcomeRecord, error) {
	market, err := s.registry.Get(mt)
	if err != nil {
		return domain.OutcomeRecord{}, err
	}
	if date == (civil.Date{}) {
		date = civil.DateOf(s.now().UTC())
	}

	setAt := s.now().UTC()
	rec, err := s.outcomes.SetProvisional(ctx, mt, market.QuestionName, date, outcome, setAt, setAt.Add(s.window))
	if err != nil {
		return domain.OutcomeRecord{}, fmt.Errorf("outcome_service: set provisional: %w", err)
	}

	s.logger.InfoContext(ctx, "provisional outcome set",
		slog.String("market_type", string(mt)),
		slog.String("date", date.String()),
		slog.String("outcome", string(outcome)),
	)
	s.publish(ctx, "provisional", rec)
	return rec, nil
}

// SetFinal records the final outcome, valid from any state. Finalization
// closes the evidence window immediately and supersedes any open dispute.
func (s *OutcomeService) SetFinal(ctx context.Context, mt domain.MarketType, date civil.Date, outcome domain.Outcome) (domain.OutcomeRecord, error) {
	market, err := s.registry.Get(mt)
	if err != nil {
		return domain.OutcomeRecord{}, err
	}
	if date == (civil.Date{}) {
		date = civil.DateOf(s.now().UTC())
	}

	rec, err := s.outcomes.SetFinal(ctx, mt, market.QuestionName, date, outcome, s.now().UTC())
	if err != nil {
		return domain.OutcomeRecord{}, fmt.Errorf("outcome_service: set final: %w", err)
	}

	s.logger.InfoContext(ctx, "final outcome set",
		slog.String("market_type", string(mt)),
		slog.String("date", date.String()),
		slog.String("outcome", string(outcome)),
	)
	s.publish(ctx, "final", rec)
	return rec, nil
}

// Dispute flags the outcome as disputed. Only valid while the evidence
// window is active; a closed window returns domain.ErrWindowClosed.
func (s *OutcomeService) Dispute(ctx context.Context, mt domain.MarketType, date civil.Date) error {
	market, err := s.registry.Get(mt)
	if err != nil {
		return err
	}

	rec, err := s.outcomes.Get(ctx, mt, market.QuestionName, date)
	if err != nil {
		return fmt.Errorf("outcome_service: get outcome for dispute: %w", err)
	}
	if !rec.EvidenceWindowActive(s.now()) {
		return domain.ErrWindowClosed
	}

	if err := s.outcomes.MarkDisputed(ctx, mt, market.QuestionName, date); err != nil {
		return fmt.Errorf("outcome_service: mark disputed: %w", err)
	}

	s.logger.InfoContext(ctx, "outcome disputed",
		slog.String("market_type", string(mt)),
		slog.String("date", date.String()),
	)
	rec.Disputed = true
	s.publish(ctx, "disputed", rec)
	return nil
}

// Get returns the outcome row along with the derived evidence-window state.
func (s *OutcomeService) Get(ctx context.Context, mt domain.MarketType, date civil.Date) (domain.OutcomeRecord, bool, error) {
	market, err := s.registry.Get(mt)
	if err != nil {
		return domain.OutcomeRecord{}, false, err
	}

	rec, err := s.outcomes.Get(ctx, mt, market.QuestionName, date)
	if err != nil {
		return domain.OutcomeRecord{}, false, err
	}
	return rec, rec.EvidenceWindowActive(s.now()), nil
}

func (s *OutcomeService) publish(ctx context.Context, kind string, rec domain.OutcomeRecord) {
	if s.bus == nil {
		return
	}
	fields := map[string]any{
		"event":       "outcome_" + kind,
		"market_type": string(rec.MarketType),
		"question":    rec.QuestionName,
		"date":        rec.OutcomeDate.String(),
	}
	if rec.ProvisionalOutcome != nil {
		fields["outcome"] = string(*rec.ProvisionalOutcome)
	}
	if rec.FinalOutcome != nil {
		fields["outcome"] = string(*rec.FinalOutcome)
	}
	if rec.EvidenceWindowExpires != nil {
		fields["window_expires"] = rec.EvidenceWindowExpires.UTC().Format(time.RFC3339)
	}
	payload, _ := json.Marshal(fields)
	if err := s.bus.Publish(ctx, "outcomes", payload); err != nil {
		s.logger.WarnContext(ctx, "publish outcome event failed",
			slog.String("error", err.Error()),
		)
	}
}
