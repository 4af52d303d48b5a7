package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// WinnerService resolves the provisional winner set after a final-day
// settlement. Winners are the surviving prediction rows intersected with the
// live on-chain participant list, minus any wallet that carries a penalty in
// the market partition.
type WinnerService struct {
	registry     *Registry
	predictions  domain.PredictionStore
	penalties    domain.PenaltyStore
	participants domain.ParticipantSource
	pots         domain.PotStore
	bus          domain.SignalBus
	audit        domain.AuditStore
	logger       *slog.Logger
}

// NewWinnerService creates a WinnerService. Bus and audit are optional.
func NewWinnerService(
	registry *Registry,
	predictions domain.PredictionStore,
	penalties domain.PenaltyStore,
	participants domain.ParticipantSource,
	pots domain.PotStore,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *WinnerService {
	return &WinnerService{
		registry:     registry,
		predictions:  predictions,
		penalties:    penalties,
		participants: participants,
		pots:         pots,
		bus:          bus,
		audit:        audit,
		logger:       logger.With(slog.String("component", "winner_service")),
	}
}

// ResolveOpts tunes one winner resolution. When Live is non-nil it is used
// as the participant list instead of an on-chain fetch (the caller already
// holds it, e.g. from the payout transaction). AllowEmpty lets an empty live
// list produce an empty winner set instead of refusing; it exists for pots
// that were fully drained on-chain before resolution.
type ResolveOpts struct {
	Live       []string
	AllowEmpty bool
}

// Resolve computes the winner set for a market. The on-chain list is the
// authority on who still holds a stake: a database survivor who already
// withdrew on-chain is excluded, and an empty or unavailable on-chain list
// refuses resolution rather than declaring zero winners.
func (s *WinnerService) Resolve(ctx context.Context, mt domain.MarketType, opts ResolveOpts) ([]string, error) {
	market, err := s.registry.Get(mt)
	if err != nil {
		return nil, err
	}

	remaining, err := s.predictions.ListRemaining(ctx, mt)
	if err != nil {
		return nil, fmt.Errorf("winners: list remaining predictions: %w", err)
	}
	if len(remaining) == 0 {
		s.logger.InfoContext(ctx, "no surviving predictors",
			slog.String("market_type", string(mt)),
		)
		return []string{}, nil
	}

	live := opts.Live
	if live == nil {
		live, err = s.participants.LiveParticipants(ctx, market.Contract)
		if err != nil {
			return nil, fmt.Errorf("winners: fetch live participants: %w", err)
		}
	}
	if len(live) == 0 && !opts.AllowEmpty {
		return nil, domain.ErrNoLiveParticipants
	}
	liveSet := make(map[string]bool, len(live))
	for _, w := range live {
		liveSet[strings.ToLower(w)] = true
	}

	penalized, err := s.penalties.ListWallets(ctx, mt)
	if err != nil {
		return nil, fmt.Errorf("winners: list penalized wallets: %w", err)
	}
	penalizedSet := make(map[string]bool, len(penalized))
	for _, w := range penalized {
		penalizedSet[strings.ToLower(w)] = true
	}

	seen := make(map[string]bool, len(remaining))
	var winners []string
	for _, p := range remaining {
		wallet := strings.ToLower(p.Wallet)
		if seen[wallet] || !liveSet[wallet] || penalizedSet[wallet] {
			continue
		}
		seen[wallet] = true
		winners = append(winners, wallet)
	}
	sort.Strings(winners)

	s.logger.InfoContext(ctx, "winners resolved",
		slog.String("market_type", string(mt)),
		slog.Int("survivors", len(remaining)),
		slog.Int("live_participants", len(live)),
		slog.Int("winners", len(winners)),
	)

	if s.audit != nil {
		_ = s.audit.Log(ctx, "winners_resolved", map[string]any{
			"market_type": string(mt),
			"contract":    market.Contract,
			"winners":     len(winners),
		})
	}
	s.publishWinners(ctx, mt, market.Contract, winners)

	return winners, nil
}

// Announce resolves winners and marks the pot's announcement as sent so the
// notification layer does not repeat it. It is a convenience wrapper used by
// the admin surface after the final settlement.
func (s *WinnerService) Announce(ctx context.Context, mt domain.MarketType) ([]string, error) {
	market, err := s.registry.Get(mt)
	if err != nil {
		return nil, err
	}
	winners, err := s.Resolve(ctx, mt, ResolveOpts{})
	if err != nil {
		return nil, err
	}
	if err := s.pots.MarkAnnouncementSent(ctx, market.Contract); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return winners, fmt.Errorf("winners: mark announcement sent: %w", err)
	}
	return winners, nil
}

func (s *WinnerService) publishWinners(ctx context.Context, mt domain.MarketType, contract string, winners []string) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"event":       "winners_resolved",
		"market_type": string(mt),
		"contract":    contract,
		"winners":     winners,
	})
	if err := s.bus.Publish(ctx, "winners", payload); err != nil {
		s.logger.WarnContext(ctx, "publish winners event failed",
			slog.String("error", err.Error()),
		)
	}
}
