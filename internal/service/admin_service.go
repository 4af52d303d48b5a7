package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// AdminService implements the explicit administrative surfaces: pot lifecycle
// management and the destructive partition resets used between tournament
// seasons. Resets are the only path that removes ledger history.
type AdminService struct {
	registry    *Registry
	predictions domain.PredictionStore
	penalties   domain.PenaltyStore
	ledger      domain.LedgerStore
	pots        domain.PotStore
	cache       domain.ParticipantCache
	audit       domain.AuditStore
	logger      *slog.Logger
}

// NewAdminService creates an AdminService. Cache and audit are optional.
func NewAdminService(
	registry *Registry,
	predictions domain.PredictionStore,
	penalties domain.PenaltyStore,
	ledger domain.LedgerStore,
	pots domain.PotStore,
	cache domain.ParticipantCache,
	audit domain.AuditStore,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		registry:    registry,
		predictions: predictions,
		penalties:   penalties,
		ledger:      ledger,
		pots:        pots,
		cache:       cache,
		audit:       audit,
		logger:      logger.With(slog.String("component", "admin_service")),
	}
}

// MarketResetResult reports the rows removed by a market partition reset.
type MarketResetResult struct {
	Predictions int64 `json:"predictions_deleted"`
	Penalties   int64 `json:"penalties_deleted"`
}

// ResetMarket wipes the mutable state of one market partition: prediction
// rows and penalty rows. The participation ledger and outcome history are
// untouched; use ResetContract to clear membership.
func (s *AdminService) ResetMarket(ctx context.Context, mt domain.MarketType) (MarketResetResult, error) {
	if _, err := s.registry.Get(mt); err != nil {
		return MarketResetResult{}, err
	}

	preds, err := s.predictions.DeleteByMarket(ctx, mt)
	if err != nil {
		return MarketResetResult{}, fmt.Errorf("admin: reset market %s: delete predictions: %w", mt, err)
	}
	pens, err := s.penalties.DeleteByMarket(ctx, mt)
	if err != nil {
		return MarketResetResult{Predictions: preds}, fmt.Errorf("admin: reset market %s: delete penalties: %w", mt, err)
	}

	s.logger.WarnContext(ctx, "market partition reset",
		slog.String("market_type", string(mt)),
		slog.Int64("predictions_deleted", preds),
		slog.Int64("penalties_deleted", pens),
	)
	if s.audit != nil {
		_ = s.audit.Log(ctx, "market_reset", map[string]any{
			"market_type":         string(mt),
			"predictions_deleted": preds,
			"penalties_deleted":   pens,
		})
	}

	return MarketResetResult{Predictions: preds, Penalties: pens}, nil
}

// ContractResetResult reports the rows removed by a contract reset.
type ContractResetResult struct {
	LedgerEvents int64 `json:"ledger_events_deleted"`
	PotCleared   bool  `json:"pot_cleared"`
}

// ResetContract removes a contract's participation ledger and pot lifecycle
// row, typically between tournament seasons. This is the only operation that
// deletes ledger events.
func (s *AdminService) ResetContract(ctx context.Context, contract string) (ContractResetResult, error) {
	contract = strings.ToLower(strings.TrimSpace(contract))
	if contract == "" {
		return ContractResetResult{}, fmt.Errorf("admin: reset contract: empty contract address")
	}

	events, err := s.ledger.DeleteByContract(ctx, contract)
	if err != nil {
		return ContractResetResult{}, fmt.Errorf("admin: reset contract %s: delete ledger events: %w", contract, err)
	}

	potCleared := true
	if err := s.pots.Delete(ctx, contract); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return ContractResetResult{LedgerEvents: events}, fmt.Errorf("admin: reset contract %s: delete pot info: %w", contract, err)
		}
		potCleared = false
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, contract); err != nil {
			s.logger.WarnContext(ctx, "participant cache invalidation failed",
				slog.String("contract", contract),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.WarnContext(ctx, "contract reset",
		slog.String("contract", contract),
		slog.Int64("ledger_events_deleted", events),
		slog.Bool("pot_cleared", potCleared),
	)
	if s.audit != nil {
		_ = s.audit.Log(ctx, "contract_reset", map[string]any{
			"contract":              contract,
			"ledger_events_deleted": events,
			"pot_cleared":           potCleared,
		})
	}

	return ContractResetResult{LedgerEvents: events, PotCleared: potCleared}, nil
}

// GetPot returns a contract's pot lifecycle state.
func (s *AdminService) GetPot(ctx context.Context, contract string) (domain.PotInfo, error) {
	contract = strings.ToLower(strings.TrimSpace(contract))
	info, err := s.pots.Get(ctx, contract)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PotInfo{}, err
		}
		return domain.PotInfo{}, fmt.Errorf("admin: get pot %s: %w", contract, err)
	}
	return info, nil
}

// UpsertPot writes a contract's pot lifecycle state. HasStarted is monotonic
// at the store layer: an upsert can never flip a started pot back.
func (s *AdminService) UpsertPot(ctx context.Context, info domain.PotInfo) error {
	info.Contract = strings.ToLower(strings.TrimSpace(info.Contract))
	if info.Contract == "" {
		return fmt.Errorf("admin: upsert pot: empty contract address")
	}
	if err := s.pots.Upsert(ctx, info); err != nil {
		return fmt.Errorf("admin: upsert pot %s: %w", info.Contract, err)
	}
	if s.audit != nil {
		_ = s.audit.Log(ctx, "pot_upserted", map[string]any{
			"contract":     info.Contract,
			"has_started":  info.HasStarted,
			"is_final_day": info.IsFinalDay,
		})
	}
	return nil
}
