// Package service implements the settlement engine: outcome state
// management, the elimination executor, winner resolution, re-entry
// reconciliation, and the grace period policy. Services depend only on the
// domain store interfaces so every piece is testable against in-memory
// fakes.
package service

import (
	"fmt"
	"sort"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// Registry maps market types to their registered market track (question name
// and pot contract). It is built from configuration at startup; a market
// type unknown to the registry is rejected before any side effects.
type Registry struct {
	markets map[domain.MarketType]domain.Market
}

// NewRegistry builds a Registry from the configured markets.
func NewRegistry(markets []domain.Market) *Registry {
	m := make(map[domain.MarketType]domain.Market, len(markets))
	for _, mk := range markets {
		m[mk.Type] = mk
	}
	return &Registry{markets: m}
}

// Get returns the market registered for the type, or ErrInvalidMarketType.
func (r *Registry) Get(mt domain.MarketType) (domain.Market, error) {
	mk, ok := r.markets[mt]
	if !ok {
		return domain.Market{}, fmt.Errorf("%w: %q", domain.ErrInvalidMarketType, mt)
	}
	return mk, nil
}

// List returns all registered markets sorted by type.
func (r *Registry) List() []domain.Market {
	out := make([]domain.Market, 0, len(r.markets))
	for _, mk := range r.markets {
		out = append(out, mk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
