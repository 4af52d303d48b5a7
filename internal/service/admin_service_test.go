package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

type adminEnv struct {
	predictions *fakePredictionStore
	penalties   *fakePenaltyStore
	ledger      *fakeLedgerStore
	pots        *fakePotStore
	cache       *fakeParticipantCache
	audit       *fakeAuditStore
	svc         *AdminService
}

func newAdminEnv(t *testing.T) *adminEnv {
	t.Helper()
	env := &adminEnv{
		predictions: newFakePredictionStore(),
		penalties:   newFakePenaltyStore(),
		ledger:      &fakeLedgerStore{},
		pots:        newFakePotStore(),
		cache:       &fakeParticipantCache{},
		audit:       &fakeAuditStore{},
	}
	registry := NewRegistry([]domain.Market{
		{Type: testMarket, QuestionName: testQuestion, Contract: testContract},
	})
	env.svc = NewAdminService(registry, env.predictions, env.penalties,
		env.ledger, env.pots, env.cache, env.audit, testLogger())
	return env
}

func TestResetMarketClearsPredictionsAndPenalties(t *testing.T) {
	env := newAdminEnv(t)
	ctx := context.Background()
	date := civil.Date{Year: 2026, Month: 3, Day: 15}

	require.NoError(t, env.predictions.Upsert(ctx, domain.Prediction{
		Wallet: "0xa", QuestionName: testQuestion, Side: domain.OutcomePositive,
		MarketType: testMarket, PredictionDate: date,
	}))
	_, err := env.penalties.Insert(ctx, testMarket, "0xb", date)
	require.NoError(t, err)

	// Ledger events survive a market reset.
	require.NoError(t, env.ledger.Append(ctx, domain.ParticipationEvent{
		Wallet: "0xa", Contract: testContract,
		EventType: domain.EventEntry, EventAt: time.Now().UTC(),
	}))

	result, err := env.svc.ResetMarket(ctx, testMarket)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Predictions)
	assert.EqualValues(t, 1, result.Penalties)
	assert.Len(t, env.ledger.events, 1)
	assert.Contains(t, env.audit.eventNames(), "market_reset")

	_, err = env.svc.ResetMarket(ctx, domain.MarketType("unknown"))
	assert.ErrorIs(t, err, domain.ErrInvalidMarketType)
}

func TestResetContractClearsLedgerAndPot(t *testing.T) {
	env := newAdminEnv(t)
	ctx := context.Background()

	require.NoError(t, env.ledger.Append(ctx, domain.ParticipationEvent{
		Wallet: "0xa", Contract: testContract,
		EventType: domain.EventEntry, EventAt: time.Now().UTC(),
	}))
	require.NoError(t, env.pots.Upsert(ctx, domain.PotInfo{Contract: testContract, HasStarted: true}))

	result, err := env.svc.ResetContract(ctx, testContract)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.LedgerEvents)
	assert.True(t, result.PotCleared)
	assert.Empty(t, env.ledger.events)
	assert.Equal(t, []string{testContract}, env.cache.invalidated)

	// Resetting again finds nothing; still succeeds.
	result, err = env.svc.ResetContract(ctx, testContract)
	require.NoError(t, err)
	assert.Zero(t, result.LedgerEvents)
	assert.False(t, result.PotCleared)
}

func TestPotLifecycleRoundTrip(t *testing.T) {
	env := newAdminEnv(t)
	ctx := context.Background()

	_, err := env.svc.GetPot(ctx, testContract)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	started := civil.Date{Year: 2026, Month: 3, Day: 10}
	require.NoError(t, env.svc.UpsertPot(ctx, domain.PotInfo{
		Contract:   "0xABC123",
		HasStarted: true,
		StartedOn:  &started,
	}))

	// Addresses are stored lowercased.
	info, err := env.svc.GetPot(ctx, "0xAbC123")
	require.NoError(t, err)
	assert.Equal(t, testContract, info.Contract)
	assert.True(t, info.HasStarted)
	require.NotNil(t, info.StartedOn)
	assert.Equal(t, started, *info.StartedOn)

	err = env.svc.UpsertPot(ctx, domain.PotInfo{})
	assert.Error(t, err)
}
