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

func newOutcomeService(t *testing.T, now time.Time) (*OutcomeService, *fakeOutcomeStore, *fakeSignalBus) {
	t.Helper()
	registry := NewRegistry([]domain.Market{
		{Type: testMarket, QuestionName: testQuestion, Contract: testContract},
	})
	store := newFakeOutcomeStore()
	bus := newFakeSignalBus()
	svc := NewOutcomeService(registry, store, bus, time.Hour, testLogger())
	svc.now = func() time.Time { return now }
	return svc, store, bus
}

func TestSetProvisionalOpensWindow(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)
	svc, _, bus := newOutcomeService(t, now)
	ctx := context.Background()

	rec, err := svc.SetProvisional(ctx, testMarket, civil.Date{}, domain.OutcomePositive)
	require.NoError(t, err)

	assert.Equal(t, civil.DateOf(now), rec.OutcomeDate)
	require.NotNil(t, rec.ProvisionalOutcome)
	assert.Equal(t, domain.OutcomePositive, *rec.ProvisionalOutcome)
	require.NotNil(t, rec.EvidenceWindowExpires)
	assert.Equal(t, now.Add(time.Hour), *rec.EvidenceWindowExpires)
	assert.True(t, rec.EvidenceWindowActive(now))
	assert.Equal(t, 1, bus.count("outcomes"))
}

func TestReProvisionalRestartsWindowAndClearsDispute(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)
	svc, store, _ := newOutcomeService(t, now)
	ctx := context.Background()
	date := civil.DateOf(now)

	_, err := svc.SetProvisional(ctx, testMarket, date, domain.OutcomePositive)
	require.NoError(t, err)
	require.NoError(t, svc.Dispute(ctx, testMarket, date))

	rec, err := store.Get(ctx, testMarket, testQuestion, date)
	require.NoError(t, err)
	require.True(t, rec.Disputed)

	// Correcting the provisional outcome restarts the window clean.
	svc.now = func() time.Time { return now.Add(30 * time.Minute) }
	rec, err = svc.SetProvisional(ctx, testMarket, date, domain.OutcomeNegative)
	require.NoError(t, err)
	assert.False(t, rec.Disputed)
	assert.Equal(t, now.Add(90*time.Minute), *rec.EvidenceWindowExpires)
	assert.Equal(t, domain.OutcomeNegative, *rec.ProvisionalOutcome)
}

func TestDisputeAfterWindowCloses(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)
	svc, _, _ := newOutcomeService(t, now)
	ctx := context.Background()
	date := civil.DateOf(now)

	_, err := svc.SetProvisional(ctx, testMarket, date, domain.OutcomePositive)
	require.NoError(t, err)

	svc.now = func() time.Time { return now.Add(61 * time.Minute) }
	err = svc.Dispute(ctx, testMarket, date)
	assert.ErrorIs(t, err, domain.ErrWindowClosed)
}

func TestDisputeUnknownOutcome(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)
	svc, _, _ := newOutcomeService(t, now)

	err := svc.Dispute(context.Background(), testMarket, civil.DateOf(now))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFinalClosesWindowAndSupersedesDispute(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)
	svc, _, bus := newOutcomeService(t, now)
	ctx := context.Background()
	date := civil.DateOf(now)

	_, err := svc.SetProvisional(ctx, testMarket, date, domain.OutcomePositive)
	require.NoError(t, err)
	require.NoError(t, svc.Dispute(ctx, testMarket, date))

	rec, err := svc.SetFinal(ctx, testMarket, date, domain.OutcomeNegative)
	require.NoError(t, err)
	require.NotNil(t, rec.FinalOutcome)
	assert.Equal(t, domain.OutcomeNegative, *rec.FinalOutcome)
	assert.True(t, rec.Finalized())

	// Even inside the original window, finalization ends dispute intake.
	assert.False(t, rec.EvidenceWindowActive(now))

	_, active, err := svc.Get(ctx, testMarket, date)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Equal(t, 3, bus.count("outcomes"))
}

func TestOutcomeUnknownMarket(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)
	svc, _, _ := newOutcomeService(t, now)

	_, err := svc.SetProvisional(context.Background(), domain.MarketType("nope"), civil.Date{}, domain.OutcomePositive)
	assert.ErrorIs(t, err, domain.ErrInvalidMarketType)
}
