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

func newReEntryEnv(t *testing.T) (*ReEntryService, *fakePenaltyStore, *fakeLedgerStore, *fakeSignalBus) {
	t.Helper()
	registry := NewRegistry([]domain.Market{
		{Type: testMarket, QuestionName: testQuestion, Contract: testContract},
	})
	penalties := newFakePenaltyStore()
	ledger := &fakeLedgerStore{}
	bus := newFakeSignalBus()
	svc := NewReEntryService(registry, penalties, ledger, bus, &fakeAuditStore{}, testLogger())
	svc.now = func() time.Time { return time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC) }
	return svc, penalties, ledger, bus
}

func TestReconcileClearsAllPenaltyDates(t *testing.T) {
	svc, penalties, ledger, bus := newReEntryEnv(t)
	ctx := context.Background()

	// Penalties accumulated across several days all clear at once.
	for day := 10; day <= 12; day++ {
		_, err := penalties.Insert(ctx, testMarket, "0xabc", civil.Date{Year: 2026, Month: 3, Day: day})
		require.NoError(t, err)
	}
	_, err := penalties.Insert(ctx, testMarket, "0xother", civil.Date{Year: 2026, Month: 3, Day: 12})
	require.NoError(t, err)

	cleared, err := svc.Reconcile(ctx, testMarket, "0xABC")
	require.NoError(t, err)
	assert.EqualValues(t, 3, cleared)

	rows, err := penalties.ListByWallet(ctx, testMarket, "0xabc")
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Other wallets keep their penalties.
	rows, err = penalties.ListByWallet(ctx, testMarket, "0xother")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	// A re-entry ledger event restores future eligibility.
	require.Len(t, ledger.events, 1)
	assert.Equal(t, domain.EventReEntry, ledger.events[0].EventType)
	assert.Equal(t, "0xabc", ledger.events[0].Wallet)
	assert.Equal(t, testContract, ledger.events[0].Contract)

	assert.Equal(t, 1, bus.count("reentries"))
}

func TestReconcileNoPenaltiesIsNoOpSuccess(t *testing.T) {
	svc, _, ledger, _ := newReEntryEnv(t)

	cleared, err := svc.Reconcile(context.Background(), testMarket, "0xclean")
	require.NoError(t, err)
	assert.Zero(t, cleared)

	// The ledger event is still recorded: the wallet paid on-chain.
	require.Len(t, ledger.events, 1)
	assert.Equal(t, domain.EventReEntry, ledger.events[0].EventType)
}

func TestReconcileRejectsBadInput(t *testing.T) {
	svc, _, _, _ := newReEntryEnv(t)
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, domain.MarketType("unknown"), "0xabc")
	assert.ErrorIs(t, err, domain.ErrInvalidMarketType)

	_, err = svc.Reconcile(ctx, testMarket, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidWallet)
}

func TestPenaltiesListsWalletRows(t *testing.T) {
	svc, penalties, _, _ := newReEntryEnv(t)
	ctx := context.Background()

	_, err := penalties.Insert(ctx, testMarket, "0xabc", civil.Date{Year: 2026, Month: 3, Day: 11})
	require.NoError(t, err)
	_, err = penalties.Insert(ctx, testMarket, "0xabc", civil.Date{Year: 2026, Month: 3, Day: 13})
	require.NoError(t, err)

	rows, err := svc.Penalties(ctx, testMarket, "0xABC")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].WrongPredictionDate.Before(rows[1].WrongPredictionDate))
}
