package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

func newGraceEnv(t *testing.T) (*GracePolicy, *fakePotStore, *fakeLedgerStore, time.Time) {
	t.Helper()
	pots := newFakePotStore()
	ledger := &fakeLedgerStore{}
	now := time.Date(2026, 3, 15, 22, 0, 0, 0, time.UTC)
	policy := NewGracePolicy(pots, ledger, 20*time.Hour, testLogger())
	policy.now = func() time.Time { return now }
	return policy, pots, ledger, now
}

func TestGraceExemptWhenPotUnknownOrNotStarted(t *testing.T) {
	policy, pots, _, now := newGraceEnv(t)
	ctx := context.Background()
	date := civil.DateOf(now)

	// No pot row at all.
	assert.True(t, policy.IsExempt(ctx, "0xabc", testContract, date))

	// Pot exists but has not started.
	require.NoError(t, pots.Upsert(ctx, domain.PotInfo{Contract: testContract}))
	assert.True(t, policy.IsExempt(ctx, "0xabc", testContract, date))
}

func TestGraceExemptOnStartDay(t *testing.T) {
	policy, pots, _, now := newGraceEnv(t)
	ctx := context.Background()
	date := civil.DateOf(now)

	require.NoError(t, pots.Upsert(ctx, domain.PotInfo{
		Contract:   testContract,
		HasStarted: true,
		StartedOn:  &date,
	}))
	assert.True(t, policy.IsExempt(ctx, "0xabc", testContract, date))
}

func TestGraceWindowBoundary(t *testing.T) {
	policy, pots, ledger, now := newGraceEnv(t)
	ctx := context.Background()
	date := civil.DateOf(now)
	startedOn := date.AddDays(-5)

	require.NoError(t, pots.Upsert(ctx, domain.PotInfo{
		Contract:   testContract,
		HasStarted: true,
		StartedOn:  &startedOn,
	}))

	// Entered 10 hours ago: inside the 20 hour window, exempt.
	require.NoError(t, ledger.Append(ctx, domain.ParticipationEvent{
		Wallet: "0xrecent", Contract: testContract,
		EventType: domain.EventEntry, EventAt: now.Add(-10 * time.Hour),
	}))
	assert.True(t, policy.IsExempt(ctx, "0xrecent", testContract, date))

	// Entered 25 hours ago: outside the window, penalized.
	require.NoError(t, ledger.Append(ctx, domain.ParticipationEvent{
		Wallet: "0xstale", Contract: testContract,
		EventType: domain.EventEntry, EventAt: now.Add(-25 * time.Hour),
	}))
	assert.False(t, policy.IsExempt(ctx, "0xstale", testContract, date))

	// No ledger event at all: not exempt.
	assert.False(t, policy.IsExempt(ctx, "0xnever", testContract, date))
}

func TestGraceFailsOpenOnStoreErrors(t *testing.T) {
	policy, pots, ledger, now := newGraceEnv(t)
	ctx := context.Background()
	date := civil.DateOf(now)
	startedOn := date.AddDays(-5)

	// Pot lookup failure resolves to exempt, never to penalize.
	pots.getErr = errors.New("db down")
	assert.True(t, policy.IsExempt(ctx, "0xabc", testContract, date))
	pots.getErr = nil

	require.NoError(t, pots.Upsert(ctx, domain.PotInfo{
		Contract:   testContract,
		HasStarted: true,
		StartedOn:  &startedOn,
	}))
	ledger.recentErr = errors.New("db down")
	assert.True(t, policy.IsExempt(ctx, "0xabc", testContract, date))
}

func TestGraceDefaultWindow(t *testing.T) {
	policy := NewGracePolicy(newFakePotStore(), &fakeLedgerStore{}, 0, testLogger())
	assert.Equal(t, DefaultGraceWindow, policy.window)
}
