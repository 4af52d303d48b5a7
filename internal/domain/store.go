package domain

import (
	"context"
	"time"

	"github.com/golang-sql/civil"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// LedgerStore reads and appends the append-only participation ledger.
// Events are never updated; DeleteByContract exists only for the explicit
// administrative contract reset.
type LedgerStore interface {
	Append(ctx context.Context, ev ParticipationEvent) error

	// EligibleWallets projects membership as of targetDate: all events with
	// UTC event date <= targetDate, latest event per wallet wins, and
	// wallets whose latest event is entry or re-entry are returned. On error
	// callers must treat eligibility as undeterminable, not as empty.
	EligibleWallets(ctx context.Context, contract string, targetDate civil.Date) ([]string, error)

	// HasRecentEntry reports whether the wallet has an entry or re-entry
	// event at or after the given instant.
	HasRecentEntry(ctx context.Context, wallet, contract string, since time.Time) (bool, error)

	ListByContract(ctx context.Context, contract string, opts ListOpts) ([]ParticipationEvent, error)
	DeleteByContract(ctx context.Context, contract string) (int64, error)
}

// PredictionStore persists the mutable per-day prediction rows.
type PredictionStore interface {
	Upsert(ctx context.Context, p Prediction) error
	ListForDate(ctx context.Context, mt MarketType, question string, date civil.Date) ([]Prediction, error)

	// ListRemaining returns every surviving prediction row in the market
	// partition; after final-day settlement these are the correct predictors
	// that winner resolution consumes.
	ListRemaining(ctx context.Context, mt MarketType) ([]Prediction, error)

	DeleteForWallet(ctx context.Context, mt MarketType, wallet, question string, date civil.Date) error
	DeleteForDate(ctx context.Context, mt MarketType, question string, date civil.Date) (int64, error)
	DeleteByMarket(ctx context.Context, mt MarketType) (int64, error)
}

// PenaltyStore persists elimination records per market partition.
type PenaltyStore interface {
	// Insert records a penalty for the wallet on the given date. Returns
	// false when the row already existed; duplicates are a no-op, not an
	// error, so settlement retries stay idempotent.
	Insert(ctx context.Context, mt MarketType, wallet string, date civil.Date) (bool, error)

	ListWallets(ctx context.Context, mt MarketType) ([]string, error)
	ListByWallet(ctx context.Context, mt MarketType, wallet string) ([]Penalty, error)
	CountForDate(ctx context.Context, mt MarketType, date civil.Date) (int64, error)
	DeleteByWallet(ctx context.Context, mt MarketType, wallet string) (int64, error)
	DeleteByMarket(ctx context.Context, mt MarketType) (int64, error)
}

// OutcomeStore persists the provisional/final outcome rows.
type OutcomeStore interface {
	SetProvisional(ctx context.Context, mt MarketType, question string, date civil.Date, outcome Outcome, setAt, windowExpires time.Time) (OutcomeRecord, error)
	SetFinal(ctx context.Context, mt MarketType, question string, date civil.Date, outcome Outcome, setAt time.Time) (OutcomeRecord, error)
	MarkDisputed(ctx context.Context, mt MarketType, question string, date civil.Date) error
	Get(ctx context.Context, mt MarketType, question string, date civil.Date) (OutcomeRecord, error)
}

// PotStore persists per-contract pot lifecycle state.
type PotStore interface {
	Get(ctx context.Context, contract string) (PotInfo, error)
	Upsert(ctx context.Context, info PotInfo) error
	MarkAnnouncementSent(ctx context.Context, contract string) error
	Delete(ctx context.Context, contract string) error
}

// SettlementRunStore persists settlement run records keyed by
// (market, question, date).
type SettlementRunStore interface {
	Get(ctx context.Context, mt MarketType, question string, date civil.Date) (SettlementRun, error)
	Upsert(ctx context.Context, run SettlementRun) error
	ListRecent(ctx context.Context, limit int) ([]SettlementRun, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of operator actions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
