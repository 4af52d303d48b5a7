package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL. The
// participation_events table is append-only: rows are never updated, and the
// only delete path is the administrative contract reset.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Append records a new participation event. A zero EventAt defaults to the
// database clock.
func (s *LedgerStore) Append(ctx context.Context, ev domain.ParticipationEvent) error {
	eventAt := ev.EventAt
	if eventAt.IsZero() {
		eventAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO participation_events (wallet, contract, event_type, event_at)
		VALUES ($1, $2, $3, $4)`
	_, err := s.pool.Exec(ctx, query, ev.Wallet, ev.Contract, string(ev.EventType), eventAt)
	if err != nil {
		return fmt.Errorf("postgres: append participation event: %w", err)
	}
	return nil
}

// EligibleWallets projects pot membership as of targetDate: among all events
// whose UTC calendar date is on or before the target, the latest event per
// wallet wins, and wallets whose latest event is entry or re-entry are
// returned. Same-day entries count.
func (s *LedgerStore) EligibleWallets(ctx context.Context, contract string, targetDate civil.Date) ([]string, error) {
	const query = `
		SELECT wallet FROM (
			SELECT DISTINCT ON (wallet) wallet, event_type
			FROM participation_events
			WHERE contract = $1
			  AND (event_at AT TIME ZONE 'UTC')::date <= $2::date
			ORDER BY wallet, event_at DESC, id DESC
		) latest
		WHERE event_type IN ('entry', 're-entry')
		ORDER BY wallet`

	rows, err := s.pool.Query(ctx, query, contract, dateArg(targetDate))
	if err != nil {
		return nil, fmt.Errorf("postgres: eligible wallets for %s: %w", contract, err)
	}
	defer rows.Close()

	var wallets []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("postgres: scan eligible wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: eligible wallets rows: %w", err)
	}
	return wallets, nil
}

// HasRecentEntry reports whether the wallet has an entry or re-entry event at
// or after the given instant. Used by the grace period policy.
func (s *LedgerStore) HasRecentEntry(ctx context.Context, wallet, contract string, since time.Time) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM participation_events
			WHERE contract = $1 AND wallet = $2
			  AND event_type IN ('entry', 're-entry')
			  AND event_at >= $3
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, contract, wallet, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: has recent entry for %s: %w", wallet, err)
	}
	return exists, nil
}

// ListByContract returns the contract's event history, newest first.
func (s *LedgerStore) ListByContract(ctx context.Context, contract string, opts domain.ListOpts) ([]domain.ParticipationEvent, error) {
	query := `
		SELECT id, wallet, contract, event_type, event_at
		FROM participation_events
		WHERE contract = $1
		ORDER BY event_at DESC, id DESC`
	args := []any{contract}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events for %s: %w", contract, err)
	}
	defer rows.Close()

	var events []domain.ParticipationEvent
	for rows.Next() {
		var (
			ev        domain.ParticipationEvent
			eventType string
		)
		if err := rows.Scan(&ev.ID, &ev.Wallet, &ev.Contract, &eventType, &ev.EventAt); err != nil {
			return nil, fmt.Errorf("postgres: scan participation event: %w", err)
		}
		ev.EventType = domain.EventType(eventType)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteByContract wipes the contract's entire event history. This is the
// administrative reset path only; normal settlement never deletes events.
func (s *LedgerStore) DeleteByContract(ctx context.Context, contract string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM participation_events WHERE contract = $1`, contract)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete events for %s: %w", contract, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.LedgerStore = (*LedgerStore)(nil)
