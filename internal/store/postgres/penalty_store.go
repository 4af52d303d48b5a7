package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// PenaltyStore implements domain.PenaltyStore using PostgreSQL.
type PenaltyStore struct {
	pool *pgxpool.Pool
}

// NewPenaltyStore creates a new PenaltyStore backed by the given pool.
func NewPenaltyStore(pool *pgxpool.Pool) *PenaltyStore {
	return &PenaltyStore{pool: pool}
}

// Insert records a penalty for the wallet on the given date. A duplicate
// (market, wallet, date) is silently skipped via ON CONFLICT DO NOTHING and
// reported as inserted=false; the settlement executor relies on this to stay
// idempotent across retries.
func (s *PenaltyStore) Insert(ctx context.Context, mt domain.MarketType, wallet string, date civil.Date) (bool, error) {
	const query = `
		INSERT INTO penalties (market_type, wallet, wrong_prediction_date)
		VALUES ($1, $2, $3::date)
		ON CONFLICT (market_type, wallet, wrong_prediction_date) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, string(mt), wallet, dateArg(date))
	if err != nil {
		return false, fmt.Errorf("postgres: insert penalty for %s: %w", wallet, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListWallets returns the distinct wallets holding any penalty in the market
// partition.
func (s *PenaltyStore) ListWallets(ctx context.Context, mt domain.MarketType) ([]string, error) {
	const query = `
		SELECT DISTINCT wallet FROM penalties
		WHERE market_type = $1
		ORDER BY wallet`

	rows, err := s.pool.Query(ctx, query, string(mt))
	if err != nil {
		return nil, fmt.Errorf("postgres: list penalized wallets: %w", err)
	}
	defer rows.Close()

	var wallets []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("postgres: scan penalized wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// ListByWallet returns all of the wallet's penalty rows in the market
// partition, oldest first.
func (s *PenaltyStore) ListByWallet(ctx context.Context, mt domain.MarketType, wallet string) ([]domain.Penalty, error) {
	const query = `
		SELECT market_type, wallet, wrong_prediction_date, created_at
		FROM penalties
		WHERE market_type = $1 AND wallet = $2
		ORDER BY wrong_prediction_date`

	rows, err := s.pool.Query(ctx, query, string(mt), wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list penalties for %s: %w", wallet, err)
	}
	defer rows.Close()

	var penalties []domain.Penalty
	for rows.Next() {
		var (
			p          domain.Penalty
			marketType string
			date       time.Time
		)
		if err := rows.Scan(&marketType, &p.Wallet, &date, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan penalty: %w", err)
		}
		p.MarketType = domain.MarketType(marketType)
		p.WrongPredictionDate = scanDate(date)
		penalties = append(penalties, p)
	}
	return penalties, rows.Err()
}

// CountForDate returns the number of penalty rows recorded for the date.
func (s *PenaltyStore) CountForDate(ctx context.Context, mt domain.MarketType, date civil.Date) (int64, error) {
	const query = `
		SELECT COUNT(*) FROM penalties
		WHERE market_type = $1 AND wrong_prediction_date = $2::date`

	var count int64
	if err := s.pool.QueryRow(ctx, query, string(mt), dateArg(date)).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count penalties for date: %w", err)
	}
	return count, nil
}

// DeleteByWallet clears every penalty row the wallet holds in the market
// partition, all dates. Re-entry clears standing, not just the latest miss.
func (s *PenaltyStore) DeleteByWallet(ctx context.Context, mt domain.MarketType, wallet string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM penalties WHERE market_type = $1 AND wallet = $2`,
		string(mt), wallet)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete penalties for %s: %w", wallet, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByMarket wipes the market partition's penalty set. Administrative
// reset only.
func (s *PenaltyStore) DeleteByMarket(ctx context.Context, mt domain.MarketType) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM penalties WHERE market_type = $1`, string(mt))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete penalties for market %s: %w", mt, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.PenaltyStore = (*PenaltyStore)(nil)
