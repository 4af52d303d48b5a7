package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// PredictionStore implements domain.PredictionStore using PostgreSQL.
type PredictionStore struct {
	pool *pgxpool.Pool
}

// NewPredictionStore creates a new PredictionStore backed by the given pool.
func NewPredictionStore(pool *pgxpool.Pool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

const predictionSelectCols = `market_type, wallet, question_name, side, contract,
	prediction_date, created_at`

func scanPredictionRows(rows pgx.Rows) ([]domain.Prediction, error) {
	var preds []domain.Prediction
	for rows.Next() {
		var (
			p          domain.Prediction
			marketType string
			side       string
			date       time.Time
		)
		if err := rows.Scan(
			&marketType, &p.Wallet, &p.QuestionName, &side,
			&p.Contract, &date, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		p.MarketType = domain.MarketType(marketType)
		p.Side = domain.Outcome(side)
		p.PredictionDate = scanDate(date)
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// Upsert writes a prediction row. A later submission for the same
// (market, wallet, question, date) overwrites the earlier one, last write
// wins by created_at.
func (s *PredictionStore) Upsert(ctx context.Context, p domain.Prediction) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO predictions (
			market_type, wallet, question_name, side, contract,
			prediction_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (market_type, wallet, question_name, prediction_date)
		DO UPDATE SET side = EXCLUDED.side,
		              contract = EXCLUDED.contract,
		              created_at = EXCLUDED.created_at`

	_, err := s.pool.Exec(ctx, query,
		string(p.MarketType), p.Wallet, p.QuestionName, string(p.Side),
		p.Contract, dateArg(p.PredictionDate), createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert prediction for %s: %w", p.Wallet, err)
	}
	return nil
}

// ListForDate returns every prediction row for the question and date in the
// market partition.
func (s *PredictionStore) ListForDate(ctx context.Context, mt domain.MarketType, question string, date civil.Date) ([]domain.Prediction, error) {
	query := `SELECT ` + predictionSelectCols + `
		FROM predictions
		WHERE market_type = $1 AND question_name = $2 AND prediction_date = $3::date
		ORDER BY wallet`

	rows, err := s.pool.Query(ctx, query, string(mt), question, dateArg(date))
	if err != nil {
		return nil, fmt.Errorf("postgres: list predictions for date: %w", err)
	}
	defer rows.Close()

	preds, err := scanPredictionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan predictions for date: %w", err)
	}
	return preds, nil
}

// ListRemaining returns every surviving prediction row in the market
// partition. After a final-day settlement these are the correct predictors
// consumed by winner resolution.
func (s *PredictionStore) ListRemaining(ctx context.Context, mt domain.MarketType) ([]domain.Prediction, error) {
	query := `SELECT ` + predictionSelectCols + `
		FROM predictions
		WHERE market_type = $1
		ORDER BY prediction_date, wallet`

	rows, err := s.pool.Query(ctx, query, string(mt))
	if err != nil {
		return nil, fmt.Errorf("postgres: list remaining predictions: %w", err)
	}
	defer rows.Close()

	preds, err := scanPredictionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan remaining predictions: %w", err)
	}
	return preds, nil
}

// DeleteForWallet removes the wallet's prediction row for the question and
// date. Deleting an absent row is not an error, which keeps settlement
// retries idempotent.
func (s *PredictionStore) DeleteForWallet(ctx context.Context, mt domain.MarketType, wallet, question string, date civil.Date) error {
	const query = `
		DELETE FROM predictions
		WHERE market_type = $1 AND wallet = $2 AND question_name = $3
		  AND prediction_date = $4::date`

	_, err := s.pool.Exec(ctx, query, string(mt), wallet, question, dateArg(date))
	if err != nil {
		return fmt.Errorf("postgres: delete prediction for %s: %w", wallet, err)
	}
	return nil
}

// DeleteForDate removes all remaining prediction rows for the question and
// date, returning the number deleted.
func (s *PredictionStore) DeleteForDate(ctx context.Context, mt domain.MarketType, question string, date civil.Date) (int64, error) {
	const query = `
		DELETE FROM predictions
		WHERE market_type = $1 AND question_name = $2 AND prediction_date = $3::date`

	tag, err := s.pool.Exec(ctx, query, string(mt), question, dateArg(date))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete predictions for date: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByMarket wipes the entire market partition. Administrative reset only.
func (s *PredictionStore) DeleteByMarket(ctx context.Context, mt domain.MarketType) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM predictions WHERE market_type = $1`, string(mt))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete predictions for market %s: %w", mt, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.PredictionStore = (*PredictionStore)(nil)
