package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// SettlementRunStore implements domain.SettlementRunStore using PostgreSQL.
type SettlementRunStore struct {
	pool *pgxpool.Pool
}

// NewSettlementRunStore creates a new SettlementRunStore backed by the given pool.
func NewSettlementRunStore(pool *pgxpool.Pool) *SettlementRunStore {
	return &SettlementRunStore{pool: pool}
}

const runSelectCols = `market_type, question_name, target_date, run_id, outcome,
	last_step, eliminated, total_participants, correct_predictors,
	started_at, completed_at`

func scanRunRow(row pgx.Row) (domain.SettlementRun, error) {
	var (
		run        domain.SettlementRun
		marketType string
		date       time.Time
		outcome    string
		lastStep   string
	)
	err := row.Scan(
		&marketType, &run.QuestionName, &date, &run.RunID, &outcome,
		&lastStep, &run.Eliminated, &run.TotalParticipants, &run.CorrectPredictors,
		&run.StartedAt, &run.CompletedAt,
	)
	if err != nil {
		return domain.SettlementRun{}, err
	}
	run.MarketType = domain.MarketType(marketType)
	run.TargetDate = scanDate(date)
	run.Outcome = domain.Outcome(outcome)
	run.LastStep = domain.SettleStep(lastStep)
	return run, nil
}

// Get returns the run record for the key, or domain.ErrNotFound.
func (s *SettlementRunStore) Get(ctx context.Context, mt domain.MarketType, question string, date civil.Date) (domain.SettlementRun, error) {
	query := `SELECT ` + runSelectCols + `
		FROM settlement_runs
		WHERE market_type = $1 AND question_name = $2 AND target_date = $3::date`

	run, err := scanRunRow(s.pool.QueryRow(ctx, query,
		string(mt), question, dateArg(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SettlementRun{}, domain.ErrNotFound
		}
		return domain.SettlementRun{}, fmt.Errorf("postgres: get settlement run: %w", err)
	}
	return run, nil
}

// Upsert writes the run record, overwriting step progress and counts for the
// same (market, question, date) key.
func (s *SettlementRunStore) Upsert(ctx context.Context, run domain.SettlementRun) error {
	const query = `
		INSERT INTO settlement_runs (
			market_type, question_name, target_date, run_id, outcome,
			last_step, eliminated, total_participants, correct_predictors,
			started_at, completed_at
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (market_type, question_name, target_date)
		DO UPDATE SET run_id = EXCLUDED.run_id,
		              outcome = EXCLUDED.outcome,
		              last_step = EXCLUDED.last_step,
		              eliminated = EXCLUDED.eliminated,
		              total_participants = EXCLUDED.total_participants,
		              correct_predictors = EXCLUDED.correct_predictors,
		              started_at = EXCLUDED.started_at,
		              completed_at = EXCLUDED.completed_at`

	_, err := s.pool.Exec(ctx, query,
		string(run.MarketType), run.QuestionName, dateArg(run.TargetDate),
		run.RunID, string(run.Outcome), string(run.LastStep),
		run.Eliminated, run.TotalParticipants, run.CorrectPredictors,
		run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert settlement run: %w", err)
	}
	return nil
}

// ListRecent returns the most recent runs, newest first.
func (s *SettlementRunStore) ListRecent(ctx context.Context, limit int) ([]domain.SettlementRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runSelectCols + `
		FROM settlement_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlement runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SettlementRun
	for rows.Next() {
		run, err := scanRunRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan settlement run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Compile-time interface check.
var _ domain.SettlementRunStore = (*SettlementRunStore)(nil)
