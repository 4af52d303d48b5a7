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

// OutcomeStore implements domain.OutcomeStore using PostgreSQL. It is the
// sole mutator of outcome rows.
type OutcomeStore struct {
	pool *pgxpool.Pool
}

// NewOutcomeStore creates a new OutcomeStore backed by the given pool.
func NewOutcomeStore(pool *pgxpool.Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

const outcomeSelectCols = `market_type, question_name, outcome_date,
	provisional_outcome, provisional_set_at, evidence_window_expires,
	final_outcome, final_set_at, is_disputed`

func scanOutcomeRow(row pgx.Row) (domain.OutcomeRecord, error) {
	var (
		rec         domain.OutcomeRecord
		marketType  string
		date        time.Time
		provisional *string
		final       *string
	)
	err := row.Scan(
		&marketType, &rec.QuestionName, &date,
		&provisional, &rec.ProvisionalSetAt, &rec.EvidenceWindowExpires,
		&final, &rec.FinalSetAt, &rec.Disputed,
	)
	if err != nil {
		return domain.OutcomeRecord{}, err
	}
	rec.MarketType = domain.MarketType(marketType)
	rec.OutcomeDate = scanDate(date)
	if provisional != nil {
		o := domain.Outcome(*provisional)
		rec.ProvisionalOutcome = &o
	}
	if final != nil {
		o := domain.Outcome(*final)
		rec.FinalOutcome = &o
	}
	return rec, nil
}

// SetProvisional creates or overwrites the provisional fields of the outcome
// row: re-setting a provisional outcome restarts the evidence window and
// clears the dispute flag. Final fields are left untouched.
func (s *OutcomeStore) SetProvisional(ctx context.Context, mt domain.MarketType, question string, date civil.Date, outcome domain.Outcome, setAt, windowExpires time.Time) (domain.OutcomeRecord, error) {
	query := `
		INSERT INTO outcomes (
			market_type, question_name, outcome_date,
			provisional_outcome, provisional_set_at, evidence_window_expires,
			is_disputed
		) VALUES ($1, $2, $3::date, $4, $5, $6, FALSE)
		ON CONFLICT (market_type, question_name, outcome_date)
		DO UPDATE SET provisional_outcome = EXCLUDED.provisional_outcome,
		              provisional_set_at = EXCLUDED.provisional_set_at,
		              evidence_window_expires = EXCLUDED.evidence_window_expires,
		              is_disputed = FALSE
		RETURNING ` + outcomeSelectCols

	rec, err := scanOutcomeRow(s.pool.QueryRow(ctx, query,
		string(mt), question, dateArg(date), string(outcome), setAt, windowExpires))
	if err != nil {
		return domain.OutcomeRecord{}, fmt.Errorf("postgres: set provisional outcome: %w", err)
	}
	return rec, nil
}

// SetFinal creates or overwrites the final fields of the outcome row. Setting
// a final outcome is valid from any state and supersedes any open dispute;
// the evidence window is implicitly closed because window activity is derived
// from the final outcome being unset.
func (s *OutcomeStore) SetFinal(ctx context.Context, mt domain.MarketType, question string, date civil.Date, outcome domain.Outcome, setAt time.Time) (domain.OutcomeRecord, error) {
	query := `
		INSERT INTO outcomes (
			market_type, question_name, outcome_date,
			final_outcome, final_set_at
		) VALUES ($1, $2, $3::date, $4, $5)
		ON CONFLICT (market_type, question_name, outcome_date)
		DO UPDATE SET final_outcome = EXCLUDED.final_outcome,
		              final_set_at = EXCLUDED.final_set_at
		RETURNING ` + outcomeSelectCols

	rec, err := scanOutcomeRow(s.pool.QueryRow(ctx, query,
		string(mt), question, dateArg(date), string(outcome), setAt))
	if err != nil {
		return domain.OutcomeRecord{}, fmt.Errorf("postgres: set final outcome: %w", err)
	}
	return rec, nil
}

// MarkDisputed flags the outcome row as disputed. The caller is responsible
// for checking that the evidence window is still active.
func (s *OutcomeStore) MarkDisputed(ctx context.Context, mt domain.MarketType, question string, date civil.Date) error {
	const query = `
		UPDATE outcomes SET is_disputed = TRUE
		WHERE market_type = $1 AND question_name = $2 AND outcome_date = $3::date`

	tag, err := s.pool.Exec(ctx, query, string(mt), question, dateArg(date))
	if err != nil {
		return fmt.Errorf("postgres: mark outcome disputed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get returns the outcome row for the key, or domain.ErrNotFound.
func (s *OutcomeStore) Get(ctx context.Context, mt domain.MarketType, question string, date civil.Date) (domain.OutcomeRecord, error) {
	query := `SELECT ` + outcomeSelectCols + `
		FROM outcomes
		WHERE market_type = $1 AND question_name = $2 AND outcome_date = $3::date`

	rec, err := scanOutcomeRow(s.pool.QueryRow(ctx, query,
		string(mt), question, dateArg(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OutcomeRecord{}, domain.ErrNotFound
		}
		return domain.OutcomeRecord{}, fmt.Errorf("postgres: get outcome: %w", err)
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.OutcomeStore = (*OutcomeStore)(nil)
