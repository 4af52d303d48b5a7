package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// PotStore implements domain.PotStore using PostgreSQL.
type PotStore struct {
	pool *pgxpool.Pool
}

// NewPotStore creates a new PotStore backed by the given pool.
func NewPotStore(pool *pgxpool.Pool) *PotStore {
	return &PotStore{pool: pool}
}

// Get returns the pot row for the contract, or domain.ErrNotFound.
func (s *PotStore) Get(ctx context.Context, contract string) (domain.PotInfo, error) {
	const query = `
		SELECT contract, has_started, is_final_day, started_on, last_day, announcement_sent
		FROM pot_information
		WHERE contract = $1`

	var (
		info      domain.PotInfo
		startedOn *time.Time
		lastDay   *time.Time
	)
	err := s.pool.QueryRow(ctx, query, contract).Scan(
		&info.Contract, &info.HasStarted, &info.IsFinalDay,
		&startedOn, &lastDay, &info.AnnouncementSent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PotInfo{}, domain.ErrNotFound
		}
		return domain.PotInfo{}, fmt.Errorf("postgres: get pot info for %s: %w", contract, err)
	}
	if startedOn != nil {
		d := scanDate(*startedOn)
		info.StartedOn = &d
	}
	if lastDay != nil {
		d := scanDate(*lastDay)
		info.LastDay = &d
	}
	return info, nil
}

// Upsert writes the pot row. HasStarted is monotonic: an update can set it
// true but never takes it back to false.
func (s *PotStore) Upsert(ctx context.Context, info domain.PotInfo) error {
	var startedOn, lastDay *time.Time
	if info.StartedOn != nil {
		t := dateArg(*info.StartedOn)
		startedOn = &t
	}
	if info.LastDay != nil {
		t := dateArg(*info.LastDay)
		lastDay = &t
	}

	const query = `
		INSERT INTO pot_information (
			contract, has_started, is_final_day, started_on, last_day, announcement_sent
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contract)
		DO UPDATE SET has_started = pot_information.has_started OR EXCLUDED.has_started,
		              is_final_day = EXCLUDED.is_final_day,
		              started_on = EXCLUDED.started_on,
		              last_day = EXCLUDED.last_day,
		              announcement_sent = EXCLUDED.announcement_sent`

	_, err := s.pool.Exec(ctx, query,
		info.Contract, info.HasStarted, info.IsFinalDay,
		startedOn, lastDay, info.AnnouncementSent,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert pot info for %s: %w", info.Contract, err)
	}
	return nil
}

// MarkAnnouncementSent flips the announcement flag so the winner announcement
// is only ever sent once.
func (s *PotStore) MarkAnnouncementSent(ctx context.Context, contract string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pot_information SET announcement_sent = TRUE WHERE contract = $1`,
		contract)
	if err != nil {
		return fmt.Errorf("postgres: mark announcement sent for %s: %w", contract, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the pot row. Administrative contract reset only.
func (s *PotStore) Delete(ctx context.Context, contract string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM pot_information WHERE contract = $1`, contract)
	if err != nil {
		return fmt.Errorf("postgres: delete pot info for %s: %w", contract, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PotStore = (*PotStore)(nil)
