package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

// SweepRepository keeps the history of scheduler test sweeps.
type SweepRepository struct {
	db *sql.DB
}

var _ ports.SweepHistoryStore = (*SweepRepository)(nil)

func NewSweepRepository(db *sql.DB) *SweepRepository {
	return &SweepRepository{db: db}
}

// AppendSweep inserts one sweep record, assigning an id when missing.
func (r *SweepRepository) AppendSweep(ctx context.Context, record domain.SweepRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	failed := record.FailedRegions
	if failed == nil {
		failed = []string{}
	}

	query, args, err := psql.Insert("test_sweep_history").
		Columns("id", "trigger", "started_at", "finished_at", "total", "success_count", "failed_regions").
		Values(record.ID, record.Trigger, record.StartedAt, record.FinishedAt, record.Total, record.SuccessCount, pq.StringArray(failed)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert sweep: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert sweep: %w", err)
	}
	return nil
}

// ListSweeps returns the most recent sweeps first.
func (r *SweepRepository) ListSweeps(ctx context.Context, limit int) ([]domain.SweepRecord, error) {
	builder := psql.Select("id", "trigger", "started_at", "finished_at", "total", "success_count", "failed_regions").
		From("test_sweep_history").
		OrderBy("finished_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sweeps: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()

	var records []domain.SweepRecord
	for rows.Next() {
		var (
			rec    domain.SweepRecord
			failed pq.StringArray
		)
		if err := rows.Scan(&rec.ID, &rec.Trigger, &rec.StartedAt, &rec.FinishedAt, &rec.Total, &rec.SuccessCount, &failed); err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		rec.FailedRegions = []string(failed)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

// BoostRepository reads promotional boosts.
type BoostRepository struct {
	db *sql.DB
}

var _ ports.BoostStore = (*BoostRepository)(nil)

func NewBoostRepository(db *sql.DB) *BoostRepository {
	return &BoostRepository{db: db}
}

// ActiveBoosts returns active boosts whose window contains now, highest
// priority first.
func (r *BoostRepository) ActiveBoosts(ctx context.Context, now time.Time) ([]domain.Boost, error) {
	query, args, err := psql.Select("id", "kind", "target", "priority", "start_at", "end_at", "active").
		From("promotion_boosts").
		Where(sq.Eq{"active": true}).
		Where(sq.LtOrEq{"start_at": now}).
		Where(sq.GtOrEq{"end_at": now}).
		OrderBy("priority DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build active boosts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query boosts: %w", err)
	}
	defer rows.Close()

	var boosts []domain.Boost
	for rows.Next() {
		var (
			b    domain.Boost
			kind string
		)
		if err := rows.Scan(&b.ID, &kind, &b.Target, &b.Priority, &b.StartAt, &b.EndAt, &b.Active); err != nil {
			return nil, fmt.Errorf("scan boost: %w", err)
		}
		b.Kind = domain.BoostKind(kind)
		boosts = append(boosts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return boosts, nil
}
