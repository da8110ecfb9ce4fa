package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

const defaultRunLogLimit = 50

var runLogColumns = []string{"id", "region", "status", "started_at", "ended_at", "articles_count", "log_message", "metadata"}

// RunLogRepository persists run logs into Postgres.
type RunLogRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.RunLogStore = (*RunLogRepository)(nil)

// NewRunLogRepository wires a sql.DB implementation.
func NewRunLogRepository(db *sql.DB) *RunLogRepository {
	return &RunLogRepository{db: db, now: time.Now}
}

// CreateRunLog inserts a running row and returns its id.
func (r *RunLogRepository) CreateRunLog(ctx context.Context, log domain.RunLog) (string, error) {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = r.now()
	}
	meta, err := json.Marshal(log.Metadata)
	if err != nil {
		return "", fmt.Errorf("encode run metadata: %w", err)
	}

	query, args, err := psql.Insert("run_logs").
		Columns("id", "region", "status", "started_at", "articles_count", "log_message", "metadata").
		Values(log.ID, log.Region, domain.RunRunning, log.StartedAt, 0, log.LogMessage, meta).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert run log: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert run log: %w", err)
	}
	return log.ID, nil
}

// FinishRunLog applies the terminal transition. Rows that already left the
// running state are not touched again.
func (r *RunLogRepository) FinishRunLog(ctx context.Context, id string, completion domain.RunCompletion) error {
	c := completion.Normalize()
	if c.EndedAt.IsZero() {
		c.EndedAt = r.now()
	}
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("encode run metadata: %w", err)
	}

	query, args, err := psql.Update("run_logs").
		Set("status", c.Status).
		Set("ended_at", c.EndedAt).
		Set("articles_count", c.ArticlesCount).
		Set("log_message", c.LogMessage).
		Set("metadata", meta).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": domain.RunRunning}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build finish run log: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("finish run log %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run log %s: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.GetRunLog(ctx, id); err != nil {
		return err
	}
	return nil
}

// GetRunLog loads one run log by id.
func (r *RunLogRepository) GetRunLog(ctx context.Context, id string) (domain.RunLog, error) {
	query, args, err := psql.Select(runLogColumns...).From("run_logs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.RunLog{}, fmt.Errorf("build get run log: %w", err)
	}

	log, err := scanRunLog(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunLog{}, fmt.Errorf("run log %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.RunLog{}, fmt.Errorf("get run log %s: %w", id, err)
	}
	return log, nil
}

// ListRunLogs returns the newest run logs matching filter.
func (r *RunLogRepository) ListRunLogs(ctx context.Context, filter domain.RunLogFilter) ([]domain.RunLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLogLimit
	}

	builder := psql.Select(runLogColumns...).From("run_logs")
	if filter.Region != "" {
		builder = builder.Where(sq.Eq{"region": filter.Region})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if !filter.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"started_at": filter.Since})
	}
	query, args, err := builder.OrderBy("started_at DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list run logs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.RunLog
	for rows.Next() {
		log, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return logs, nil
}

// ResetStaleRunLogs forces running rows started before olderThan to failed.
func (r *RunLogRepository) ResetStaleRunLogs(ctx context.Context, olderThan time.Time, message string) (int64, error) {
	query, args, err := psql.Update("run_logs").
		Set("status", domain.RunFailed).
		Set("ended_at", r.now()).
		Set("articles_count", 0).
		Set("log_message", message).
		Where(sq.Eq{"status": domain.RunRunning}).
		Where(sq.Lt{"started_at": olderThan}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reset run logs: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset stale run logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stale run logs: %w", err)
	}
	return n, nil
}

func scanRunLog(row rowScanner) (domain.RunLog, error) {
	var (
		log    domain.RunLog
		status string
		ended  sql.NullTime
		meta   []byte
	)
	if err := row.Scan(&log.ID, &log.Region, &status, &log.StartedAt, &ended, &log.ArticlesCount, &log.LogMessage, &meta); err != nil {
		return domain.RunLog{}, err
	}
	log.Status = domain.RunStatus(status)
	if ended.Valid {
		t := ended.Time
		log.EndedAt = &t
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &log.Metadata); err != nil {
			return domain.RunLog{}, fmt.Errorf("decode run metadata: %w", err)
		}
	}
	return log, nil
}
