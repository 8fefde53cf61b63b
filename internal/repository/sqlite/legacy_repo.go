package sqlite

import (
	"context"
	"fmt"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/legacy"
)

var _ legacy.Repo = (*LegacyRepo)(nil)

type LegacyRepo struct{ db *DB }

func NewLegacyRepo(db *DB) *LegacyRepo { return &LegacyRepo{db: db} }

const (
	qLegacyExists = `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'checks';`

	qLegacyAll = `
SELECT id, request_time, website, result
FROM checks
ORDER BY id;`

	qLegacyDrop = `DROP TABLE checks;`
	qVacuum     = `VACUUM;`
)

func (r *LegacyRepo) Exists(ctx context.Context) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var n int
	if err := r.db.execQueryer(ctx).QueryRowContext(ctx, qLegacyExists).Scan(&n); err != nil {
		return false, fmt.Errorf("detect checks table: %w", err)
	}
	return n > 0, nil
}

// ListAll returns checks in insertion order; callers sort by time.
func (r *LegacyRepo) ListAll(ctx context.Context) ([]legacy.Check, error) {
	rows, err := r.db.execQueryer(ctx).QueryContext(ctx, qLegacyAll)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var out []legacy.Check
	for rows.Next() {
		var (
			c                  legacy.Check
			requestTime, state string
		)
		if err := rows.Scan(&c.ID, &requestTime, &c.Website, &state); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		if c.Time, err = parseTime(requestTime); err != nil {
			return nil, fmt.Errorf("check %d: %w", c.ID, err)
		}
		if c.State, err = health.Parse(state); err != nil {
			return nil, fmt.Errorf("check %d: %w", c.ID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *LegacyRepo) Drop(ctx context.Context) error {
	if _, err := r.db.execQueryer(ctx).ExecContext(ctx, qLegacyDrop); err != nil {
		return fmt.Errorf("drop checks: %w", err)
	}
	return nil
}

// Reclaim must run outside a transaction.
func (r *LegacyRepo) Reclaim(ctx context.Context) error {
	if _, err := r.db.SQL.ExecContext(ctx, qVacuum); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
