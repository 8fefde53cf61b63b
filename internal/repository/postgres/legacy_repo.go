package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/legacy"
)

var _ legacy.Repo = (*LegacyRepoImpl)(nil)

// LegacyRepoImpl reads the flat checks table written by versions that stored
// every probe as its own row.
type LegacyRepoImpl struct{ db *DB }

func NewLegacyRepo(db *DB) *LegacyRepoImpl { return &LegacyRepoImpl{db: db} }

const (
	qLegacyExists = `SELECT to_regclass('public.checks') IS NOT NULL;`

	qLegacyAll = `
SELECT id, request_time, website, result
FROM checks
ORDER BY request_time, id;
`
	qLegacyDrop = `DROP TABLE checks;`
	qVacuum     = `VACUUM;`
)

func (r *LegacyRepoImpl) Exists(ctx context.Context) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var ok bool
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qLegacyExists).Scan(&ok); err != nil {
		return false, fmt.Errorf("detect checks table: %w", err)
	}
	return ok, nil
}

// ListAll is not bounded by the query timeout: the legacy log may be large.
func (r *LegacyRepoImpl) ListAll(ctx context.Context) ([]legacy.Check, error) {
	rows, err := r.db.execQueryer(ctx).Query(ctx, qLegacyAll)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var out []legacy.Check
	for rows.Next() {
		var (
			c      legacy.Check
			result string
		)
		if err := rows.Scan(&c.ID, &c.Time, &c.Website, &result); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		if c.State, err = health.Parse(result); err != nil {
			return nil, fmt.Errorf("check %d: %w", c.ID, err)
		}
		c.Time = c.Time.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *LegacyRepoImpl) Drop(ctx context.Context) error {
	if _, err := r.db.execQueryer(ctx).Exec(ctx, qLegacyDrop); err != nil {
		return fmt.Errorf("drop checks: %w", err)
	}
	return nil
}

// Reclaim must run outside a transaction; it always uses the pool.
func (r *LegacyRepoImpl) Reclaim(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, qVacuum); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
