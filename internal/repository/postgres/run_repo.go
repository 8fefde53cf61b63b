package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/run"
	"github.com/jackc/pgx/v5"
)

var _ run.Repo = (*RunRepoImpl)(nil)

type RunRepoImpl struct{ db *DB }

func NewRunRepo(db *DB) *RunRepoImpl { return &RunRepoImpl{db: db} }

const (
	qRunLock = `SELECT pg_advisory_xact_lock(hashtext($1));`

	qRunLatest = `
SELECT id, website, state, range_start, range_end
FROM runs
WHERE website = $1
ORDER BY range_end DESC, id DESC
LIMIT 1;
`
	qRunInsert = `
INSERT INTO runs (website, state, range_start, range_end)
VALUES ($1, $2, $3, $4)
RETURNING id;
`
	qRunUpdateEnd = `UPDATE runs SET range_end = $2 WHERE id = $1;`

	qRunsAll = `
SELECT id, website, state, range_start, range_end
FROM runs
ORDER BY website, range_start;
`
)

var runColumns = []string{"website", "state", "range_start", "range_end"}

func (r *RunRepoImpl) Lock(ctx context.Context, website string) error {
	if _, err := extractTx(ctx); err != nil {
		return fmt.Errorf("advisory lock for %s: %w", website, err)
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if _, err := eq.Exec(ctx, qRunLock, website); err != nil {
		return fmt.Errorf("advisory lock for %s: %w", website, err)
	}
	return nil
}

func (r *RunRepoImpl) Latest(ctx context.Context, website string) (*run.Run, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var out run.Run
	if err := scanRun(r.db.execQueryer(ctx).QueryRow(ctx, qRunLatest, website), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RunRepoImpl) Insert(ctx context.Context, rr *run.Run) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qRunInsert,
		rr.Website, rr.State.String(), utc(rr.RangeStart), utc(rr.RangeEnd),
	).Scan(&rr.ID); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepoImpl) UpdateEnd(ctx context.Context, id int64, end time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qRunUpdateEnd, id, utc(end))
	if err != nil {
		return fmt.Errorf("update run end: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return run.ErrNotFound
	}
	return nil
}

// InsertBatch streams runs with COPY. Generated ids are not read back.
func (r *RunRepoImpl) InsertBatch(ctx context.Context, runs []run.Run) error {
	if len(runs) == 0 {
		return nil
	}
	src := pgx.CopyFromSlice(len(runs), func(i int) ([]any, error) {
		rr := runs[i]
		return []any{rr.Website, rr.State.String(), utc(rr.RangeStart), utc(rr.RangeEnd)}, nil
	})
	n, err := r.db.execQueryer(ctx).CopyFrom(ctx, pgx.Identifier{"runs"}, runColumns, src)
	if err != nil {
		return fmt.Errorf("copy runs: %w", err)
	}
	if int(n) != len(runs) {
		return fmt.Errorf("copy runs: wrote %d of %d", n, len(runs))
	}
	return nil
}

func (r *RunRepoImpl) ListAll(ctx context.Context) ([]run.Run, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qRunsAll)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []run.Run
	for rows.Next() {
		var rr run.Run
		if err := scanRun(rows, &rr); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
