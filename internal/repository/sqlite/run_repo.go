package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/run"
)

var _ run.Repo = (*RunRepo)(nil)

type RunRepo struct{ db *DB }

func NewRunRepo(db *DB) *RunRepo { return &RunRepo{db: db} }

const (
	qRunLatest = `
SELECT id, website, state, range_start, range_end
FROM runs
WHERE website = ?
ORDER BY range_end DESC, id DESC
LIMIT 1;`

	qRunInsert = `
INSERT INTO runs (website, state, range_start, range_end)
VALUES (?, ?, ?, ?);`

	qRunUpdateEnd = `UPDATE runs SET range_end = ? WHERE id = ?;`

	qRunsAll = `
SELECT id, website, state, range_start, range_end
FROM runs
ORDER BY website, range_start;`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, r *run.Run) error {
	var state, start, end string
	if err := row.Scan(&r.ID, &r.Website, &state, &start, &end); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run.ErrNotFound
		}
		return fmt.Errorf("scan run: %w", err)
	}
	var err error
	if r.State, err = health.Parse(state); err != nil {
		return fmt.Errorf("run %d: %w", r.ID, err)
	}
	if r.RangeStart, err = parseTime(start); err != nil {
		return fmt.Errorf("run %d: %w", r.ID, err)
	}
	if r.RangeEnd, err = parseTime(end); err != nil {
		return fmt.Errorf("run %d: %w", r.ID, err)
	}
	return nil
}

// Lock is a no-op: transactions begin IMMEDIATE on the only connection.
func (r *RunRepo) Lock(context.Context, string) error { return nil }

func (r *RunRepo) Latest(ctx context.Context, website string) (*run.Run, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var out run.Run
	if err := scanRun(r.db.execQueryer(ctx).QueryRowContext(ctx, qRunLatest, website), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RunRepo) Insert(ctx context.Context, rr *run.Run) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	res, err := r.db.execQueryer(ctx).ExecContext(ctx, qRunInsert,
		rr.Website, rr.State.String(), formatTime(rr.RangeStart), formatTime(rr.RangeEnd))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if rr.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("insert run id: %w", err)
	}
	return nil
}

func (r *RunRepo) UpdateEnd(ctx context.Context, id int64, end time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	res, err := r.db.execQueryer(ctx).ExecContext(ctx, qRunUpdateEnd, formatTime(end), id)
	if err != nil {
		return fmt.Errorf("update run end: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return run.ErrNotFound
	}
	return nil
}

func (r *RunRepo) InsertBatch(ctx context.Context, runs []run.Run) error {
	if len(runs) == 0 {
		return nil
	}
	stmt, err := r.db.execQueryer(ctx).PrepareContext(ctx, qRunInsert)
	if err != nil {
		return fmt.Errorf("prepare insert run: %w", err)
	}
	defer stmt.Close()

	for _, rr := range runs {
		if _, err := stmt.ExecContext(ctx,
			rr.Website, rr.State.String(), formatTime(rr.RangeStart), formatTime(rr.RangeEnd),
		); err != nil {
			return fmt.Errorf("insert run for %s: %w", rr.Website, err)
		}
	}
	return nil
}

func (r *RunRepo) ListAll(ctx context.Context) ([]run.Run, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).QueryContext(ctx, qRunsAll)
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
