package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/run"
	"github.com/jackc/pgx/v5"
)

func scanRun(row pgx.Row, r *run.Run) error {
	var state string
	if err := row.Scan(&r.ID, &r.Website, &state, &r.RangeStart, &r.RangeEnd); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return run.ErrNotFound
		}
		return fmt.Errorf("scan run: %w", err)
	}
	h, err := health.Parse(state)
	if err != nil {
		return fmt.Errorf("run %d: %w", r.ID, err)
	}
	r.State = h
	r.RangeStart, r.RangeEnd = r.RangeStart.UTC(), r.RangeEnd.UTC()
	return nil
}

func utc(t time.Time) time.Time { return t.UTC() }
