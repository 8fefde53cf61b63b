package compaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/run"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type AppendResult struct {
	Run    run.Run
	Opened bool
}

// RunStore owns the compacted history. Every write goes through Append.
type RunStore struct {
	Runs   run.Repo
	Tx     run.Transactor
	Policy MergePolicy
}

func NewRunStore(runs run.Repo, tx run.Transactor, policy MergePolicy) *RunStore {
	if policy == "" {
		policy = PolicyReference
	}
	return &RunStore{Runs: runs, Tx: tx, Policy: policy}
}

// Append records o for website: it either moves the end of the website's
// latest run to o.Time or inserts a new single-point run. Exactly one row is
// written. Observations older than the latest run's end, or that would open
// a run touching it, are rejected with ErrOutOfOrder.
func (s *RunStore) Append(ctx context.Context, website string, o health.Observation, interval time.Duration) (AppendResult, error) {
	threshold, err := Threshold(interval)
	if err != nil {
		return AppendResult{}, err
	}
	if !o.State.Valid() {
		return AppendResult{}, fmt.Errorf("append %s: invalid state %d", website, uint8(o.State))
	}

	tr := otel.Tracer("compaction.store")
	ctx, span := tr.Start(ctx, "runstore.append",
		trace.WithAttributes(
			attribute.String("website", website),
			attribute.String("state", o.State.String()),
		),
	)
	defer span.End()

	var res AppendResult
	err = s.Tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.Runs.Lock(txCtx, website); err != nil {
			return fmt.Errorf("lock %s: %w", website, err)
		}

		latest, err := s.Runs.Latest(txCtx, website)
		switch {
		case errors.Is(err, run.ErrNotFound):
			latest = nil
		case err != nil:
			return fmt.Errorf("latest run: %w", err)
		}

		switch s.Policy.decide(latest, o, threshold) {
		case rejectObservation:
			reason := "older than"
			if o.Time.Equal(latest.RangeEnd) {
				reason = "state change at the same instant as"
			}
			return fmt.Errorf("%w: %s %s at %s is %s the run end %s",
				ErrOutOfOrder, website, o.State, o.Time, reason, latest.RangeEnd)
		case extendRun:
			if err := s.Runs.UpdateEnd(txCtx, latest.ID, o.Time); err != nil {
				return fmt.Errorf("extend run %d: %w", latest.ID, err)
			}
			latest.RangeEnd = o.Time
			res = AppendResult{Run: *latest}
			return nil
		}

		r := run.Open(website, o)
		if err := s.Runs.Insert(txCtx, &r); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		res = AppendResult{Run: r, Opened: true}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return AppendResult{}, err
	}
	span.SetAttributes(attribute.Bool("run.opened", res.Opened), attribute.Int64("run.id", res.Run.ID))
	return res, nil
}
