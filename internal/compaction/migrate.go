package compaction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/legacy"
	"github.com/NordCoder/Uptime/internal/domain/run"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ErrMigration = errors.New("legacy check migration failed")

// Replay compacts checks with the same rule as RunStore.Append, entirely in
// memory. open maps a website to the index of its open run in out, so each
// check is handled in constant time. Checks that Append would reject are
// skipped and counted.
func Replay(checks []legacy.Check, interval time.Duration, policy MergePolicy) ([]run.Run, int, error) {
	threshold, err := Threshold(interval)
	if err != nil {
		return nil, 0, err
	}

	sorted := make([]legacy.Check, len(checks))
	copy(sorted, checks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var (
		out     []run.Run
		skipped int
	)
	open := make(map[string]int)
	for _, c := range sorted {
		if !c.State.Valid() {
			return nil, 0, fmt.Errorf("check %d for %s: invalid state %d", c.ID, c.Website, uint8(c.State))
		}
		var cur *run.Run
		if i, ok := open[c.Website]; ok {
			cur = &out[i]
		}
		switch policy.decide(cur, c.Observation, threshold) {
		case extendRun:
			cur.RangeEnd = c.Time
		case openRun:
			out = append(out, run.Open(c.Website, c.Observation))
			open[c.Website] = len(out) - 1
		case rejectObservation:
			// Append answers these with ErrOutOfOrder.
			skipped++
		}
	}
	return out, skipped, nil
}

// MigrationJob converts the legacy flat check log into runs once. It is safe
// to run on every startup: without a legacy log it does nothing.
type MigrationJob struct {
	Log      *zap.Logger
	Legacy   legacy.Repo
	Runs     run.Repo
	Tx       run.Transactor
	Interval time.Duration
	Policy   MergePolicy
}

func (j *MigrationJob) Run(ctx context.Context) error {
	tr := otel.Tracer("compaction.migrate")
	ctx, span := tr.Start(ctx, "legacy.migrate")
	defer span.End()

	exists, err := j.Legacy.Exists(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: detect legacy log: %w", ErrMigration, err)
	}
	if !exists {
		j.Log.Debug("no legacy checks to migrate")
		return nil
	}

	start := time.Now()
	checks, err := j.Legacy.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: load legacy checks: %w", ErrMigration, err)
	}

	runs, skipped, err := Replay(checks, j.Interval, j.Policy)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: replay: %w", ErrMigration, err)
	}
	span.SetAttributes(attribute.Int("legacy.checks", len(checks)), attribute.Int("runs", len(runs)))

	if err := j.Tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := j.Runs.InsertBatch(txCtx, runs); err != nil {
			return fmt.Errorf("insert runs: %w", err)
		}
		if err := j.Legacy.Drop(txCtx); err != nil {
			return fmt.Errorf("drop legacy checks: %w", err)
		}
		return nil
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	if err := j.Legacy.Reclaim(ctx); err != nil {
		j.Log.Warn("reclaim space after migration", zap.Error(err))
	}

	j.Log.Info("migrated legacy checks",
		zap.Int("checks", len(checks)),
		zap.Int("runs", len(runs)),
		zap.Int("skipped", skipped),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
