package prober

import (
	"context"
	"errors"
	"time"

	"github.com/NordCoder/Uptime/internal/compaction"
	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/kafka"
	"github.com/NordCoder/Uptime/internal/domain/website"
	"github.com/NordCoder/Uptime/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	mProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptime_probes_total", Help: "Probes by website and resulting state",
	}, []string{"website", "state"})
	mLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uptime_probe_latency_seconds",
		Help:    "HTTP probe latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"website"})
	mAppends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptime_appends_total", Help: "Observations appended, by outcome (extended, opened)",
	}, []string{"outcome"})
	mErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptime_probe_errors_total", Help: "Errors in the probe loop by kind",
	}, []string{"kind"})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "uptime_tick_duration_seconds", Help: "Probe tick duration",
		Buckets: prometheus.DefBuckets,
	})
)

// Appender records one observation into the compacted history.
type Appender interface {
	Append(ctx context.Context, website string, o health.Observation, interval time.Duration) (compaction.AppendResult, error)
}

type Runner struct {
	Log      *zap.Logger
	Store    Appender
	Pinger   Pinger
	Websites []website.Website
	Interval time.Duration

	// Events is optional. It is called from the tick, so it must not block:
	// wrap slow exporters in an EventQueue.
	Events kafka.RunEvents

	// Parallel probes websites concurrently, at most MaxParallel at a time.
	Parallel    bool
	MaxParallel int

	Now func() time.Time
}

// Run probes every website once per Interval until ctx is done. The first
// tick fires immediately. A tick that overruns makes the ticker drop the
// ticks it missed, so ticks never overlap. Run only ever returns an error,
// ctx.Err() on shutdown.
func (r *Runner) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		return errors.New("probe interval must be positive")
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick probes all websites and appends one observation for each. Failures
// are isolated per website.
func (r *Runner) Tick(ctx context.Context) {
	start := time.Now()
	ctx, span := otel.Tracer("prober").Start(ctx, "probe.tick",
		trace.WithAttributes(attribute.Int("websites", len(r.Websites))))
	defer span.End()

	log := obs.WithTrace(ctx, r.Log)
	log.Info("running tick")

	if r.Parallel {
		var g errgroup.Group
		limit := r.MaxParallel
		if limit <= 0 {
			limit = 1
		}
		g.SetLimit(limit)
		for _, w := range r.Websites {
			g.Go(func() error {
				r.probeOne(ctx, log, w)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, w := range r.Websites {
			r.probeOne(ctx, log, w)
		}
	}

	mTickDur.Observe(time.Since(start).Seconds())
	log.Info("finished tick", zap.Duration("took", time.Since(start)))
}

func (r *Runner) probeOne(ctx context.Context, log *zap.Logger, w website.Website) {
	if ctx.Err() != nil {
		return
	}
	log = log.With(zap.String("website", w.Name))

	at := r.now()
	start := time.Now()
	code, state, err := r.Pinger.Ping(ctx, w.URL)
	mLatency.WithLabelValues(w.Name).Observe(time.Since(start).Seconds())
	mProbes.WithLabelValues(w.Name, state.String()).Inc()
	if err != nil {
		log.Debug("probe failed", zap.Error(err))
	} else {
		log.Debug("probed", zap.Int("code", code), zap.Stringer("state", state))
	}

	res, err := r.Store.Append(ctx, w.Name, health.Observation{Time: at, State: state}, r.Interval)
	switch {
	case errors.Is(err, compaction.ErrThresholdOverflow):
		mErrors.WithLabelValues("arithmetic").Inc()
		log.Error("skipping website for this tick", zap.Error(err))
		return
	case errors.Is(err, compaction.ErrOutOfOrder):
		mErrors.WithLabelValues("out_of_order").Inc()
		log.Warn("observation rejected", zap.Error(err))
		return
	case err != nil:
		mErrors.WithLabelValues("append").Inc()
		log.Error("append observation", zap.Error(err))
		return
	}

	if res.Opened {
		mAppends.WithLabelValues("opened").Inc()
	} else {
		mAppends.WithLabelValues("extended").Inc()
	}

	if r.Events != nil {
		if err := r.Events.PublishRunAppended(ctx, res.Run, res.Opened); err != nil {
			mErrors.WithLabelValues("publish").Inc()
			log.Warn("publish run event", zap.Error(err))
		}
	}
}

// now is the observation time: UTC, without a monotonic reading, at the
// microsecond precision every backend can store.
func (r *Runner) now() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return now().UTC().Truncate(time.Microsecond)
}
