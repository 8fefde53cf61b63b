package prober

import (
	"context"
	"errors"

	"github.com/NordCoder/Uptime/internal/domain/kafka"
	"github.com/NordCoder/Uptime/internal/domain/run"
	"github.com/NordCoder/Uptime/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultEventQueueSize = 1024

var ErrEventQueueFull = errors.New("run event queue full")

var (
	mEventsQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uptime_run_events_queued", Help: "Run events waiting to be published",
	})
	mEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptime_run_events_total", Help: "Run events by outcome (published, failed, dropped)",
	}, []string{"outcome"})
)

type queuedEvent struct {
	span   trace.SpanContext
	run    run.Run
	opened bool
}

// EventQueue hands run events from the probe tick to a single worker that
// publishes them through next. Enqueueing never blocks: a full queue drops
// the event and reports ErrEventQueueFull.
type EventQueue struct {
	log  *zap.Logger
	next kafka.RunEvents
	ch   chan queuedEvent
}

var _ kafka.RunEvents = (*EventQueue)(nil)

func NewEventQueue(next kafka.RunEvents, size int, log *zap.Logger) *EventQueue {
	if size <= 0 {
		size = DefaultEventQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EventQueue{log: log, next: next, ch: make(chan queuedEvent, size)}
}

func (q *EventQueue) PublishRunAppended(ctx context.Context, r run.Run, opened bool) error {
	select {
	case q.ch <- queuedEvent{span: trace.SpanContextFromContext(ctx), run: r, opened: opened}:
		mEventsQueued.Inc()
		return nil
	default:
		mEventsPublished.WithLabelValues("dropped").Inc()
		return ErrEventQueueFull
	}
}

// Run publishes queued events in order until ctx is done. Events still queued
// at shutdown are dropped.
func (q *EventQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := len(q.ch); n > 0 {
				q.log.Warn("dropping unpublished run events", zap.Int("count", n))
			}
			return ctx.Err()
		case e := <-q.ch:
			mEventsQueued.Dec()
			// keep the tick's trace so the message headers link back to it
			pctx := trace.ContextWithSpanContext(ctx, e.span)
			if err := q.next.PublishRunAppended(pctx, e.run, e.opened); err != nil {
				mEventsPublished.WithLabelValues("failed").Inc()
				obs.WithTrace(pctx, q.log).Warn("publish run event",
					zap.String("website", e.run.Website), zap.Int64("run_id", e.run.ID), zap.Error(err))
				continue
			}
			mEventsPublished.WithLabelValues("published").Inc()
		}
	}
}
