package prober

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/run"
	"github.com/NordCoder/Uptime/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// slowEvents stands in for a broker that takes delay per message.
type slowEvents struct {
	fakeEvents
	delay time.Duration
}

func (s *slowEvents) PublishRunAppended(ctx context.Context, r run.Run, opened bool) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.fakeEvents.PublishRunAppended(ctx, r, opened)
}

func (f *fakeEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestTick_SlowExporterDoesNotDelayTick(t *testing.T) {
	m := memory.New()
	p := newFakePinger(map[string]health.Health{"http://up.test": health.OK, "http://down.test": health.NotOK})
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	slow := &slowEvents{delay: 500 * time.Millisecond}
	q := NewEventQueue(slow, 16, zap.NewNop())
	r := newRunner(m, p, c)
	r.Events = q

	start := time.Now()
	r.Tick(context.Background())
	assert.Less(t, time.Since(start), 250*time.Millisecond, "tick must not wait for the exporter")
	assert.Zero(t, slow.count())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	assert.Eventually(t, func() bool { return slow.count() == len(sites) }, 5*time.Second, 10*time.Millisecond)
	slow.mu.Lock()
	defer slow.mu.Unlock()
	for i, w := range sites {
		assert.Equal(t, w.Name, slow.events[i].run.Website, "events keep tick order")
		assert.True(t, slow.events[i].opened)
	}
}

func TestEventQueue_FullQueueDrops(t *testing.T) {
	ev := &fakeEvents{}
	q := NewEventQueue(ev, 1, nil)

	require.NoError(t, q.PublishRunAppended(context.Background(), run.Run{ID: 1}, true))
	assert.ErrorIs(t, q.PublishRunAppended(context.Background(), run.Run{ID: 2}, false), ErrEventQueueFull)
	assert.Zero(t, ev.count())
}

func TestEventQueue_FailuresDoNotStopWorker(t *testing.T) {
	ev := &fakeEvents{err: errors.New("broker down")}
	q := NewEventQueue(ev, 4, zap.NewNop())
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.PublishRunAppended(context.Background(), run.Run{ID: i, Website: "up"}, false))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	assert.Eventually(t, func() bool { return ev.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("queue worker did not stop")
	}
}
