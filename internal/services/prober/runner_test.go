package prober

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/Uptime/internal/compaction"
	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/run"
	"github.com/NordCoder/Uptime/internal/domain/website"
	"github.com/NordCoder/Uptime/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePinger struct {
	mu     sync.Mutex
	states map[string]health.Health
	calls  map[string]int
}

func newFakePinger(states map[string]health.Health) *fakePinger {
	return &fakePinger{states: states, calls: map[string]int{}}
}

func (f *fakePinger) set(url string, h health.Health) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[url] = h
}

func (f *fakePinger) Ping(_ context.Context, url string) (int, health.Health, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if h, ok := f.states[url]; ok {
		if h == health.OK {
			return 200, h, nil
		}
		return 500, h, nil
	}
	return 0, health.NotOK, errors.New("connection refused")
}

type recordedEvent struct {
	run    run.Run
	opened bool
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (f *fakeEvents) PublishRunAppended(_ context.Context, r run.Run, opened bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{r, opened})
	return f.err
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var sites = []website.Website{
	{Name: "up", URL: "http://up.test"},
	{Name: "down", URL: "http://down.test"},
	{Name: "gone", URL: "http://gone.test"},
}

func newRunner(m *memory.Store, p Pinger, c *clock) *Runner {
	return &Runner{
		Log:      zap.NewNop(),
		Store:    compaction.NewRunStore(m, m, compaction.PolicyReference),
		Pinger:   p,
		Websites: sites,
		Interval: time.Minute,
		Now:      c.now,
	}
}

func byWebsite(t *testing.T, m *memory.Store) map[string][]run.Run {
	t.Helper()
	runs, err := m.ListAll(context.Background())
	require.NoError(t, err)
	out := map[string][]run.Run{}
	for _, r := range runs {
		out[r.Website] = append(out[r.Website], r)
	}
	return out
}

func TestTick_CompactsPerWebsite(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		m := memory.New()
		p := newFakePinger(map[string]health.Health{"http://up.test": health.OK, "http://down.test": health.NotOK})
		c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
		r := newRunner(m, p, c)
		r.Parallel, r.MaxParallel = parallel, 2

		start := c.now()
		for i := 0; i < 5; i++ {
			r.Tick(context.Background())
			c.advance(time.Minute)
		}
		p.set("http://up.test", health.NotOK)
		r.Tick(context.Background())

		got := byWebsite(t, m)
		require.Len(t, got["up"], 2, "parallel=%v", parallel)
		assert.Equal(t, start, got["up"][0].RangeStart)
		assert.Equal(t, start.Add(4*time.Minute), got["up"][0].RangeEnd)
		assert.Equal(t, health.NotOK, got["up"][1].State)

		require.Len(t, got["down"], 1)
		assert.Equal(t, start.Add(5*time.Minute), got["down"][0].RangeEnd)

		// transport failures are recorded as NotOK, not dropped
		require.Len(t, got["gone"], 1)
		assert.Equal(t, health.NotOK, got["gone"][0].State)

		for _, w := range sites {
			assert.Equal(t, 6, p.calls[w.URL], "one probe per website per tick")
		}
	}
}

func TestTick_PublishesEvents(t *testing.T) {
	m := memory.New()
	p := newFakePinger(map[string]health.Health{"http://up.test": health.OK})
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	ev := &fakeEvents{err: errors.New("broker down")}
	r := newRunner(m, p, c)
	r.Websites = sites[:1]
	r.Events = ev

	r.Tick(context.Background())
	c.advance(time.Minute)
	r.Tick(context.Background())

	require.Len(t, ev.events, 2)
	assert.True(t, ev.events[0].opened)
	assert.False(t, ev.events[1].opened)
	assert.Equal(t, ev.events[0].run.ID, ev.events[1].run.ID)

	// publish failures do not affect the history
	assert.Len(t, byWebsite(t, m)["up"], 1)
}

func TestTick_OverflowSkipsWebsite(t *testing.T) {
	m := memory.New()
	p := newFakePinger(map[string]health.Health{"http://up.test": health.OK})
	r := newRunner(m, p, &clock{t: time.Now().UTC()})
	r.Interval = time.Duration(1 << 62)

	r.Tick(context.Background())
	assert.Empty(t, byWebsite(t, m))
	assert.Equal(t, 1, p.calls["http://up.test"])
}

func TestTick_ClockStepBackIsRejected(t *testing.T) {
	m := memory.New()
	p := newFakePinger(map[string]health.Health{"http://up.test": health.OK})
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := newRunner(m, p, c)
	r.Websites = sites[:1]

	r.Tick(context.Background())
	c.advance(-time.Hour)
	r.Tick(context.Background())

	got := byWebsite(t, m)["up"]
	require.Len(t, got, 1)
	assert.Equal(t, got[0].RangeStart, got[0].RangeEnd)
}

func TestRun_StopsOnCancel(t *testing.T) {
	m := memory.New()
	p := newFakePinger(map[string]health.Health{"http://up.test": health.OK})
	r := newRunner(m, p, &clock{t: time.Now().UTC()})
	r.Websites = sites[:1]
	r.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, byWebsite(t, m)["up"])
}

func TestRun_RejectsNonPositiveInterval(t *testing.T) {
	r := newRunner(memory.New(), newFakePinger(nil), &clock{})
	r.Interval = 0
	assert.Error(t, r.Run(context.Background()))
}

func TestNowIsUTCMicroseconds(t *testing.T) {
	loc := time.FixedZone("x", 3600)
	r := &Runner{Now: func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 1234567, loc) }}
	got := r.now()
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 1234000, got.Nanosecond())
}
