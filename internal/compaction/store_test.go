package compaction

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
)

const interval = 60 * time.Second

func newStore(policy MergePolicy) (*RunStore, *memory.Store) {
	m := memory.New()
	return NewRunStore(m, m, policy), m
}

func appendAll(t *testing.T, s *RunStore, website string, observations ...health.Observation) {
	t.Helper()
	for _, o := range observations {
		_, err := s.Append(context.Background(), website, o, interval)
		require.NoError(t, err)
	}
}

func listRuns(t *testing.T, m *memory.Store) []run.Run {
	t.Helper()
	runs, err := m.ListAll(context.Background())
	require.NoError(t, err)
	return runs
}

func TestAppend_ExampleScenario(t *testing.T) {
	s, m := newStore(PolicyReference)
	appendAll(t, s, "example",
		obs(0, health.OK), obs(60, health.OK), obs(120, health.OK), obs(180, health.OK), obs(240, health.OK))

	runs := listRuns(t, m)
	require.Len(t, runs, 1)
	assert.Equal(t, health.OK, runs[0].State)
	assert.Equal(t, at(0), runs[0].RangeStart)
	assert.Equal(t, at(240), runs[0].RangeEnd)

	res, err := s.Append(context.Background(), "example", obs(300, health.NotOK), interval)
	require.NoError(t, err)
	assert.True(t, res.Opened)

	runs = listRuns(t, m)
	require.Len(t, runs, 2)
	assert.Equal(t, run.Run{ID: runs[1].ID, Website: "example", State: health.NotOK, RangeStart: at(300), RangeEnd: at(300)}, runs[1])
}

func TestAppend_ResultReportsWrite(t *testing.T) {
	s, _ := newStore(PolicyReference)
	ctx := context.Background()

	first, err := s.Append(ctx, "w", obs(0, health.OK), interval)
	require.NoError(t, err)
	assert.True(t, first.Opened)

	second, err := s.Append(ctx, "w", obs(60, health.OK), interval)
	require.NoError(t, err)
	assert.False(t, second.Opened)
	assert.Equal(t, first.Run.ID, second.Run.ID)
	assert.Equal(t, at(60), second.Run.RangeEnd)
}

func TestAppend_Split(t *testing.T) {
	s, m := newStore(PolicyReference)
	appendAll(t, s, "w",
		obs(0, health.OK), obs(60, health.NotOK), obs(120, health.NotOK), obs(180, health.OK))

	runs := listRuns(t, m)
	require.Len(t, runs, 3)
	assert.Equal(t, []health.Health{health.OK, health.NotOK, health.OK},
		[]health.Health{runs[0].State, runs[1].State, runs[2].State})
	assert.Equal(t, at(120), runs[1].RangeEnd)
}

func TestAppend_WebsitesAreIndependent(t *testing.T) {
	s, m := newStore(PolicyReference)
	appendAll(t, s, "a", obs(0, health.OK))
	appendAll(t, s, "b", obs(0, health.NotOK))
	appendAll(t, s, "a", obs(60, health.OK))
	appendAll(t, s, "b", obs(60, health.NotOK))

	runs := listRuns(t, m)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, at(60), r.RangeEnd, r.Website)
	}
}

func TestAppend_GapPolicySplitsLongSilence(t *testing.T) {
	ref, refStore := newStore(PolicyReference)
	gap, gapStore := newStore(PolicyGap)
	seq := []health.Observation{obs(0, health.OK), obs(60, health.OK), obs(60+3600, health.OK)}
	appendAll(t, ref, "w", seq...)
	appendAll(t, gap, "w", seq...)

	assert.Len(t, listRuns(t, refStore), 1)
	assert.Len(t, listRuns(t, gapStore), 2)
}

func TestAppend_OutOfOrderRejected(t *testing.T) {
	s, m := newStore(PolicyReference)
	appendAll(t, s, "w", obs(0, health.OK), obs(120, health.OK))

	_, err := s.Append(context.Background(), "w", obs(60, health.NotOK), interval)
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Contains(t, err.Error(), "older than")

	_, err = s.Append(context.Background(), "w", obs(120, health.NotOK), interval)
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Contains(t, err.Error(), "same instant")
	assert.NotContains(t, err.Error(), "older")

	runs := listRuns(t, m)
	require.Len(t, runs, 1)
	assert.Equal(t, at(120), runs[0].RangeEnd)
}

func TestAppend_ThresholdOverflow(t *testing.T) {
	s, m := newStore(PolicyReference)
	_, err := s.Append(context.Background(), "w", obs(0, health.OK), time.Duration(1<<62))
	assert.ErrorIs(t, err, ErrThresholdOverflow)
	assert.Empty(t, listRuns(t, m))
}

func TestAppend_InvalidState(t *testing.T) {
	s, m := newStore(PolicyReference)
	_, err := s.Append(context.Background(), "w", health.Observation{Time: at(0)}, interval)
	assert.Error(t, err)
	assert.Empty(t, listRuns(t, m))
}

type failingUpdate struct {
	*memory.Store
}

func (f failingUpdate) UpdateEnd(context.Context, int64, time.Time) error {
	return errors.New("disk full")
}

func TestAppend_WriteFailureLeavesHistoryUntouched(t *testing.T) {
	m := memory.New()
	appendAll(t, NewRunStore(m, m, PolicyReference), "w", obs(0, health.OK))

	s := NewRunStore(failingUpdate{m}, m, PolicyReference)
	_, err := s.Append(context.Background(), "w", obs(60, health.OK), interval)
	require.Error(t, err)

	runs := listRuns(t, m)
	require.Len(t, runs, 1)
	assert.Equal(t, at(0), runs[0].RangeEnd)
}

// Runs of one website stay ordered, disjoint and non-empty for any sequence
// of in-order observations.
func TestAppend_RunsNeverOverlap(t *testing.T) {
	s, m := newStore(PolicyGap)
	pattern := []health.Health{health.OK, health.OK, health.NotOK, health.OK, health.NotOK, health.NotOK, health.NotOK, health.OK}
	sec := 0
	for i := 0; i < 200; i++ {
		sec += 30 + (i%7)*90
		appendAll(t, s, "w", obs(sec, pattern[i%len(pattern)]))
	}

	runs := listRuns(t, m)
	require.NotEmpty(t, runs)
	for i, r := range runs {
		assert.False(t, r.RangeEnd.Before(r.RangeStart), "run %d inverted", i)
		if i > 0 {
			assert.True(t, runs[i-1].RangeEnd.Before(r.RangeStart), "runs %d and %d overlap", i-1, i)
		}
	}
}
