package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/legacy"
	"github.com/NordCoder/Uptime/internal/domain/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestLatest(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Latest(ctx, "w")
	assert.ErrorIs(t, err, run.ErrNotFound)

	require.NoError(t, s.InsertBatch(ctx, []run.Run{
		{Website: "w", State: health.OK, RangeStart: t0, RangeEnd: t0.Add(time.Minute)},
		{Website: "w", State: health.NotOK, RangeStart: t0.Add(2 * time.Minute), RangeEnd: t0.Add(3 * time.Minute)},
		{Website: "x", State: health.OK, RangeStart: t0, RangeEnd: t0.Add(time.Hour)},
	}))

	latest, err := s.Latest(ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, health.NotOK, latest.State)
	assert.Equal(t, int64(2), latest.ID)

	require.NoError(t, s.UpdateEnd(ctx, latest.ID, t0.Add(4*time.Minute)))
	latest, err = s.Latest(ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(4*time.Minute), latest.RangeEnd)

	assert.ErrorIs(t, s.UpdateEnd(ctx, 99, t0), run.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SeedLegacy([]legacy.Check{{ID: 1, Website: "w", Observation: health.Observation{Time: t0, State: health.OK}}})

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		r := run.Run{Website: "w", State: health.OK, RangeStart: t0, RangeEnd: t0}
		require.NoError(t, s.Insert(ctx, &r))
		require.NoError(t, s.Legacy().Drop(ctx))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	runs, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	exists, err := s.Legacy().Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	// ids handed out inside the failed tx are reused
	r := run.Run{Website: "w", State: health.OK, RangeStart: t0, RangeEnd: t0}
	require.NoError(t, s.Insert(ctx, &r))
	assert.Equal(t, int64(1), r.ID)
}

func TestNestedWithTxJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.WithTx(ctx, func(ctx context.Context) error {
		return s.WithTx(ctx, func(ctx context.Context) error {
			r := run.Run{Website: "w", State: health.OK, RangeStart: t0, RangeEnd: t0}
			return s.Insert(ctx, &r)
		})
	})
	require.NoError(t, err)
	runs, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
