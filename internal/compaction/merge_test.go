package compaction

import (
	"math"
	"testing"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func obs(sec int, h health.Health) health.Observation {
	return health.Observation{Time: at(sec), State: h}
}

func TestThreshold(t *testing.T) {
	th, err := Threshold(60 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, th)

	_, err = Threshold(time.Duration(math.MaxInt64/ThresholdFactor) + 1)
	assert.ErrorIs(t, err, ErrThresholdOverflow)

	_, err = Threshold(time.Duration(math.MaxInt64))
	assert.ErrorIs(t, err, ErrThresholdOverflow)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyReference, p)

	p, err = ParsePolicy("gap")
	require.NoError(t, err)
	assert.Equal(t, PolicyGap, p)

	_, err = ParsePolicy("always")
	assert.Error(t, err)
}

func TestExtends(t *testing.T) {
	open := run.Run{Website: "w", State: health.OK, RangeStart: at(0), RangeEnd: at(60)}
	th := 5 * time.Minute

	// same state, far in the future: reference merges, gap does not
	far := obs(60+3600, health.OK)
	assert.True(t, PolicyReference.Extends(open, far, th))
	assert.False(t, PolicyGap.Extends(open, far, th))

	near := obs(60+300, health.OK)
	assert.True(t, PolicyReference.Extends(open, near, th))
	assert.True(t, PolicyGap.Extends(open, near, th))

	for _, p := range []MergePolicy{PolicyReference, PolicyGap} {
		assert.False(t, p.Extends(open, obs(120, health.NotOK), th), p)
	}
}

func TestExtendsDoesNotOverflowAtFarTimes(t *testing.T) {
	open := run.Run{State: health.OK, RangeStart: at(0), RangeEnd: at(0)}
	farFuture := health.Observation{Time: time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), State: health.OK}
	th, err := Threshold(time.Duration(math.MaxInt64 / ThresholdFactor))
	require.NoError(t, err)
	assert.True(t, PolicyReference.Extends(open, farFuture, th))
}

func TestDecide(t *testing.T) {
	th := 5 * time.Minute
	open := &run.Run{State: health.OK, RangeStart: at(0), RangeEnd: at(60)}

	assert.Equal(t, openRun, PolicyReference.decide(nil, obs(0, health.OK), th))
	assert.Equal(t, extendRun, PolicyReference.decide(open, obs(120, health.OK), th))
	assert.Equal(t, extendRun, PolicyReference.decide(open, obs(60, health.OK), th), "duplicate instant extends in place")
	assert.Equal(t, openRun, PolicyReference.decide(open, obs(120, health.NotOK), th))
	assert.Equal(t, rejectObservation, PolicyReference.decide(open, obs(30, health.OK), th), "older than run end")
	assert.Equal(t, rejectObservation, PolicyReference.decide(open, obs(60, health.NotOK), th), "would touch the open run")
	assert.Equal(t, openRun, PolicyGap.decide(open, obs(60+301, health.OK), th))
}
