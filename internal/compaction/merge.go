package compaction

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/run"
)

// ThresholdFactor is how many polling intervals a run may be extended across.
const ThresholdFactor = 5

var (
	ErrThresholdOverflow = errors.New("merge threshold overflows duration")
	ErrOutOfOrder        = errors.New("observation does not advance latest run")
)

// MergePolicy decides whether an observation with the same state as the
// open run extends it. The two policies disagree on what the threshold
// bounds; see DESIGN.md before changing the default.
type MergePolicy string

const (
	// PolicyReference extends while run end < observation time + threshold.
	// Since observations arrive in time order this holds for any positive
	// threshold, so same-state observations always merge.
	PolicyReference MergePolicy = "reference"
	// PolicyGap extends only while observation time - run end <= threshold.
	PolicyGap MergePolicy = "gap"
)

func ParsePolicy(s string) (MergePolicy, error) {
	switch p := MergePolicy(s); p {
	case PolicyReference, PolicyGap:
		return p, nil
	case "":
		return PolicyReference, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q", s)
	}
}

// Threshold returns ThresholdFactor * interval.
func Threshold(interval time.Duration) (time.Duration, error) {
	if interval < 0 {
		return 0, fmt.Errorf("negative interval %s", interval)
	}
	if interval > math.MaxInt64/ThresholdFactor {
		return 0, fmt.Errorf("%w: interval %s", ErrThresholdOverflow, interval)
	}
	return interval * ThresholdFactor, nil
}

// Extends reports whether o extends open under policy p.
func (p MergePolicy) Extends(open run.Run, o health.Observation, threshold time.Duration) bool {
	if open.State != o.State {
		return false
	}
	switch p {
	case PolicyGap:
		return o.Time.Sub(open.RangeEnd) <= threshold
	default:
		// End < T+threshold, rearranged so Sub saturates instead of overflowing.
		return open.RangeEnd.Sub(o.Time) < threshold
	}
}

type decision uint8

const (
	openRun decision = iota
	extendRun
	rejectObservation
)

// decide applies the compaction rule to the website's open run (nil if the
// website has none). An observation that is older than the open run, or that
// would start a new run at the exact instant the open one ends, is rejected so
// runs of one website never touch.
func (p MergePolicy) decide(open *run.Run, o health.Observation, threshold time.Duration) decision {
	if open == nil {
		return openRun
	}
	if o.Time.Before(open.RangeEnd) {
		return rejectObservation
	}
	if p.Extends(*open, o, threshold) {
		return extendRun
	}
	if o.Time.Equal(open.RangeEnd) {
		return rejectObservation
	}
	return openRun
}
