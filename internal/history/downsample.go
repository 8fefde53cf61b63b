package history

import (
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/run"
)

type Class uint8

const (
	Unknown Class = iota
	Green
	Orange
	Red
)

func (c Class) String() string {
	switch c {
	case Green:
		return "green"
	case Orange:
		return "orange"
	case Red:
		return "red"
	default:
		return "unknown"
	}
}

// CSSClass is the class name the status template uses for a bar element.
func (c Class) CSSClass() string { return "check-result-" + c.String() }

// Bucket is one element of a status bar, covering [Start, End).
type Bucket struct {
	Class Class
	Start time.Time
	End   time.Time
}

// Downsample slices the time between the first run's start and the last
// run's end into n equal buckets and classifies each by the runs touching it.
// runs must be sorted by RangeStart and non-overlapping.
//
// With no runs it returns n Unknown buckets with zero spans. When all runs
// collapse to one instant every bucket carries the classification of all
// of them. n <= 0 yields nil.
func Downsample(runs []run.Run, n int) []Bucket {
	if n <= 0 {
		return nil
	}
	out := make([]Bucket, n)
	if len(runs) == 0 {
		return out
	}

	first := runs[0].RangeStart
	last := runs[len(runs)-1].RangeEnd
	span := float64(last.Sub(first))

	if span <= 0 {
		c := classify(runs)
		for i := range out {
			out[i] = Bucket{Class: c, Start: first, End: first}
		}
		return out
	}

	width := span / float64(n)
	offset := func(t time.Time) float64 { return float64(t.Sub(first)) }

	cursor := 0
	for i := 0; i < n; i++ {
		lo := float64(i) * width
		hiFactor := 1.0
		if i == n-1 {
			// widened so float rounding can never drop the final run end
			hiFactor = 2.0
		}
		hi := (float64(i) + hiFactor) * width

		// Runs are ordered and disjoint, so ends are ordered too: anything
		// ending before this bucket also ends before every later one.
		for cursor < len(runs) && offset(runs[cursor].RangeEnd) < lo {
			cursor++
		}
		var ok, bad int
		for j := cursor; j < len(runs) && offset(runs[j].RangeStart) <= hi; j++ {
			if runs[j].State == health.OK {
				ok++
			} else {
				bad++
			}
		}

		out[i] = Bucket{
			Class: classOf(ok, bad),
			Start: first.Add(time.Duration(lo)),
			End:   first.Add(time.Duration(hi)),
		}
	}
	return out
}

func classify(runs []run.Run) Class {
	var ok, bad int
	for _, r := range runs {
		if r.State == health.OK {
			ok++
		} else {
			bad++
		}
	}
	return classOf(ok, bad)
}

func classOf(ok, bad int) Class {
	switch {
	case ok == 0 && bad == 0:
		return Unknown
	case bad == 0:
		return Green
	case ok == 0:
		return Red
	default:
		return Orange
	}
}
