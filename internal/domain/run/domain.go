package run

import (
	"errors"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
)

var ErrNotFound = errors.New("run not found")

// Run is a compacted stretch of same-state observations for one website.
// RangeStart and RangeEnd are the times of its first and last observation.
type Run struct {
	ID         int64         `json:"id"`
	Website    string        `json:"website"`
	State      health.Health `json:"state"`
	RangeStart time.Time     `json:"range_start"`
	RangeEnd   time.Time     `json:"range_end"`
}

func Open(website string, o health.Observation) Run {
	return Run{
		Website:    website,
		State:      o.State,
		RangeStart: o.Time,
		RangeEnd:   o.Time,
	}
}
