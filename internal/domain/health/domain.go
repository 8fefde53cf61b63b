package health

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Health is the outcome of a single probe. It is a closed set: the zero value
// is invalid so an unset field never reads as a healthy site.
type Health uint8

const (
	OK Health = iota + 1
	NotOK
)

const (
	tagOK    = "ok"
	tagNotOK = "not_ok"
)

func (h Health) String() string {
	switch h {
	case OK:
		return tagOK
	case NotOK:
		return tagNotOK
	default:
		return fmt.Sprintf("health(%d)", uint8(h))
	}
}

func (h Health) Valid() bool { return h == OK || h == NotOK }

func Parse(s string) (Health, error) {
	switch s {
	case tagOK:
		return OK, nil
	case tagNotOK:
		return NotOK, nil
	default:
		return 0, fmt.Errorf("unknown health tag %q", s)
	}
}

// FromStatus classifies an HTTP status code. Only 2xx counts as healthy.
func FromStatus(code int) Health {
	if code >= 200 && code <= 299 {
		return OK
	}
	return NotOK
}

func (h Health) MarshalText() ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("marshal invalid health %d", uint8(h))
	}
	return []byte(h.String()), nil
}

func (h *Health) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func (h Health) Value() (driver.Value, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("store invalid health %d", uint8(h))
	}
	return h.String(), nil
}

func (h *Health) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return h.UnmarshalText([]byte(v))
	case []byte:
		return h.UnmarshalText(v)
	default:
		return fmt.Errorf("scan health from %T", src)
	}
}

// Observation is one probe result for one website at one instant.
type Observation struct {
	Time  time.Time `json:"time"`
	State Health    `json:"state"`
}
