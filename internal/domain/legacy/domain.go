package legacy

import "github.com/NordCoder/Uptime/internal/domain/health"

// Check is one row of the flat pre-compaction observation log.
type Check struct {
	ID      int64
	Website string
	health.Observation
}
