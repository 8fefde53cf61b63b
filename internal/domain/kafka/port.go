package kafka

import (
	"context"

	"github.com/NordCoder/Uptime/internal/domain/run"
)

// RunEvents exports history changes to downstream consumers.
type RunEvents interface {
	PublishRunAppended(ctx context.Context, r run.Run, opened bool) error
}
