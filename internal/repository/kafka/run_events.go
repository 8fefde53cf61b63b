package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/kafka"
	"github.com/NordCoder/Uptime/internal/domain/run"
	"github.com/NordCoder/Uptime/internal/obs/retry"
	"google.golang.org/protobuf/types/known/structpb"
)

// RunEventsKafka publishes one message per append, keyed by website so a
// website's events stay ordered within a partition.
type RunEventsKafka struct {
	p      *Producer
	policy retry.Policy
}

var _ kafka.RunEvents = (*RunEventsKafka)(nil)

func NewRunEventsKafka(p *Producer, policy retry.Policy) *RunEventsKafka {
	return &RunEventsKafka{p: p, policy: policy}
}

func (e *RunEventsKafka) PublishRunAppended(ctx context.Context, r run.Run, opened bool) error {
	msg, err := RunPayload(r, opened)
	if err != nil {
		return err
	}
	return retry.Do(ctx, func() error {
		return e.p.PublishProto(ctx, []byte(r.Website), msg)
	}, e.policy)
}

// RunPayload is the wire form of an appended run.
func RunPayload(r run.Run, opened bool) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"id":          r.ID,
		"website":     r.Website,
		"state":       r.State.String(),
		"range_start": r.RangeStart.UTC().Format(time.RFC3339Nano),
		"range_end":   r.RangeEnd.UTC().Format(time.RFC3339Nano),
		"opened":      opened,
	})
	if err != nil {
		return nil, fmt.Errorf("encode run %d: %w", r.ID, err)
	}
	return s, nil
}
