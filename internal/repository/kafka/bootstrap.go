package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BootstrapProducer makes sure the topic exists and returns a producer for it.
// Topic creation failures are logged only: the writer auto-creates topics on
// brokers that allow it.
func BootstrapProducer(ctx context.Context, brokers []string, spec TopicSpec, logger *zap.Logger) *Producer {
	if spec.MaxWait <= 0 {
		spec.MaxWait = 5 * time.Second
	}
	if err := EnsureTopic(ctx, brokers, spec, logger); err != nil {
		logger.Warn("ensure events topic", zap.String("topic", spec.Name), zap.Error(err))
	}
	return NewProducer(brokers, spec.Name).WithLogger(logger)
}
