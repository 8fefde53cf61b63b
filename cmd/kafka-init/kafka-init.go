package main

import (
	"context"
	"fmt"
	"os"
	"time"

	config "github.com/NordCoder/Uptime/internal/config/uptime"
	"github.com/NordCoder/Uptime/internal/obs"
	"github.com/NordCoder/Uptime/internal/repository/kafka"
	"go.uber.org/zap"
)

// kafka-init provisions the run events topic before the first uptime
// instance starts publishing to it.
func main() {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "kafka-init: %v\n", err)
		os.Exit(1)
	}
	log, err := obs.NewLogger(cfg.AsLoggerConfig("kafka-init"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "kafka-init: build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	spec := cfg.Events.TopicSpec()
	spec.MaxWait = 30 * time.Second
	if err := kafka.EnsureTopic(ctx, cfg.Events.Brokers, spec, log); err != nil {
		log.Error("ensure topic", zap.String("topic", spec.Name), zap.Error(err))
		os.Exit(1)
	}
	log.Info("kafka-init ok", zap.String("topic", spec.Name), zap.Strings("brokers", cfg.Events.Brokers))
}
