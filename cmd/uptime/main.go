package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NordCoder/Uptime/internal/bootstrap"
	"github.com/NordCoder/Uptime/internal/compaction"
	domainkafka "github.com/NordCoder/Uptime/internal/domain/kafka"
	"github.com/NordCoder/Uptime/internal/domain/website"
	"github.com/NordCoder/Uptime/internal/obs"
	"github.com/NordCoder/Uptime/internal/obs/retry"
	"github.com/NordCoder/Uptime/internal/repository/kafka"
	"github.com/NordCoder/Uptime/internal/services/dashboard"
	"github.com/NordCoder/Uptime/internal/services/prober"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Init(root, "uptime")
	if err != nil {
		log.Print(err)
		return 1
	}
	l, cfg := env.Log, env.Cfg
	defer env.Close(context.Background())

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, cfg.App.Version, env.Store.Ping, l)

	// events
	var events domainkafka.RunEvents
	if cfg.Events.Enable {
		prod := kafka.BootstrapProducer(root, cfg.Events.Brokers, cfg.Events.TopicSpec(), l)
		queue := prober.NewEventQueue(kafka.NewRunEventsKafka(prod, retry.PublishPolicy(l)), cfg.Events.QueueSize, l.Named("events"))
		queueDone := make(chan struct{})
		go func() {
			defer close(queueDone)
			_ = queue.Run(root)
		}()
		// the worker stops with root; wait for it before closing the writer
		defer func() {
			<-queueDone
			_ = prod.Close()
		}()
		events = queue
	}

	// probe loop
	runner := &prober.Runner{
		Log:   l.Named("prober"),
		Store: compaction.NewRunStore(env.Store.Runs, env.Store.Tx, cfg.Policy()),
		Pinger: prober.NewClient(prober.Config{
			Timeout:         cfg.Probe.Timeout,
			UserAgent:       cfg.Probe.UserAgent,
			FollowRedirects: cfg.Probe.FollowRedirects,
			VerifyTLS:       cfg.Probe.VerifyTLS,
		}),
		Events:      events,
		Websites:    cfg.Websites,
		Interval:    cfg.Interval(),
		Parallel:    cfg.Probe.Parallel,
		MaxParallel: cfg.Probe.MaxParallel,
	}
	probeErrCh := make(chan error, 1)
	go func() { probeErrCh <- runner.Run(root) }()

	// status page
	renderer := dashboard.NewRenderer(env.Store.Runs, website.Names(cfg.Websites), cfg.BarBuckets, cfg.App.Version)
	srv := dashboard.NewServer(dashboard.ServerConfig{
		Addr:         cfg.Server.HTTPAddr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, dashboard.Handler(renderer, l.Named("dashboard")))
	httpErrCh := make(chan error, 1)
	go func() {
		l.Info("serving status page", zap.String("addr", cfg.Server.HTTPAddr))
		httpErrCh <- srv.ListenAndServe()
	}()

	exit, probeDone := 0, false
	select {
	case <-root.Done():
		l.Info("shutdown signal")
	case err = <-probeErrCh:
		probeDone = true
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("probe loop", zap.Error(err))
			exit = 1
		}
	case err = <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http serve", zap.Error(err))
			exit = 1
		}
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	_ = ms.Shutdown(shCtx)

	// let an in-flight tick observe the cancellation
	if !probeDone {
		select {
		case <-probeErrCh:
		case <-time.After(cfg.Probe.Timeout):
		}
	}
	l.Info("bye")
	return exit
}
