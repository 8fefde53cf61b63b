package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NordCoder/Uptime/internal/bootstrap"
	"github.com/NordCoder/Uptime/internal/domain/website"
	"github.com/NordCoder/Uptime/internal/services/dashboard"
	"go.uber.org/zap"
)

// uptime-render writes the status page once to stdout, for static hosting.
func main() {
	// a closed stdout surfaces as EPIPE instead of killing the process
	signal.Ignore(syscall.SIGPIPE)
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Init(root, "uptime-render")
	if err != nil {
		log.Fatal(err)
	}
	cfg := env.Cfg

	env.Log.Info("computing result")
	renderer := dashboard.NewRenderer(env.Store.Runs, website.Names(cfg.Websites), cfg.BarBuckets, cfg.App.Version)
	err = renderer.Render(root, os.Stdout)
	env.Close(context.Background())

	switch {
	case err == nil, errors.Is(err, syscall.EPIPE):
	default:
		env.Log.Error("render status page", zap.Error(err))
		os.Exit(1)
	}
}
