package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NordCoder/Uptime/internal/bootstrap"
)

// migrator applies schema migrations and folds the legacy check log into
// runs, then exits. The server does the same on startup.
func main() {
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Init(root, "migrator")
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	env.Log.Info("migrations: up OK")
	env.Close(context.Background())
}
