package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/app"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/config"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred cleanup still happens.
func run() error {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	a, err := app.New(cfg, log)
	if apperr.Is(err, apperr.KindConfiguration) {
		log.Error("invalid configuration", "error", err)
		return err
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("database close failed", "error", err)
		}
	}()

	if err := a.Migrate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.Run(ctx)
}
