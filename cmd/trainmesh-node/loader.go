package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/trainmesh-go/internal/loader"
	"github.com/yndnr/trainmesh-go/internal/telemetry/logger"
)

// runLoader is the spawned loader. It exits after the worker sends stop.
func runLoader(c *cli.Context) error {
	log, err := logger.New(logger.Config{
		Level:  c.String("log-level"),
		Format: c.String("log-format"),
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	l, err := loader.Dial(ctx, c.String("ctrl"), loader.Options{
		Prefetcher: loader.FilePrefetcher{Dir: c.String("data-dir")},
		Logger:     log.Slog().With("component", "loader"),
	})
	if err != nil {
		return err
	}
	if err := l.Run(ctx); err != nil {
		log.Error("loader failed", "error", err)
		return err
	}
	return nil
}
