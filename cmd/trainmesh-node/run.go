package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/group"
	"github.com/yndnr/trainmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/trainmesh-go/internal/infra/confloader"
	"github.com/yndnr/trainmesh-go/internal/infra/shutdown"
	"github.com/yndnr/trainmesh-go/internal/process"
	"github.com/yndnr/trainmesh-go/internal/storage"
	"github.com/yndnr/trainmesh-go/internal/telemetry/logger"
	"github.com/yndnr/trainmesh-go/internal/telemetry/metric"
	"github.com/yndnr/trainmesh-go/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func runNode(c *cli.Context) error {
	configFile := c.String("config")

	cfg, role, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogLogger := log.Slog()

	log.Info("starting trainmesh-node",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", configFile,
		"rank", cfg.Group.Rank,
		"role", role)

	metrics := metric.NewRegistry()
	shutdownHandler := shutdown.NewHandler(shutdownTimeout)

	grp, err := group.NewGossip(group.Config{
		Rank:          cfg.Group.Rank,
		Size:          cfg.Group.Size,
		BindAddr:      cfg.Group.BindAddr,
		BindPort:      cfg.Group.BindPort,
		AdvertiseAddr: cfg.Group.AdvertiseAddr,
		Seeds:         cfg.Group.Seeds,
		Logger:        slogLogger,
	})
	if err != nil {
		return fmt.Errorf("join group: %w", err)
	}
	// Registered first so the group is left last.
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("leaving group")
		return grp.Close()
	})

	opts := process.Options{Logger: slogLogger, Metrics: metrics}
	if role == domain.RoleWorker {
		if err := initWorker(cfg, &opts, shutdownHandler, slogLogger); err != nil {
			return err
		}
	}

	proc, err := process.New(cfg, grp, opts)
	if err != nil {
		return err
	}
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("stopping role", "role", proc.Role().Name())
		return proc.Close(ctx)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdownHandler.OnShutdown(func(context.Context) error {
		cancel()
		return nil
	})

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := proc.Run(ctx)
		if err != nil {
			log.Error("role failed", "error", err)
		}
		shutdownHandler.Trigger()
		return err
	})

	if addr := cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.Handler(), ReadHeaderTimeout: 10 * time.Second}
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return srv.Shutdown(ctx)
		})
		eg.Go(func() error {
			log.Info("metrics server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if configFile != "" {
		if err := watchConfig(ctx, eg, configFile, cfg, slogLogger); err != nil {
			log.Warn("config watcher disabled", "error", err)
		}
	}

	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	log.Info("node stopped")
	return nil
}

// loadConfig loads and validates the configuration for this rank's role.
func loadConfig(configFile string) (*config.TrainConfig, domain.Role, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, 0, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, 0, fmt.Errorf("invalid configuration: %w", err)
	}
	role, err := domain.ParseRole(cfg.Role, cfg.Group.Rank)
	if err != nil {
		return nil, 0, err
	}
	if role == domain.RoleWorker {
		if err := config.VerifyWorker(cfg); err != nil {
			return nil, 0, fmt.Errorf("invalid worker configuration: %w", err)
		}
	}
	return cfg, role, nil
}

// initLogger installs the node logger. Non-verbose ranks only log warnings.
func initLogger(cfg *config.TrainConfig) (logger.Logger, error) {
	rule, err := domain.ParseSyncRule(cfg.SyncRule)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Config{
		Level:  logger.LevelFor(cfg.Log.Level, rule.Verbose(cfg.Group.Rank)),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// initWorker opens the manifest store and sets up the loader spawner.
func initWorker(cfg *config.TrainConfig, opts *process.Options, sh *shutdown.Handler, log *slog.Logger) error {
	bcfg := storage.DefaultBadgerConfig(cfg.Manifest.Dir)
	bcfg.InMemory = cfg.Manifest.InMemory
	store, err := storage.OpenBadger(bcfg, log)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	sh.OnShutdown(func(context.Context) error { return store.Close() })
	opts.Manifest = storage.NewBadgerManifest(store)

	if cfg.ParaLoad {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate loader binary: %w", err)
		}
		args, err := loaderArgs(cfg)
		if err != nil {
			return err
		}
		opts.Spawner = worker.ExecSpawner{Binary: self, Args: args}
	}
	return nil
}

// loaderArgs are the flags every spawned loader gets. The data dir is made
// absolute so the loader's working directory does not matter.
func loaderArgs(cfg *config.TrainConfig) ([]string, error) {
	dir := cfg.Loader.DataDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve loader.data_dir: %w", err)
	}
	return []string{
		"--log-level", cfg.Log.Level,
		"--log-format", cfg.Log.Format,
		"--data-dir", abs,
	}, nil
}

// watchConfig follows the config file and applies log level changes.
func watchConfig(ctx context.Context, eg *errgroup.Group, path string, cfg *config.TrainConfig, log *slog.Logger) error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return err
	}
	rule, _ := domain.ParseSyncRule(cfg.SyncRule)
	verbose := rule.Verbose(cfg.Group.Rank)

	w.OnChange(func(string) {
		next, err := config.Load(path)
		if err != nil {
			log.Warn("reload config", "error", err)
			return
		}
		level := logger.LevelFor(next.Log.Level, verbose)
		if level != logger.GetLevel() {
			logger.SetLevel(level)
			log.Warn("log level changed", "level", level)
		}
	})
	eg.Go(func() error { return w.Run(ctx) })
	return nil
}
