package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/oklog/ulid/v2"
	"github.com/shirou/gopsutil/host"

	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/model"
	"github.com/yndnr/trainmesh-go/internal/rendezvous"
	"github.com/yndnr/trainmesh-go/internal/storage"
	"github.com/yndnr/trainmesh-go/internal/telemetry/metric"
)

// Options configures a Worker.
type Options struct {
	// Config is the verified base configuration. It is not modified.
	Config   *config.TrainConfig
	Identity domain.Identity

	Builder  model.Builder
	Manifest storage.Manifest
	// Spawner starts the loader; required with para_load.
	Spawner Spawner

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Worker is the worker role.
type Worker struct {
	opts Options
	log  *slog.Logger

	// beforeHandle runs between handoff steps 2 and 3.
	beforeHandle func()
}

// New creates a worker.
func New(opts Options) *Worker {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Builder == nil {
		opts.Builder = model.NewCatalog()
	}
	return &Worker{
		opts: opts,
		log:  opts.Logger.With("component", "worker", "rank", opts.Identity.Rank),
	}
}

// Prepare merges and injects the configuration for this worker.
func (w *Worker) Prepare() (*config.TrainConfig, domain.DeviceBinding, error) {
	base := w.opts.Config
	rule, err := domain.ParseSyncRule(base.SyncRule)
	if err != nil {
		return nil, domain.DeviceBinding{}, err
	}
	dev, err := domain.ParseDevice(base.Device)
	if err != nil {
		return nil, domain.DeviceBinding{}, err
	}

	cfg := *base
	config.Inject(&cfg, w.opts.Identity, rule, dev)

	merged, ok, err := config.MergeModel(&cfg)
	if err != nil {
		return nil, dev, err
	}
	if ok {
		w.log.Debug("merged model config", "model", merged.Name, "dir", merged.ModelDir)
	}
	return merged, dev, nil
}

// Start runs the worker start sequence against the coordinator at
// coordAddr. Any failure is fatal; nothing is retried.
func (w *Worker) Start(ctx context.Context, coordAddr string) (*Session, error) {
	cfg, dev, err := w.Prepare()
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       ulid.Make().String(),
		WorkerID: cfg.WorkerID,
		Config:   cfg,
		logger:   w.log.With("worker_id", cfg.WorkerID),
	}
	s.logger.Info("worker starting", "device", dev.Name, "sock_data", cfg.SockData, "verbose", cfg.Verbose)

	fail := func(err error) (*Session, error) {
		_ = s.Close(context.Background())
		return nil, err
	}

	// Configuration errors surface before the join so the coordinator never
	// registers a worker that cannot start.
	if w.opts.Manifest != nil {
		ds, err := w.opts.Manifest.Load(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}
		s.Dataset = ds
		s.logger.Info("dataset loaded", "train_files", len(ds.TrainFiles), "val_files", len(ds.ValFiles))
	}

	m, err := w.opts.Builder.Build(cfg)
	if err != nil {
		return nil, err
	}
	s.Model = m
	if err := m.Compile(cfg); err != nil {
		return fail(fmt.Errorf("compile %s: %w", m.Name(), err))
	}

	ic, err := w.join(ctx, coordAddr, cfg.WorkerID)
	if err != nil {
		return fail(err)
	}
	s.Channel = ic

	if cfg.ParaLoad {
		if err := w.handoff(ctx, s, dev); err != nil {
			return fail(err)
		}
	}
	return s, nil
}

func (w *Worker) join(ctx context.Context, coordAddr, workerID string) (*channel.Intercomm, error) {
	cli, err := rendezvous.Dial(ctx, coordAddr)
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	addr, err := cli.Address(ctx)
	if err != nil {
		return nil, err
	}
	ic, err := cli.Connect(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("join coordinator %s: %w", addr, err)
	}
	w.log.Info("joined coordinator", "address", addr, "session_id", ic.Session())
	return ic, nil
}

// hostname is the placement host reported when spawning a loader.
func hostname() string {
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	h, _ := os.Hostname()
	return h
}
