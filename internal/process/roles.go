package process

import (
	"context"
	"fmt"
	"sync"

	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/coordinator"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/group"
	"github.com/yndnr/trainmesh-go/internal/worker"
)

// CoordinatorRole serves worker joins and publishes its address to the group.
type CoordinatorRole struct {
	coord *coordinator.Coordinator
}

// NewCoordinatorRole builds the coordinator from cfg.
func NewCoordinatorRole(cfg *config.TrainConfig, opts Options) *CoordinatorRole {
	return &CoordinatorRole{
		coord: coordinator.New(coordinator.Config{
			BindAddr:    cfg.Rendezvous.BindAddr,
			Port:        cfg.Port,
			Advertise:   cfg.Rendezvous.Advertise,
			ReadTimeout: cfg.Rendezvous.ReadTimeout,
			JoinTimeout: cfg.Rendezvous.JoinTimeout,
		}, opts.Logger, opts.Metrics),
	}
}

func (r *CoordinatorRole) Name() string { return "coordinator" }

// Coordinator returns the underlying coordinator.
func (r *CoordinatorRole) Coordinator() *coordinator.Coordinator { return r.coord }

// Run listens, broadcasts the rendezvous address from rank 0, then serves
// joins until ctx is done.
func (r *CoordinatorRole) Run(ctx context.Context, g group.Group, ready func()) error {
	if err := r.coord.Start(); err != nil {
		return err
	}
	if _, err := g.Broadcast(ctx, []byte(r.coord.Address()), CoordinatorRank); err != nil {
		return fmt.Errorf("broadcast coordinator address: %w", err)
	}
	ready()
	return r.coord.Serve(ctx)
}

func (r *CoordinatorRole) Close(context.Context) error {
	return r.coord.Close()
}

// WorkerRole receives the coordinator address and runs the worker start
// sequence. Training itself happens outside this package; Run holds the
// session until ctx is done.
type WorkerRole struct {
	w *worker.Worker

	mu      sync.Mutex
	session *worker.Session
}

// NewWorkerRole builds the worker for identity id.
func NewWorkerRole(cfg *config.TrainConfig, id domain.Identity, opts Options) *WorkerRole {
	return &WorkerRole{
		w: worker.New(worker.Options{
			Config:   cfg,
			Identity: id,
			Builder:  opts.Builder,
			Manifest: opts.Manifest,
			Spawner:  opts.Spawner,
			Logger:   opts.Logger,
			Metrics:  opts.Metrics,
		}),
	}
}

func (r *WorkerRole) Name() string { return "worker" }

// Session returns the running session, or nil before start.
func (r *WorkerRole) Session() *worker.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *WorkerRole) Run(ctx context.Context, g group.Group, ready func()) error {
	addr, err := g.Broadcast(ctx, nil, CoordinatorRank)
	if err != nil {
		return fmt.Errorf("receive coordinator address: %w", err)
	}
	if len(addr) == 0 {
		return domain.ErrGroupIncomplete.WithDetails("empty coordinator address")
	}

	s, err := r.w.Start(ctx, string(addr))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.session = s
	r.mu.Unlock()
	ready()

	<-ctx.Done()
	return nil
}

// Close stops the loader and leaves the coordinator.
func (r *WorkerRole) Close(ctx context.Context) error {
	s := r.Session()
	if s == nil {
		return nil
	}
	return s.Close(ctx)
}
