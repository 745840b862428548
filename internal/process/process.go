package process

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/group"
	"github.com/yndnr/trainmesh-go/internal/model"
	"github.com/yndnr/trainmesh-go/internal/storage"
	"github.com/yndnr/trainmesh-go/internal/telemetry/metric"
	"github.com/yndnr/trainmesh-go/internal/worker"
)

// CoordinatorRank is the rank that publishes the rendezvous address.
const CoordinatorRank = 0

// Role is a coordination strategy. Run calls ready once the role is usable
// and then blocks until ctx is done or the role fails.
type Role interface {
	Name() string
	Run(ctx context.Context, g group.Group, ready func()) error
	Close(ctx context.Context) error
}

// Options carries the collaborators the roles are built with.
type Options struct {
	Logger  *slog.Logger
	Metrics *metric.Registry

	// Worker collaborators; ignored by the coordinator.
	Builder  model.Builder
	Manifest storage.Manifest
	Spawner  worker.Spawner
}

// Process is one rank of the group.
type Process struct {
	id    domain.Identity
	cfg   *config.TrainConfig
	group group.Group
	role  Role
	log   *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// New resolves the role of g's rank from cfg.Role and builds it.
func New(cfg *config.TrainConfig, g group.Group, opts Options) (*Process, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	kind, err := domain.ParseRole(cfg.Role, g.Rank())
	if err != nil {
		return nil, err
	}
	id, err := domain.NewIdentity(g.Rank(), g.Size(), kind)
	if err != nil {
		return nil, err
	}
	if (kind == domain.RoleCoordinator) != (id.Rank == CoordinatorRank) {
		return nil, domain.ErrInvalidRank.Detailf("%s on rank %d: rank %d coordinates", kind, id.Rank, CoordinatorRank)
	}

	p := &Process{
		id:    id,
		cfg:   cfg,
		group: g,
		log:   opts.Logger.With("identity", id.String()),
		ready: make(chan struct{}),
	}
	switch kind {
	case domain.RoleCoordinator:
		p.role = NewCoordinatorRole(cfg, opts)
	default:
		p.role = NewWorkerRole(cfg, id, opts)
	}
	return p, nil
}

// Identity returns this process's rank, size and role.
func (p *Process) Identity() domain.Identity { return p.id }

// Role returns the role strategy.
func (p *Process) Role() Role { return p.role }

// Ready is closed once the role has started.
func (p *Process) Ready() <-chan struct{} { return p.ready }

// Run waits for the full group and runs the role until ctx is done.
func (p *Process) Run(ctx context.Context) error {
	p.log.Info("process starting", "role", p.role.Name(), "size", p.id.Size)

	wctx, cancel := context.WithTimeout(ctx, orDefault(p.cfg.Group.WaitTimeout))
	err := p.group.Wait(wctx)
	cancel()
	if err != nil {
		return fmt.Errorf("wait for group: %w", err)
	}

	return p.role.Run(ctx, p.group, p.markReady)
}

// Close shuts the role down.
func (p *Process) Close(ctx context.Context) error {
	err := p.role.Close(ctx)
	p.log.Info("process stopped", "role", p.role.Name())
	return err
}

func (p *Process) markReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return config.DefaultWaitTimeout
	}
	return d
}
