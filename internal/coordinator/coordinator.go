package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/rendezvous"
	"github.com/yndnr/trainmesh-go/internal/telemetry/metric"
)

// Config holds the coordinator configuration.
type Config struct {
	// BindAddr is the host the rendezvous and join listeners bind.
	BindAddr string
	// Port is the rendezvous port; 0 picks a free port.
	Port int
	// Advertise is the host workers reach the coordinator on. Empty means
	// the bind host, or the first non-loopback address when binding all
	// interfaces.
	Advertise string

	ReadTimeout time.Duration
	JoinTimeout time.Duration

	// OnState, when set, observes every state transition of a connect.
	OnState func(workerID string, s State)
}

// Coordinator serves worker joins.
type Coordinator struct {
	cfg      Config
	registry *Registry
	server   *rendezvous.Server
	logger   *slog.Logger
	metrics  *metric.Registry

	address string
}

// New creates a coordinator. metrics may be nil.
func New(cfg Config, logger *slog.Logger, metrics *metric.Registry) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   logger.With("component", "coordinator"),
		metrics:  metrics,
	}
	c.server = rendezvous.New(rendezvous.Config{
		Address:     net.JoinHostPort(cfg.BindAddr, strconv.Itoa(cfg.Port)),
		ReadTimeout: cfg.ReadTimeout,
		JoinTimeout: cfg.JoinTimeout,
	}, c, logger, metrics)
	return c
}

// Start binds the rendezvous socket and fixes the advertised address.
func (c *Coordinator) Start() error {
	if err := c.server.Listen(); err != nil {
		return err
	}
	port := c.server.Addr().(*net.TCPAddr).Port
	c.address = net.JoinHostPort(advertiseHost(c.cfg.Advertise, c.cfg.BindAddr), strconv.Itoa(port))
	if err := c.metrics.WatchWorkers(c.registry); err != nil {
		c.logger.Warn("register worker gauge", "error", err)
	}
	c.logger.Info("coordinator started", "address", c.address)
	return nil
}

// Serve runs the serve loop until ctx is done.
func (c *Coordinator) Serve(ctx context.Context) error {
	if c.address == "" {
		if err := c.Start(); err != nil {
			return err
		}
	}
	return c.server.Serve(ctx)
}

// Address implements rendezvous.Handler. It is fixed by Start.
func (c *Coordinator) Address() string {
	return c.address
}

// Registry returns the channel registry.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Connect implements rendezvous.Handler: it joins workerID over a private
// channel and registers it.
func (c *Coordinator) Connect(ctx context.Context, workerID string, offer rendezvous.OfferFunc) error {
	start := time.Now()
	log := c.logger.With("worker_id", workerID)

	if c.registry.Has(workerID) {
		c.metrics.RecordJoin(metric.JoinDuplicate, 0)
		return domain.ErrDuplicateWorker.Detailf("worker %q", workerID)
	}

	acc, err := channel.Open(c.joinHost())
	if err != nil {
		c.metrics.RecordJoin(metric.JoinFailed, 0)
		return err
	}
	acc.OnAccepted(func() { c.transition(log, workerID, StateAccepted) })
	c.transition(log, workerID, StateListening)

	if err := offer(acc.Offer()); err != nil {
		acc.Close()
		c.metrics.RecordJoin(metric.JoinFailed, 0)
		return fmt.Errorf("send join offer: %w", err)
	}

	ic, err := acc.Accept(ctx, workerID)
	if err != nil {
		c.metrics.RecordJoin(metric.JoinFailed, 0)
		return err
	}
	c.transition(log, workerID, StateJoined)

	if err := c.registry.add(workerID, ic); err != nil {
		ic.Disconnect()
		c.metrics.RecordJoin(metric.JoinDuplicate, 0)
		return err
	}
	c.transition(log, workerID, StateRegistered)
	c.metrics.RecordJoin(metric.JoinOK, time.Since(start).Seconds())

	log.Info("worker registered", "session_id", ic.Session(), "workers", c.registry.Len())
	return nil
}

func (c *Coordinator) transition(log *slog.Logger, workerID string, s State) {
	log.Debug("join state", "state", s.String())
	if c.cfg.OnState != nil {
		c.cfg.OnState(workerID, s)
	}
}

// joinHost is where per-worker join listeners bind.
func (c *Coordinator) joinHost() string {
	if c.cfg.BindAddr == "" {
		return "0.0.0.0"
	}
	return c.cfg.BindAddr
}

// Close stops the serve loop and disconnects every registered worker.
func (c *Coordinator) Close() error {
	err := c.server.Shutdown()
	if rerr := c.registry.Close(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// advertiseHost picks the host workers dial.
func advertiseHost(advertise, bind string) string {
	if advertise != "" {
		return advertise
	}
	if bind != "" {
		if ip := net.ParseIP(bind); ip == nil || !ip.IsUnspecified() {
			return bind
		}
	}
	if ip := firstNonLoopback(); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

func firstNonLoopback() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() || ipn.IP.IsLinkLocalUnicast() {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
