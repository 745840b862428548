package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/telemetry/metric"
	"github.com/yndnr/trainmesh-go/internal/transport/wire"
)

// OfferFunc sends a join offer to the worker being served.
type OfferFunc func(channel.Offer) error

// Handler serves the request kinds. The coordinator implements it.
type Handler interface {
	// Address returns the coordinator's reachable address.
	Address() string
	// Connect joins and registers workerID. It must call offer exactly once
	// before waiting for the worker, or return an error without calling it.
	Connect(ctx context.Context, workerID string, offer OfferFunc) error
}

// Config holds the rendezvous listener configuration.
type Config struct {
	// Address is the listen address, e.g. "0.0.0.0:5555".
	Address string
	// ReadTimeout bounds the wait for the next request on a connection.
	ReadTimeout time.Duration
	// JoinTimeout bounds one connect request from offer to registration.
	JoinTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Address:     "0.0.0.0:5555",
		ReadTimeout: 30 * time.Second,
		JoinTimeout: 60 * time.Second,
	}
}

// Server accepts rendezvous connections and serves them sequentially, so
// the handler never sees two connections at once.
type Server struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger
	metrics *metric.Registry

	ln      net.Listener
	running atomic.Bool
}

// New creates a server. metrics may be nil.
func New(cfg Config, h Handler, logger *slog.Logger, metrics *metric.Registry) *Server {
	def := DefaultConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = def.JoinTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		handler: h,
		logger:  logger.With("component", "rendezvous"),
		metrics: metrics,
	}
}

// Listen binds the rendezvous port.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("rendezvous listen %s: %w", s.cfg.Address, err)
	}
	s.ln = ln
	s.running.Store(true)
	s.logger.Info("rendezvous listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve runs the accept loop until ctx is done or Shutdown is called.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Shutdown() })
	defer stop()

	for {
		c, err := s.ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		s.serveConn(ctx, channel.NewConn(c))
	}
}

// Shutdown closes the listener; the connection in progress finishes.
func (s *Server) Shutdown() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) serveConn(ctx context.Context, c *channel.Conn) {
	defer c.Close()
	log := s.logger.With("remote", c.RemoteAddr().String())

	for {
		var req Request
		rctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		err := c.RecvJSON(rctx, wire.TagRequest, &req)
		cancel()
		if err != nil {
			if !errors.Is(err, domain.ErrChannelClosed) {
				log.Debug("rendezvous read ended", "error", err)
			}
			return
		}

		s.metrics.RecordRequest(metricKind(req.Kind))

		switch req.Kind {
		case KindAddress:
			if err := c.SendJSON(wire.TagReply, Reply{Status: StatusOK, Address: s.handler.Address()}); err != nil {
				return
			}

		case KindConnect:
			if req.WorkerID == "" {
				if err := c.SendJSON(wire.TagReply, errorReply(domain.ErrMissingWorkerID)); err != nil {
					return
				}
				continue
			}
			if s.connect(ctx, c, req.WorkerID, log) {
				return
			}

		default:
			log.Warn("unsupported rendezvous request", "kind", req.Kind)
			if err := c.SendJSON(wire.TagReply, errorReply(domain.ErrUnsupportedRequest.Detailf("%q", req.Kind))); err != nil {
				return
			}
		}
	}
}

// connect serves one connect request and reports whether the connection
// is finished.
func (s *Server) connect(ctx context.Context, c *channel.Conn, workerID string, log *slog.Logger) bool {
	jctx, cancel := context.WithTimeout(ctx, s.cfg.JoinTimeout)
	defer cancel()

	offer := func(o channel.Offer) error {
		return c.SendJSON(wire.TagReply, Reply{Status: StatusOffer, Offer: &o})
	}

	if err := s.handler.Connect(jctx, workerID, offer); err != nil {
		log.Warn("connect failed", "worker_id", workerID, "error", err)
		return c.SendJSON(wire.TagReply, errorReply(err)) != nil
	}

	if err := c.SendJSON(wire.TagReply, Reply{Status: StatusConnected}); err != nil {
		log.Warn("send connected", "worker_id", workerID, "error", err)
	}
	return true
}
