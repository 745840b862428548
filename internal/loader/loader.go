package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/device"
	"github.com/yndnr/trainmesh-go/internal/model"
	"github.com/yndnr/trainmesh-go/internal/storage"
	"github.com/yndnr/trainmesh-go/internal/telemetry/metric"
	"github.com/yndnr/trainmesh-go/internal/transport/wire"
)

// Control messages sent with wire.TagControl.
const (
	ModeTrain = "train"
	ModeVal   = "val"
	Stop      = "stop"
)

// DataHost is where the loader listens for the memory handle.
const DataHost = "127.0.0.1"

// Event marks a step of the loader's life, in the order they happen.
type Event string

const (
	EventConfig Event = "config"
	EventHandle Event = "handle"
	EventAux    Event = "aux"
	EventReady  Event = "ready"
	EventBatch  Event = "batch"
	EventStop   Event = "stop"
)

// Options configures a Loader.
type Options struct {
	Prefetcher Prefetcher
	Catalog    *model.Catalog
	Logger     *slog.Logger
	Metrics    *metric.Registry
	// Observer, when set, sees every Event as it happens.
	Observer func(Event)
}

// Loader serves one worker.
type Loader struct {
	ctrl *channel.Conn
	opts Options

	mu     sync.Mutex
	cfg    *config.TrainConfig
	buf    *device.Buffer
	mean   storage.Mean
	layout model.Layout

	handleTaken atomic.Bool
	stopped     atomic.Bool
}

// New creates a loader on the control channel ctrl.
func New(ctrl *channel.Conn, opts Options) *Loader {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Catalog == nil {
		opts.Catalog = model.NewCatalog()
	}
	if opts.Prefetcher == nil {
		opts.Prefetcher = FilePrefetcher{}
	}
	return &Loader{
		ctrl: ctrl,
		opts: opts,
	}
}

// Dial connects to the worker's control socket at path.
func Dial(ctx context.Context, path string, opts Options) (*Loader, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial control socket: %w", err)
	}
	return New(channel.NewConn(c), opts), nil
}

// Config returns the configuration received from the worker, or nil.
func (l *Loader) Config() *config.TrainConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Run performs the handoff and then serves batch requests until the worker
// sends stop. It returns nil after stop.
func (l *Loader) Run(ctx context.Context) error {
	if l.stopped.Load() {
		return domain.ErrLoaderStopped
	}
	defer l.release()

	if err := l.init(ctx); err != nil {
		return err
	}
	for {
		done, err := l.next(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (l *Loader) init(ctx context.Context) error {
	payload, err := l.ctrl.Recv(ctx, wire.TagConfig)
	if err != nil {
		return fmt.Errorf("receive config: %w", err)
	}
	var st structpb.Struct
	if err := proto.Unmarshal(payload, &st); err != nil {
		return domain.ErrHandshake.WithCause(err).WithDetails("config payload")
	}
	cfg, err := config.FromStruct(&st)
	if err != nil {
		return err
	}
	spec, err := l.opts.Catalog.Lookup(cfg.Name)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.cfg, l.layout = cfg, spec.Layout
	l.mu.Unlock()
	l.step(EventConfig)

	log := l.opts.Logger.With("rank", cfg.Rank, "device", cfg.Device)

	h, err := l.ReceiveHandle(ctx, net.JoinHostPort(DataHost, strconv.Itoa(cfg.SockData)))
	if err != nil {
		return err
	}
	buf, err := device.Open(h)
	if err != nil {
		return fmt.Errorf("open shared buffer: %w", err)
	}
	l.mu.Lock()
	l.buf = buf
	l.mu.Unlock()
	l.step(EventHandle)

	payload, err = l.ctrl.Recv(ctx, wire.TagAux)
	if err != nil {
		return fmt.Errorf("receive aux: %w", err)
	}
	mean, err := DecodeMean(payload)
	if err != nil {
		return err
	}
	l.mean = mean
	l.step(EventAux)

	// Steps are recorded before the reply goes out: once the worker sees
	// ready, the step has happened.
	l.step(EventReady)
	if err := l.ctrl.Send(wire.TagReady, nil); err != nil {
		return fmt.Errorf("send ready: %w", err)
	}

	log.Info("loader ready", "buffer", buf.String())
	return nil
}

// ReceiveHandle listens on addr for the worker's data socket and reads the
// memory handle. A loader takes exactly one handle.
func (l *Loader) ReceiveHandle(ctx context.Context, addr string) (domain.MemoryHandle, error) {
	var h domain.MemoryHandle
	if !l.handleTaken.CompareAndSwap(false, true) {
		return h, domain.ErrHandleConsumed
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return h, fmt.Errorf("listen data socket: %w", err)
	}
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	c, err := ln.Accept()
	stop()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return h, ctxErr
		}
		return h, fmt.Errorf("accept data socket: %w", err)
	}

	data := channel.NewConn(c)
	defer data.Close()
	if err := data.RecvJSON(ctx, wire.TagData, &h); err != nil {
		return h, fmt.Errorf("receive handle: %w", err)
	}
	if err := h.Validate(); err != nil {
		return h, err
	}
	return h, nil
}

// next serves one control message and reports whether the loader stopped.
func (l *Loader) next(ctx context.Context) (bool, error) {
	if l.stopped.Load() {
		return true, domain.ErrLoaderStopped
	}

	msg, err := l.ctrl.Recv(ctx, wire.TagControl)
	if err != nil {
		if errors.Is(err, domain.ErrChannelClosed) {
			return true, domain.ErrChannelClosed.WithCause(err).WithDetails("worker left without stop")
		}
		return true, err
	}

	switch mode := string(msg); mode {
	case Stop:
		l.stopped.Store(true)
		l.step(EventStop)
		l.opts.Logger.Debug("loader stopped")
		return true, nil

	case ModeTrain, ModeVal:
		file, err := l.ctrl.Recv(ctx, wire.TagFilename)
		if err != nil {
			return true, fmt.Errorf("receive filename: %w", err)
		}
		if err := l.fill(ctx, mode, string(file)); err != nil {
			return true, err
		}
		l.opts.Metrics.RecordBatch(mode)
		l.step(EventBatch)
		if err := l.ctrl.Send(wire.TagCopyFinished, nil); err != nil {
			return true, fmt.Errorf("send copy_finished: %w", err)
		}
		return false, nil

	default:
		return true, domain.ErrHandshake.Detailf("unexpected control message %q", mode)
	}
}

func (l *Loader) fill(ctx context.Context, mode, file string) error {
	if err := l.opts.Prefetcher.Fill(ctx, mode, file, l.buf); err != nil {
		return err
	}
	return MeanSubtract(l.buf, l.mean, l.layout)
}

// Stopped reports whether the worker's stop was observed.
func (l *Loader) Stopped() bool {
	return l.stopped.Load()
}

func (l *Loader) step(e Event) {
	if e != EventBatch {
		l.opts.Metrics.RecordHandoffStep(string(e))
	}
	if l.opts.Observer != nil {
		l.opts.Observer(e)
	}
}

func (l *Loader) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf != nil {
		if err := l.buf.Close(); err != nil {
			l.opts.Logger.Warn("unmap shared buffer", "error", err)
		}
		l.buf = nil
	}
	l.ctrl.Close()
}
