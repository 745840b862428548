package worker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"

	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/loader"
	"github.com/yndnr/trainmesh-go/internal/storage"
	"github.com/yndnr/trainmesh-go/internal/transport/wire"
)

// handoff spawns the loader and runs the initialization chain
// config -> handle -> aux -> ready. On any failure the loader is torn down.
func (w *Worker) handoff(ctx context.Context, s *Session, dev domain.DeviceBinding) (err error) {
	cfg := s.Config
	node := dev.NUMANode()
	log := s.logger.With("placement", fmt.Sprintf("rank%d:numa%d", cfg.Rank, node))

	if w.opts.Spawner == nil {
		return domain.ErrSpawnFailed.WithDetails("no spawner configured")
	}

	ctrl, err := listenControl(cfg.Loader.CtrlDir, cfg.WorkerID)
	if err != nil {
		if domain.IsDomainError(err, "") {
			return err
		}
		return domain.ErrSpawnFailed.WithCause(err)
	}
	defer ctrl.Close()

	req := SpawnRequest{
		CtrlPath: ctrl.path,
		Rank:     cfg.Rank,
		Device:   dev.Name,
		Host:     hostname(),
		NUMANode: node,
		NUMA:     cfg.Loader.NUMA,
	}
	proc, err := w.opts.Spawner.Spawn(ctx, req)
	if err != nil {
		return domain.ErrSpawnFailed.WithCause(err).Detailf("device %s", dev.Name)
	}
	s.loader = proc
	w.opts.Metrics.RecordSpawn(strconv.Itoa(node))
	log.Info("loader spawned", "loader", proc.String(), "host", req.Host)

	defer func() {
		if err != nil {
			log.Error("loader handoff failed, tearing down", "error", err)
			s.teardownLoader()
		}
	}()

	rctx, cancel := context.WithTimeout(ctx, orDefault(cfg.Loader.ReadyTimeout, config.DefaultReadyTimeout))
	defer cancel()

	conn, err := ctrl.accept(rctx)
	if err != nil {
		return domain.ErrSpawnFailed.WithCause(err).WithDetails("loader never connected")
	}
	s.loaderCh = conn

	// 1. configuration
	st, err := config.ToStruct(cfg)
	if err != nil {
		return err
	}
	payload, err := proto.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := conn.Send(wire.TagConfig, payload); err != nil {
		return fmt.Errorf("send config: %w", err)
	}
	w.opts.Metrics.RecordHandoffStep("send_config")

	if w.beforeHandle != nil {
		w.beforeHandle()
	}

	// 2. memory handle over the data socket
	h, err := s.Model.SharedX().Export()
	if err != nil {
		return err
	}
	if err := sendHandle(rctx, cfg, h); err != nil {
		return err
	}
	w.opts.Metrics.RecordHandoffStep("send_handle")
	log.Debug("memory handle sent", "shared_x", h.String(), "size", humanize.IBytes(uint64(h.Bytes())))

	// 3. auxiliary data
	var mean storage.Mean
	if s.Dataset != nil {
		mean = s.Dataset.Mean
	}
	aux, err := loader.EncodeMean(mean)
	if err != nil {
		return err
	}
	if err := conn.Send(wire.TagAux, aux); err != nil {
		return fmt.Errorf("send aux: %w", err)
	}
	w.opts.Metrics.RecordHandoffStep("send_aux")

	// 4. ready
	if _, err := conn.Recv(rctx, wire.TagReady); err != nil {
		return fmt.Errorf("wait for loader ready: %w", err)
	}
	w.opts.Metrics.RecordHandoffStep("loader_ready")
	log.Info("loader ready")
	return nil
}

// sendHandle dials the loader's data socket at the configured rate until it
// answers, then writes the handle.
func sendHandle(ctx context.Context, cfg *config.TrainConfig, h domain.MemoryHandle) error {
	addr := net.JoinHostPort(loader.DataHost, strconv.Itoa(cfg.SockData))

	dctx, cancel := context.WithTimeout(ctx, orDefault(cfg.Loader.DialTimeout, config.DefaultDialTimeout))
	defer cancel()

	every := rate.Inf
	if cfg.Loader.DialRate > 0 {
		every = rate.Limit(cfg.Loader.DialRate)
	}
	lim := rate.NewLimiter(every, 1)

	var (
		d    net.Dialer
		c    net.Conn
		last error
	)
	for {
		if err := lim.Wait(dctx); err != nil {
			if last == nil {
				last = err
			}
			return fmt.Errorf("dial data socket %s: %w", addr, last)
		}
		var err error
		c, err = d.DialContext(dctx, "tcp", addr)
		if err == nil {
			break
		}
		last = err
		if every == rate.Inf {
			time.Sleep(10 * time.Millisecond)
		}
	}

	data := channel.NewConn(c)
	defer data.Close()
	if err := data.SendJSON(wire.TagData, h); err != nil {
		return fmt.Errorf("send handle: %w", err)
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
