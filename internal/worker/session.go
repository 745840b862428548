package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/loader"
	"github.com/yndnr/trainmesh-go/internal/model"
	"github.com/yndnr/trainmesh-go/internal/storage"
	"github.com/yndnr/trainmesh-go/internal/transport/wire"
)

// stopWait bounds how long a stopped loader gets to exit before it is killed.
const stopWait = 10 * time.Second

// Session is the state of a running worker. Loader fields are only set with
// para_load.
type Session struct {
	ID       string
	WorkerID string
	Config   *config.TrainConfig
	Channel  *channel.Intercomm
	Model    model.Model
	Dataset  *storage.Dataset

	loader   Process
	loaderCh *channel.Conn
	logger   *slog.Logger

	// mu serialises batch requests against stop.
	mu      sync.Mutex
	stopped bool
	closed  bool
}

// Loader returns the loader process, or nil without para_load.
func (s *Session) Loader() Process { return s.loader }

// LoaderChannel returns the loader control channel, or nil.
func (s *Session) LoaderChannel() *channel.Conn { return s.loaderCh }

// LoadBatch asks the loader to copy file into the model's input buffer and
// waits for copy_finished. The buffer must not be read while it runs.
func (s *Session) LoadBatch(ctx context.Context, mode, file string) error {
	if mode != loader.ModeTrain && mode != loader.ModeVal {
		return domain.ErrHandshake.Detailf("batch mode %q", mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return domain.ErrLoaderStopped
	}
	if s.loaderCh == nil {
		return domain.ErrHandshake.WithDetails("no loader: para_load is off")
	}

	if err := s.loaderCh.Send(wire.TagControl, []byte(mode)); err != nil {
		return fmt.Errorf("send batch mode: %w", err)
	}
	if err := s.loaderCh.Send(wire.TagFilename, []byte(file)); err != nil {
		return fmt.Errorf("send batch filename: %w", err)
	}
	if _, err := s.loaderCh.Recv(ctx, wire.TagCopyFinished); err != nil {
		return fmt.Errorf("wait copy_finished: %w", err)
	}
	return nil
}

// StopLoader sends stop, disconnects the loader channel and waits for the
// loader to exit. Later batch requests fail with ErrLoaderStopped.
func (s *Session) StopLoader(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.loaderCh == nil {
		s.stopped = true
		return nil
	}
	s.stopped = true

	var errs []error
	if err := s.loaderCh.Send(wire.TagControl, []byte(loader.Stop)); err != nil {
		errs = append(errs, fmt.Errorf("send stop: %w", err))
	}
	if err := s.loaderCh.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.waitLoader(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) waitLoader(ctx context.Context) error {
	if s.loader == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- s.loader.Wait() }()

	timer := time.NewTimer(stopWait)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
	case <-ctx.Done():
	}
	s.logger.Warn("loader did not exit, killing", "loader", s.loader.String())
	_ = s.loader.Kill()
	<-done
	return nil
}

// teardownLoader kills the loader after a failed handoff.
func (s *Session) teardownLoader() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.loaderCh != nil {
		s.loaderCh.Close()
	}
	if s.loader != nil {
		_ = s.loader.Kill()
		_ = s.loader.Wait()
	}
}

// Close stops the loader, disconnects from the coordinator and releases
// the model.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if err := s.StopLoader(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.Channel != nil {
		if err := s.Channel.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Model != nil {
		if err := s.Model.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("worker session closed")
	return errors.Join(errs...)
}
