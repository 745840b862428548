package rendezvous

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/telemetry/logger"
	"github.com/yndnr/trainmesh-go/internal/telemetry/metric"
	"github.com/yndnr/trainmesh-go/internal/transport/wire"
)

// joinHandler accepts joins on loopback and records the channels.
type joinHandler struct {
	addr string

	mu     sync.Mutex
	joined map[string]*channel.Intercomm
}

func (h *joinHandler) Address() string { return h.addr }

func (h *joinHandler) Connect(ctx context.Context, workerID string, offer OfferFunc) error {
	h.mu.Lock()
	_, dup := h.joined[workerID]
	h.mu.Unlock()
	if dup {
		return domain.ErrDuplicateWorker.Detailf("%q", workerID)
	}

	acc, err := channel.Open("127.0.0.1")
	if err != nil {
		return err
	}
	if err := offer(acc.Offer()); err != nil {
		acc.Close()
		return err
	}
	ic, err := acc.Accept(ctx, workerID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.joined[workerID] = ic
	h.mu.Unlock()
	return nil
}

func (h *joinHandler) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ic := range h.joined {
		ic.Disconnect()
	}
}

func startServer(t *testing.T) (*Server, *joinHandler, *metric.Registry) {
	t.Helper()

	h := &joinHandler{joined: make(map[string]*channel.Intercomm)}
	m := metric.NewRegistry()
	srv := New(Config{Address: "127.0.0.1:0", ReadTimeout: 2 * time.Second}, h, logger.Nop().Slog(), m)
	require.NoError(t, srv.Listen())
	h.addr = srv.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		h.close()
	})
	return srv, h, m
}

func TestAddress_Idempotent(t *testing.T) {
	srv, _, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cli, err := Dial(ctx, srv.Addr().String())
	require.NoError(t, err)
	defer cli.Close()

	first, err := cli.Address(ctx)
	require.NoError(t, err)
	require.Equal(t, srv.Addr().String(), first)

	for i := 0; i < 3; i++ {
		again, err := cli.Address(ctx)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestConnect_Joins(t *testing.T) {
	srv, h, m := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cli, err := Dial(ctx, srv.Addr().String())
	require.NoError(t, err)

	_, err = cli.Address(ctx)
	require.NoError(t, err)

	ic, err := cli.Connect(ctx, "3")
	require.NoError(t, err)
	defer ic.Disconnect()

	h.mu.Lock()
	require.Len(t, h.joined, 1)
	require.Contains(t, h.joined, "3")
	h.mu.Unlock()

	// The rendezvous connection is closed once connected.
	_, err = cli.Address(ctx)
	require.ErrorIs(t, err, domain.ErrChannelClosed)

	require.Equal(t, 1.0, testutilCount(m, "connect"))
	require.Equal(t, 1.0, testutilCount(m, "address"))
}

func TestConnect_DuplicateRejected(t *testing.T) {
	srv, h, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := Dial(ctx, srv.Addr().String())
	require.NoError(t, err)
	ic, err := first.Connect(ctx, "1")
	require.NoError(t, err)
	defer ic.Disconnect()

	second, err := Dial(ctx, srv.Addr().String())
	require.NoError(t, err)
	defer second.Close()
	_, err = second.Connect(ctx, "1")
	require.ErrorIs(t, err, domain.ErrDuplicateWorker)

	h.mu.Lock()
	require.Len(t, h.joined, 1)
	require.Equal(t, ic.Session(), h.joined["1"].Session())
	h.mu.Unlock()
}

func TestUnsupportedRequest_KeepsConnection(t *testing.T) {
	srv, _, m := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cli, err := Dial(ctx, srv.Addr().String())
	require.NoError(t, err)
	defer cli.Close()

	_, err = cli.Request(ctx, "shutdown")
	require.ErrorIs(t, err, domain.ErrUnsupportedRequest)
	require.False(t, errors.Is(err, domain.ErrDuplicateWorker))

	addr, err := cli.Address(ctx)
	require.NoError(t, err)
	require.Equal(t, srv.Addr().String(), addr)
	require.Equal(t, 1.0, testutilCount(m, "unsupported"))
}

func TestConnect_MissingWorkerID(t *testing.T) {
	srv, _, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cli, err := Dial(ctx, srv.Addr().String())
	require.NoError(t, err)
	defer cli.Close()

	require.NoError(t, cli.conn.SendJSON(wire.TagRequest, Request{Kind: KindConnect}))
	_, err = cli.reply(ctx)
	require.ErrorIs(t, err, domain.ErrMissingWorkerID)
}

func TestServer_ShutdownStopsServe(t *testing.T) {
	h := &joinHandler{joined: make(map[string]*channel.Intercomm)}
	srv := New(Config{Address: "127.0.0.1:0"}, h, nil, nil)
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	require.NoError(t, srv.Shutdown())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
	require.NoError(t, srv.Shutdown())
}

func testutilCount(m *metric.Registry, kind string) float64 {
	return testutil.ToFloat64(m.RequestsTotal.WithLabelValues(kind))
}
