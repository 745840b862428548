package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/transport/wire"
)

// maxPending bounds frames buffered while waiting for another tag.
const maxPending = 64

// Conn is a tagged, ordered, two-party message channel over a stream socket.
// Recv(tag) returns the next frame with that tag; frames with other tags
// that arrive first are kept for later Recv calls.
//
// One goroutine may Send while another Recv's.
type Conn struct {
	conn     net.Conn
	maxFrame int

	sendMu sync.Mutex
	recvMu sync.Mutex
	// pending is guarded by recvMu.
	pending map[wire.Tag][][]byte

	closed atomic.Bool
}

// NewConn wraps a connected socket.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn:     conn,
		maxFrame: wire.DefaultMaxFrame,
		pending:  make(map[wire.Tag][][]byte),
	}
}

// Send writes one frame.
func (c *Conn) Send(tag wire.Tag, payload []byte) error {
	if c.closed.Load() {
		return domain.ErrChannelClosed.Detailf("send %s", tag)
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := wire.WriteFrame(c.conn, tag, payload); err != nil {
		return c.wrap(err)
	}
	return nil
}

// SendJSON writes v as a JSON frame.
func (c *Conn) SendJSON(tag wire.Tag, v any) error {
	if c.closed.Load() {
		return domain.ErrChannelClosed.Detailf("send %s", tag)
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := wire.WriteJSON(c.conn, tag, v); err != nil {
		return c.wrap(err)
	}
	return nil
}

// Recv blocks for the next frame tagged tag, honouring ctx cancellation.
func (c *Conn) Recv(ctx context.Context, tag wire.Tag) ([]byte, error) {
	if c.closed.Load() {
		return nil, domain.ErrChannelClosed.Detailf("recv %s", tag)
	}

	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	if q := c.pending[tag]; len(q) > 0 {
		c.pending[tag] = q[1:]
		return q[0], nil
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer func() {
		stop()
		_ = c.conn.SetReadDeadline(time.Time{})
	}()

	buffered := 0
	for {
		f, err := wire.ReadFrame(c.conn, c.maxFrame)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, c.wrap(err)
		}
		if f.Tag == tag {
			return f.Payload, nil
		}
		if buffered++; buffered > maxPending {
			return nil, domain.ErrUnexpectedTag.Detailf("waiting for %s, %d other frames queued", tag, buffered)
		}
		c.pending[f.Tag] = append(c.pending[f.Tag], f.Payload)
	}
}

// RecvJSON receives a frame tagged tag and unmarshals it into v.
func (c *Conn) RecvJSON(ctx context.Context, tag wire.Tag, v any) error {
	payload, err := c.Recv(ctx, tag)
	if err != nil {
		return err
	}
	return wire.Frame{Tag: tag, Payload: payload}.Decode(tag, v)
}

// Close disconnects the channel. Later Send and Recv calls fail with
// ErrChannelClosed.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// wrap maps socket teardown onto ErrChannelClosed.
func (c *Conn) wrap(err error) error {
	if c.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.ErrChannelClosed.WithCause(err)
	}
	if domain.IsDomainError(err, "") {
		return err
	}
	return fmt.Errorf("channel: %w", err)
}
