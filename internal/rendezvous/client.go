package rendezvous

import (
	"context"
	"fmt"
	"net"

	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/transport/wire"
)

// Client is the worker side of one rendezvous connection.
type Client struct {
	conn *channel.Conn
	host string
}

// Dial connects to the coordinator's rendezvous address.
func Dial(ctx context.Context, addr string) (*Client, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("rendezvous address %q: %w", addr, err)
	}
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial rendezvous %s: %w", addr, err)
	}
	return &Client{conn: channel.NewConn(c), host: host}, nil
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Reply, error) {
	if err := c.conn.SendJSON(wire.TagRequest, req); err != nil {
		return Reply{}, err
	}
	return c.reply(ctx)
}

func (c *Client) reply(ctx context.Context) (Reply, error) {
	var r Reply
	if err := c.conn.RecvJSON(ctx, wire.TagReply, &r); err != nil {
		return Reply{}, err
	}
	if err := r.Err(); err != nil {
		return Reply{}, err
	}
	return r, nil
}

// Address asks the coordinator for its reachable address. The host part is
// used for the following Connect.
func (c *Client) Address(ctx context.Context) (string, error) {
	r, err := c.roundTrip(ctx, Request{Kind: KindAddress})
	if err != nil {
		return "", fmt.Errorf("address request: %w", err)
	}
	if host, _, err := net.SplitHostPort(r.Address); err == nil && host != "" {
		c.host = host
	}
	return r.Address, nil
}

// Request sends an arbitrary request kind and returns the reply.
func (c *Client) Request(ctx context.Context, kind Kind) (Reply, error) {
	return c.roundTrip(ctx, Request{Kind: kind})
}

// Connect joins the coordinator as workerID and returns the private
// channel. The rendezvous connection is closed on success.
func (c *Client) Connect(ctx context.Context, workerID string) (*channel.Intercomm, error) {
	r, err := c.roundTrip(ctx, Request{Kind: KindConnect, WorkerID: workerID})
	if err != nil {
		return nil, fmt.Errorf("connect request: %w", err)
	}
	if r.Status != StatusOffer || r.Offer == nil {
		return nil, domain.ErrProtocol.Detailf("expected offer, got %q", r.Status)
	}

	ic, err := channel.Dial(ctx, c.host, *r.Offer, workerID)
	if err != nil {
		return nil, err
	}

	r, err = c.reply(ctx)
	if err != nil {
		ic.Disconnect()
		return nil, fmt.Errorf("join status: %w", err)
	}
	if r.Status != StatusConnected {
		ic.Disconnect()
		return nil, domain.ErrProtocol.Detailf("expected connected, got %q", r.Status)
	}

	_ = c.Close()
	return ic, nil
}

// Close closes the rendezvous connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
