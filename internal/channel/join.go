package channel

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/trainmesh-go/internal/transport/wire"
)

// CoordinatorPeer is the peer id a worker records for its coordinator channel.
const CoordinatorPeer = "coordinator"

// Offer is what the coordinator sends over the rendezvous socket so the
// worker can reach the dedicated join listener.
type Offer struct {
	Port    int    `json:"port"`
	Version string `json:"version"`
	Session string `json:"session"`
}

// hello is the first frame on a freshly dialled channel; it binds the
// connection to the offer it answers.
type hello struct {
	WorkerID string `json:"worker_id"`
	Session  string `json:"session"`
	Version  string `json:"version"`
}

// Acceptor is the coordinator half of one join: a private listener that
// accepts exactly one connection.
type Acceptor struct {
	ln       net.Listener
	offer    Offer
	accepted func()
}

// Open listens on an ephemeral port of host for one join.
func Open(host string) (*Acceptor, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("open join listener: %w", err)
	}
	return &Acceptor{
		ln: ln,
		offer: Offer{
			Port:    ln.Addr().(*net.TCPAddr).Port,
			Version: buildinfo.Version,
			Session: ulid.Make().String(),
		},
	}, nil
}

// Offer returns the join offer to send to the worker.
func (a *Acceptor) Offer() Offer {
	return a.offer
}

// OnAccepted registers fn to run once the worker's hello checks out,
// before the self-test.
func (a *Acceptor) OnAccepted(fn func()) {
	a.accepted = fn
}

// Accept waits for the worker to dial, checks its hello and runs the
// self-test as broadcast root. The listener is closed on return.
func (a *Acceptor) Accept(ctx context.Context, workerID string) (*Intercomm, error) {
	defer a.ln.Close()

	stop := context.AfterFunc(ctx, func() { a.ln.Close() })
	conn, err := a.ln.Accept()
	stop()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("accept join: %w", ctxErr)
		}
		return nil, fmt.Errorf("accept join: %w", err)
	}

	ic := newIntercomm(conn, workerID, a.offer.Session)

	var h hello
	if err := ic.RecvJSON(ctx, wire.TagOffer, &h); err != nil {
		ic.Close()
		return nil, fmt.Errorf("read join hello: %w", err)
	}
	if h.Session != a.offer.Session || h.WorkerID != workerID {
		ic.Close()
		return nil, domain.ErrJoinRejected.Detailf("hello for worker %q session %q", h.WorkerID, h.Session)
	}
	if !buildinfo.Compatible(h.Version) {
		ic.Close()
		return nil, domain.ErrJoinRejected.Detailf("worker version %s, coordinator %s", h.Version, buildinfo.Version)
	}

	if a.accepted != nil {
		a.accepted()
	}

	if err := selfTest(ctx, ic, true); err != nil {
		ic.Close()
		return nil, err
	}
	return ic, nil
}

// Close releases the listener without accepting.
func (a *Acceptor) Close() error {
	return a.ln.Close()
}

// Dial is the worker half of a join: it connects to the offered port on the
// coordinator host, sends its hello and verifies the sentinel.
func Dial(ctx context.Context, host string, offer Offer, workerID string) (*Intercomm, error) {
	if !buildinfo.Compatible(offer.Version) {
		return nil, domain.ErrJoinRejected.Detailf("coordinator version %s, worker %s", offer.Version, buildinfo.Version)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(offer.Port)))
	if err != nil {
		return nil, fmt.Errorf("dial join port: %w", err)
	}

	ic := newIntercomm(conn, CoordinatorPeer, offer.Session)
	if err := ic.SendJSON(wire.TagOffer, hello{
		WorkerID: workerID,
		Session:  offer.Session,
		Version:  buildinfo.Version,
	}); err != nil {
		ic.Close()
		return nil, fmt.Errorf("send join hello: %w", err)
	}

	if err := selfTest(ctx, ic, false); err != nil {
		ic.Close()
		return nil, err
	}
	return ic, nil
}
