package channel

import (
	"context"
	"net"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/transport/wire"
)

// Sentinel is the value the coordinator broadcasts in the post-join self-test.
const Sentinel = "from_server"

// Root marks the calling side as the broadcast root in Bcast.
const Root = -1

// Intercomm is the private channel between the coordinator and one worker.
// Each side is a group of one: Size, RemoteSize and Rank are fixed.
type Intercomm struct {
	*Conn
	peerID  string
	session string
}

func newIntercomm(conn net.Conn, peerID, session string) *Intercomm {
	return &Intercomm{Conn: NewConn(conn), peerID: peerID, session: session}
}

// Size is the number of processes on the local side.
func (ic *Intercomm) Size() int { return 1 }

// RemoteSize is the number of processes on the remote side.
func (ic *Intercomm) RemoteSize() int { return 1 }

// Rank is the local process's rank within its side.
func (ic *Intercomm) Rank() int { return 0 }

// PeerID is the worker id the channel was joined for.
func (ic *Intercomm) PeerID() string { return ic.peerID }

// Session is the join session id shared by both sides.
func (ic *Intercomm) Session() string { return ic.session }

// Bcast broadcasts value across the channel. The root side passes Root and
// gets nil back; the other side passes the root's remote rank and receives
// the value.
func (ic *Intercomm) Bcast(ctx context.Context, value []byte, root int) ([]byte, error) {
	if root == Root {
		return nil, ic.Send(wire.TagBcast, value)
	}
	if root < 0 || root >= ic.RemoteSize() {
		return nil, domain.ErrInvalidRank.Detailf("bcast root %d, remote size %d", root, ic.RemoteSize())
	}
	return ic.Recv(ctx, wire.TagBcast)
}

// Disconnect closes the channel.
func (ic *Intercomm) Disconnect() error {
	return ic.Close()
}

// selfTest checks the channel topology and exchanges the sentinel. The
// worker echoes the sentinel back as an ack, so the root only succeeds once
// the worker has verified it. A failure is a topology error.
func selfTest(ctx context.Context, ic *Intercomm, root bool) error {
	if n := ic.RemoteSize(); n != 1 {
		return domain.ErrRemoteSize.Detailf("remote size %d", n)
	}
	if ic.Size() != 1 || ic.Rank() != 0 {
		return domain.ErrSelfTestFailed.Detailf("local size %d rank %d", ic.Size(), ic.Rank())
	}

	if root {
		res, err := ic.Bcast(ctx, []byte(Sentinel), Root)
		if err != nil {
			return domain.ErrSelfTestFailed.WithCause(err).WithDetails("broadcast sentinel")
		}
		if res != nil {
			return domain.ErrSelfTestFailed.WithDetails("root received a broadcast result")
		}
		ack, err := ic.Recv(ctx, wire.TagAck)
		if err != nil {
			return domain.ErrSelfTestFailed.WithCause(err).WithDetails("worker did not ack the sentinel")
		}
		if string(ack) != Sentinel {
			return domain.ErrSelfTestFailed.Detailf("worker acked %q", ack)
		}
		return nil
	}

	got, err := ic.Bcast(ctx, nil, 0)
	if err != nil {
		return domain.ErrSelfTestFailed.WithCause(err).WithDetails("receive sentinel")
	}
	if string(got) != Sentinel {
		return domain.ErrSelfTestFailed.Detailf("received %q", got)
	}
	if err := ic.Send(wire.TagAck, got); err != nil {
		return domain.ErrSelfTestFailed.WithCause(err).WithDetails("ack sentinel")
	}
	return nil
}
