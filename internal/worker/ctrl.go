package worker

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

// maxSocketPath is the portable limit on a unix socket path (sun_path is 104
// bytes on the BSDs and 108 on Linux, both including the terminator).
const maxSocketPath = 103

// controlSocket is the listener a spawned loader dials back to.
type controlSocket struct {
	ln   net.Listener
	path string
}

func listenControl(dir, workerID string) (*controlSocket, error) {
	path := filepath.Join(dir, fmt.Sprintf("ld-%s-%s.sock", workerID, ulid.Make()))
	if len(path) > maxSocketPath {
		return nil, domain.ErrSpawnFailed.Detailf("control socket path %q is %d bytes, limit %d: shorten loader.ctrl_dir", path, len(path), maxSocketPath)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen control socket: %w", err)
	}
	return &controlSocket{ln: ln, path: path}, nil
}

// accept waits for the loader and closes the listener.
func (s *controlSocket) accept(ctx context.Context) (*channel.Conn, error) {
	defer s.Close()

	stop := context.AfterFunc(ctx, func() { s.ln.Close() })
	c, err := s.ln.Accept()
	stop()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("wait for loader: %w", ctxErr)
		}
		return nil, fmt.Errorf("accept loader: %w", err)
	}
	return channel.NewConn(c), nil
}

func (s *controlSocket) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	return err
}
