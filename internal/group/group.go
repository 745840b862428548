// Package group provides the process group channel: every process learns its
// rank and the group size, and can broadcast a value from one rank to all
// others.
package group

import (
	"context"
	"fmt"
)

// Group is a fixed-size set of ranked processes.
//
// Broadcast is a collective: every rank calls it with the same origin, in
// the same order. The origin's value is delivered unchanged to every other
// rank; the origin itself gets nil back.
type Group interface {
	Rank() int
	Size() int

	// Wait blocks until all Size ranks are reachable.
	Wait(ctx context.Context) error

	Broadcast(ctx context.Context, value []byte, origin int) ([]byte, error)

	Close() error
}

type msgKey struct {
	origin int
	seq    uint64
}

func checkOrigin(origin, size int) error {
	if origin < 0 || origin >= size {
		return fmt.Errorf("group: origin %d outside [0,%d)", origin, size)
	}
	return nil
}

var (
	_ Group = (*Gossip)(nil)
	_ Group = (*Loopback)(nil)
)
