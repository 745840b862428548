package domain

import (
	"fmt"
	"strings"
)

// Role is the coordination role a process plays in the group.
type Role int

const (
	// RoleCoordinator holds the parameters and serves worker joins.
	RoleCoordinator Role = iota
	// RoleWorker owns a device and trains against the coordinator.
	RoleWorker
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleCoordinator:
		return "coordinator"
	case RoleWorker:
		return "worker"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole parses a role name. "auto" resolves from the rank:
// rank 0 coordinates, every other rank is a worker.
func ParseRole(name string, rank int) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		if rank == 0 {
			return RoleCoordinator, nil
		}
		return RoleWorker, nil
	case "coordinator", "server":
		return RoleCoordinator, nil
	case "worker", "client":
		return RoleWorker, nil
	default:
		return 0, ErrInvalidConfig.Detailf("role %q", name)
	}
}

// Identity is the immutable identity of a process in the group.
type Identity struct {
	Rank int
	Size int
	Role Role
}

// NewIdentity validates rank against size.
func NewIdentity(rank, size int, role Role) (Identity, error) {
	if size < 1 || rank < 0 || rank >= size {
		return Identity{}, ErrInvalidRank.Detailf("rank %d of size %d", rank, size)
	}
	return Identity{Rank: rank, Size: size, Role: role}, nil
}

// WorkerID is the identifier a worker registers under.
func (id Identity) WorkerID() string {
	return fmt.Sprintf("%d", id.Rank)
}

// String returns "<role>/<rank>:<size>".
func (id Identity) String() string {
	return fmt.Sprintf("%s/%d:%d", id.Role, id.Rank, id.Size)
}
