package group

import (
	"context"
	"sync"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

// hub is the shared state of an in-process group.
type hub struct {
	size int

	mu     sync.Mutex
	slots  map[msgKey]*slot
	closed chan struct{}
	once   sync.Once
}

type slot struct {
	ready   chan struct{}
	value   []byte
	pending int // receivers yet to read
}

// Loopback is an in-process Group member. All members of one loopback group
// share a hub; useful when every rank runs in the same process.
type Loopback struct {
	hub  *hub
	rank int

	mu   sync.Mutex
	next map[int]uint64
}

// NewLoopback returns size members of one in-process group, indexed by rank.
func NewLoopback(size int) []*Loopback {
	h := &hub{
		size:   size,
		slots:  make(map[msgKey]*slot),
		closed: make(chan struct{}),
	}
	members := make([]*Loopback, size)
	for r := range members {
		members[r] = &Loopback{hub: h, rank: r, next: make(map[int]uint64)}
	}
	return members
}

func (l *Loopback) Rank() int { return l.rank }
func (l *Loopback) Size() int { return l.hub.size }

// Wait returns immediately: every member exists from creation.
func (l *Loopback) Wait(context.Context) error { return nil }

func (l *Loopback) Broadcast(ctx context.Context, value []byte, origin int) ([]byte, error) {
	if err := checkOrigin(origin, l.hub.size); err != nil {
		return nil, err
	}

	l.mu.Lock()
	key := msgKey{origin: origin, seq: l.next[origin]}
	l.next[origin]++
	l.mu.Unlock()

	s := l.hub.slot(key)
	if origin == l.rank {
		s.value = append([]byte(nil), value...)
		close(s.ready)
		if l.hub.size == 1 {
			l.hub.release(key)
		}
		return nil, nil
	}

	select {
	case <-s.ready:
	case <-l.hub.closed:
		return nil, domain.ErrGroupClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := append([]byte(nil), s.value...)
	l.hub.read(key)
	return out, nil
}

// Close closes the whole group; pending receivers fail with ErrGroupClosed.
func (l *Loopback) Close() error {
	l.hub.once.Do(func() { close(l.hub.closed) })
	return nil
}

func (h *hub) slot(key msgKey) *slot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[key]
	if !ok {
		s = &slot{ready: make(chan struct{}), pending: h.size - 1}
		h.slots[key] = s
	}
	return s
}

func (h *hub) read(key msgKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.slots[key]; ok {
		s.pending--
		if s.pending <= 0 {
			delete(h.slots, key)
		}
	}
}

func (h *hub) release(key msgKey) {
	h.mu.Lock()
	delete(h.slots, key)
	h.mu.Unlock()
}
