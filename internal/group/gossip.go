package group

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/memberlist"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/transport/wire"
)

const (
	waitPoll     = 50 * time.Millisecond
	leaveTimeout = time.Second
	bcastHeader  = 4 + 8
)

// Config configures a memberlist-backed group member.
type Config struct {
	Rank int
	Size int

	BindAddr      string
	BindPort      int
	AdvertiseAddr string

	// Seeds are existing members to join ("host:port"). Empty for the first
	// member to start.
	Seeds []string

	Logger *slog.Logger
}

// nodeMetadata is gossiped with every member.
type nodeMetadata struct {
	Rank int `json:"rank"`
}

// Gossip is a Group whose membership is a hashicorp/memberlist cluster.
// Broadcast values travel as reliable (TCP) user messages.
type Gossip struct {
	rank   int
	size   int
	ml     *memberlist.Memberlist
	logger *slog.Logger
	meta   []byte

	mu      sync.Mutex
	next    map[int]uint64
	inbox   map[msgKey][]byte
	waiting map[msgKey]chan []byte

	lost     chan struct{}
	lostOnce sync.Once
	closing  atomic.Bool
}

// NodeName returns the memberlist node name of a rank.
func NodeName(rank int) string {
	return "rank-" + strconv.Itoa(rank)
}

// NewGossip starts a group member and joins the seeds.
func NewGossip(cfg Config) (*Gossip, error) {
	if cfg.Size < 1 || cfg.Rank < 0 || cfg.Rank >= cfg.Size {
		return nil, domain.ErrInvalidRank.Detailf("rank %d size %d", cfg.Rank, cfg.Size)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	meta, err := json.Marshal(nodeMetadata{Rank: cfg.Rank})
	if err != nil {
		return nil, fmt.Errorf("encode node metadata: %w", err)
	}

	g := &Gossip{
		rank:    cfg.Rank,
		size:    cfg.Size,
		logger:  cfg.Logger.With("component", "group", "rank", cfg.Rank),
		meta:    meta,
		next:    make(map[int]uint64),
		inbox:   make(map[msgKey][]byte),
		waiting: make(map[msgKey]chan []byte),
		lost:    make(chan struct{}),
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = NodeName(cfg.Rank)
	if cfg.BindAddr != "" {
		mlConfig.BindAddr = cfg.BindAddr
	}
	mlConfig.BindPort = cfg.BindPort
	mlConfig.AdvertisePort = cfg.BindPort
	if cfg.AdvertiseAddr != "" {
		mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
	}
	mlConfig.Delegate = &delegate{g: g}
	mlConfig.Events = &events{g: g}
	mlConfig.Logger = newHCLogger(cfg.Logger, "memberlist").
		StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	g.ml = ml

	if len(cfg.Seeds) > 0 {
		n, err := ml.Join(cfg.Seeds)
		if err != nil {
			_ = ml.Shutdown()
			return nil, fmt.Errorf("join group seeds %v: %w", cfg.Seeds, err)
		}
		g.logger.Info("joined group", "seeds", cfg.Seeds, "contacted", n)
	} else {
		g.logger.Info("started group (first member)", "size", cfg.Size)
	}

	return g, nil
}

// Rank returns this member's rank.
func (g *Gossip) Rank() int { return g.rank }

// Size returns the configured group size.
func (g *Gossip) Size() int { return g.size }

// Addr returns the local memberlist address, for seeding other members.
func (g *Gossip) Addr() string {
	n := g.ml.LocalNode()
	return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Wait blocks until every rank is a live member.
func (g *Gossip) Wait(ctx context.Context) error {
	ticker := time.NewTicker(waitPoll)
	defer ticker.Stop()

	for {
		ranks, err := g.ranks()
		if err != nil {
			return err
		}
		if len(ranks) == g.size {
			g.logger.Info("group complete", "size", g.size)
			return nil
		}

		select {
		case <-ctx.Done():
			return domain.ErrGroupIncomplete.WithCause(ctx.Err()).
				Detailf("%d of %d ranks present", len(ranks), g.size)
		case <-g.lost:
			return domain.ErrGroupClosed
		case <-ticker.C:
		}
	}
}

// ranks maps every live member to its rank.
func (g *Gossip) ranks() (map[int]*memberlist.Node, error) {
	out := make(map[int]*memberlist.Node)
	for _, n := range g.ml.Members() {
		var md nodeMetadata
		if err := json.Unmarshal(n.Meta, &md); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", n.Name, err)
		}
		if md.Rank < 0 || md.Rank >= g.size {
			return nil, domain.ErrInvalidRank.Detailf("member %s claims rank %d", n.Name, md.Rank)
		}
		if prev, dup := out[md.Rank]; dup {
			return nil, domain.ErrInvalidRank.Detailf("rank %d claimed by %s and %s", md.Rank, prev.Name, n.Name)
		}
		out[md.Rank] = n
	}
	return out, nil
}

// Broadcast delivers value from origin to every other rank.
func (g *Gossip) Broadcast(ctx context.Context, value []byte, origin int) ([]byte, error) {
	if err := checkOrigin(origin, g.size); err != nil {
		return nil, err
	}

	g.mu.Lock()
	key := msgKey{origin: origin, seq: g.next[origin]}
	g.next[origin]++
	g.mu.Unlock()

	if origin == g.rank {
		return nil, g.send(key, value)
	}
	return g.receive(ctx, key)
}

func (g *Gossip) send(key msgKey, value []byte) error {
	payload := make([]byte, bcastHeader+len(value))
	binary.BigEndian.PutUint32(payload[0:4], uint32(key.origin))
	binary.BigEndian.PutUint64(payload[4:12], key.seq)
	copy(payload[bcastHeader:], value)
	msg := wire.Encode(wire.TagBcast, payload)

	local := g.ml.LocalNode().Name
	for _, n := range g.ml.Members() {
		if n.Name == local {
			continue
		}
		if err := g.ml.SendReliable(n, msg); err != nil {
			return fmt.Errorf("group: broadcast to %s: %w", n.Name, err)
		}
	}
	g.logger.Debug("broadcast sent", "seq", key.seq, "bytes", len(value))
	return nil
}

func (g *Gossip) receive(ctx context.Context, key msgKey) ([]byte, error) {
	g.mu.Lock()
	if v, ok := g.inbox[key]; ok {
		delete(g.inbox, key)
		g.mu.Unlock()
		return v, nil
	}
	ch := make(chan []byte, 1)
	g.waiting[key] = ch
	g.mu.Unlock()

	select {
	case v := <-ch:
		return v, nil
	case <-g.lost:
		return nil, domain.ErrGroupClosed.Detailf("waiting for rank %d", key.origin)
	case <-ctx.Done():
		g.mu.Lock()
		delete(g.waiting, key)
		g.mu.Unlock()
		return nil, ctx.Err()
	}
}

// deliver hands an incoming broadcast to its waiter or parks it.
func (g *Gossip) deliver(msg []byte) {
	f, err := wire.ReadFrame(bytes.NewReader(msg), 0)
	if err != nil {
		g.logger.Warn("dropping malformed group message", "error", err)
		return
	}
	if f.Tag != wire.TagBcast || len(f.Payload) < bcastHeader {
		g.logger.Warn("dropping unexpected group message", "tag", f.Tag.String())
		return
	}

	key := msgKey{
		origin: int(binary.BigEndian.Uint32(f.Payload[0:4])),
		seq:    binary.BigEndian.Uint64(f.Payload[4:12]),
	}
	value := f.Payload[bcastHeader:]

	g.mu.Lock()
	defer g.mu.Unlock()
	if ch, ok := g.waiting[key]; ok {
		delete(g.waiting, key)
		ch <- value
		return
	}
	g.inbox[key] = value
}

// Close leaves the group and stops memberlist.
func (g *Gossip) Close() error {
	if !g.closing.CompareAndSwap(false, true) {
		return nil
	}
	if err := g.ml.Leave(leaveTimeout); err != nil {
		g.logger.Warn("leave group", "error", err)
	}
	if err := g.ml.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	g.logger.Info("left group")
	return nil
}

// delegate implements memberlist.Delegate.
type delegate struct {
	g *Gossip
}

func (d *delegate) NodeMeta(limit int) []byte {
	if len(d.g.meta) > limit {
		return nil
	}
	return d.g.meta
}

// NotifyMsg must not retain msg; ReadFrame copies the payload.
func (d *delegate) NotifyMsg(msg []byte) { d.g.deliver(msg) }

func (d *delegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *delegate) LocalState(join bool) []byte                { return nil }
func (d *delegate) MergeRemoteState(buf []byte, join bool)     {}

// events implements memberlist.EventDelegate.
type events struct {
	g *Gossip
}

func (e *events) NotifyJoin(n *memberlist.Node) {
	e.g.logger.Info("member joined", "node", n.Name, "addr", n.Addr.String())
}

// NotifyLeave marks the group lost: there is no recovery from membership loss.
func (e *events) NotifyLeave(n *memberlist.Node) {
	if e.g.closing.Load() {
		return
	}
	e.g.logger.Error("member left group", "node", n.Name)
	e.g.lostOnce.Do(func() { close(e.g.lost) })
}

func (e *events) NotifyUpdate(n *memberlist.Node) {
	e.g.logger.Debug("member updated", "node", n.Name)
}
