package group

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startGossip(t *testing.T, size int) []*Gossip {
	t.Helper()
	members := make([]*Gossip, size)
	for r := 0; r < size; r++ {
		cfg := Config{
			Rank:     r,
			Size:     size,
			BindAddr: "127.0.0.1",
			BindPort: 0,
			Logger:   testLogger(),
		}
		if r > 0 {
			cfg.Seeds = []string{members[0].Addr()}
		}
		g, err := NewGossip(cfg)
		if err != nil {
			t.Fatalf("NewGossip(rank %d): %v", r, err)
		}
		members[r] = g
	}
	t.Cleanup(func() {
		for i := len(members) - 1; i >= 0; i-- {
			members[i].Close()
		}
	})
	return members
}

func TestGossip_WaitAndBroadcast(t *testing.T) {
	members := startGossip(t, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	groups := make([]Group, len(members))
	for i, m := range members {
		groups[i] = m
	}

	collective(t, groups, func(g Group) ([]byte, error) {
		return nil, g.Wait(ctx)
	})

	got := collective(t, groups, func(g Group) ([]byte, error) {
		return g.Broadcast(ctx, []byte("127.0.0.1:5555"), 0)
	})
	if got[0] != nil {
		t.Errorf("origin result = %q, want nil", got[0])
	}
	for r := 1; r < 3; r++ {
		if string(got[r]) != "127.0.0.1:5555" {
			t.Errorf("rank %d received %q", r, got[r])
		}
	}

	got = collective(t, groups, func(g Group) ([]byte, error) {
		return g.Broadcast(ctx, []byte("second"), 2)
	})
	if string(got[0]) != "second" || string(got[1]) != "second" || got[2] != nil {
		t.Errorf("second broadcast results = %q", got)
	}
}

func TestGossip_WaitTimeout(t *testing.T) {
	members := startGossip(t, 1)
	// Declared size 1, so the group is complete on its own.
	if err := members[0].Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	g, err := NewGossip(Config{Rank: 0, Size: 2, BindAddr: "127.0.0.1", Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); err == nil {
		t.Fatal("Wait() should time out with a missing rank")
	}
}

func TestNewGossip_InvalidRank(t *testing.T) {
	if _, err := NewGossip(Config{Rank: 3, Size: 3}); err == nil {
		t.Error("rank == size must be rejected")
	}
}

func TestNodeName(t *testing.T) {
	if NodeName(4) != "rank-4" {
		t.Errorf("NodeName(4) = %q", NodeName(4))
	}
}

func TestInferLevel(t *testing.T) {
	tests := []struct {
		line  string
		level hclog.Level
		msg   string
	}{
		{"[DEBUG] memberlist: Stream connection", hclog.Debug, "memberlist: Stream connection"},
		{"[WARN] memberlist: Was able to connect", hclog.Warn, "memberlist: Was able to connect"},
		{"[ERR] memberlist: Failed", hclog.Error, "memberlist: Failed"},
		{"plain line", hclog.Info, "plain line"},
	}
	for _, tt := range tests {
		level, msg := inferLevel(tt.line, hclog.Info)
		if level != tt.level || msg != tt.msg {
			t.Errorf("inferLevel(%q) = %v %q, want %v %q", tt.line, level, msg, tt.level, tt.msg)
		}
	}
}

func TestHCLogger_StandardLogger(t *testing.T) {
	l := newHCLogger(testLogger(), "memberlist")
	std := l.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})
	std.Printf("[INFO] memberlist: hello")

	if l.Named("x").Name() != "memberlist.x" {
		t.Errorf("Named = %q", l.Named("x").Name())
	}
}
