package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext should fall back to the default logger")
	}

	l := Nop()
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("FromContext should return the stored logger")
	}
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	if WorkerIDFromContext(ctx) != "" || SessionIDFromContext(ctx) != "" {
		t.Fatal("empty context should carry no ids")
	}

	ctx = WithWorkerID(ctx, "gpu7")
	ctx = WithSessionID(ctx, "01HZ")
	if got := WorkerIDFromContext(ctx); got != "gpu7" {
		t.Errorf("WorkerIDFromContext = %q", got)
	}
	if got := SessionIDFromContext(ctx); got != "01HZ" {
		t.Errorf("SessionIDFromContext = %q", got)
	}
}

func TestL_EnrichesWithIDs(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithLogger(context.Background(), l)
	ctx = WithWorkerID(ctx, "2")
	ctx = WithSessionID(ctx, "s-1")
	L(ctx).Info("joined")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["worker_id"] != "2" || entry["session_id"] != "s-1" {
		t.Errorf("entry = %v", entry)
	}
}
