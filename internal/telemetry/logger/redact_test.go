package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestIsHandleKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"handle", true},
		{"ipc_handle", true},
		{"IPCHandle", true},
		{"segment_name", true},
		{"shape", false},
		{"worker_id", false},
		{"address", false},
	}
	for _, tt := range tests {
		if got := IsHandleKey(tt.key); got != tt.want {
			t.Errorf("IsHandleKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestRedactHandle(t *testing.T) {
	a := redactHandle(slog.Any("handle", []byte{1, 2, 3, 4}))
	if a.Value.String() != redactedValue+"(4 bytes)" {
		t.Errorf("redacted bytes = %q", a.Value.String())
	}

	a = redactHandle(slog.String("segment", "trainmesh-abc"))
	if a.Value.String() != redactedValue {
		t.Errorf("redacted string = %q", a.Value.String())
	}

	a = redactHandle(slog.String("segment", ""))
	if a.Value.String() != "" {
		t.Error("empty values should be left alone")
	}

	a = redactHandle(slog.Int("batch", 7))
	if a.Value.Int64() != 7 {
		t.Error("non-handle attributes must not change")
	}
}

func TestRedactHandle_Group(t *testing.T) {
	g := redactHandle(slog.Group("buffer", slog.Any("ipc_handle", []byte("x")), slog.Int("bytes", 64)))
	attrs := g.Value.Group()
	if len(attrs) != 2 {
		t.Fatalf("group attrs = %d", len(attrs))
	}
	if !strings.HasPrefix(attrs[0].Value.String(), redactedValue) {
		t.Errorf("nested handle not redacted: %v", attrs[0].Value)
	}
	if attrs[1].Value.Int64() != 64 {
		t.Errorf("nested int changed: %v", attrs[1].Value)
	}
}

func TestLogger_RedactsHandleInOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("handle exported", "handle", []byte("secret-segment"))

	if strings.Contains(buf.String(), "secret-segment") {
		t.Fatalf("handle leaked into log: %s", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(entry["handle"].(string), redactedValue) {
		t.Errorf("handle = %v", entry["handle"])
	}
}
