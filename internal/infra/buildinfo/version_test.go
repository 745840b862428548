package buildinfo

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" || info.Commit == "" || info.BuildTime == "" {
		t.Errorf("Get() = %+v, fields should not be empty", info)
	}
	if !strings.HasPrefix(info.GoVersion, "go") && !strings.HasPrefix(info.GoVersion, "devel") {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
}

func TestString(t *testing.T) {
	expected := Version + " (" + Commit + ") built at " + BuildTime
	if s := String(); s != expected {
		t.Errorf("String() = %q, want %q", s, expected)
	}
}

func TestCompatible(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })

	tests := []struct {
		local, peer string
		want        bool
	}{
		{"dev", "v2.3.0", true},
		{"v1.4.0", "dev", true},
		{"v1.4.0", "v1.0.2", true},
		{"v1.4.0", "1.9", true},
		{"v1.4.0", "v2.0.0", false},
	}
	for _, tt := range tests {
		Version = tt.local
		if got := Compatible(tt.peer); got != tt.want {
			t.Errorf("Compatible(%q) at %q = %v, want %v", tt.peer, tt.local, got, tt.want)
		}
	}
}
