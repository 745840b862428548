package worker

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

func TestExecSpawner_NUMAHint(t *testing.T) {
	found := func(name string) (string, error) { return "/usr/bin/" + name, nil }

	tests := []struct {
		device string
		node   string
	}{
		{"gpu5", "1"},
		{"gpu2", "0"},
		{"gpu4", "1"},
		{"gpu3", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			dev, err := domain.ParseDevice(tt.device)
			if err != nil {
				t.Fatal(err)
			}
			s := ExecSpawner{Binary: "/opt/trainmesh/trainmesh-node", LookPath: found}
			cmd := s.Command(SpawnRequest{CtrlPath: "/tmp/c.sock", NUMA: true, NUMANode: dev.NUMANode()})

			want := []string{"/usr/bin/numactl", "-N", tt.node, "/opt/trainmesh/trainmesh-node", "loader", "--ctrl", "/tmp/c.sock"}
			if !reflect.DeepEqual(cmd.Args, want) {
				t.Errorf("Args = %v, want %v", cmd.Args, want)
			}
		})
	}
}

func TestExecSpawner_WithoutNumactl(t *testing.T) {
	missing := func(string) (string, error) { return "", errors.New("not found") }
	s := ExecSpawner{Binary: "trainmesh-node", Args: []string{"--log-level", "debug"}, LookPath: missing}

	cmd := s.Command(SpawnRequest{CtrlPath: "c.sock", NUMA: true, NUMANode: 1})
	want := []string{"trainmesh-node", "loader", "--ctrl", "c.sock", "--log-level", "debug"}
	if !reflect.DeepEqual(cmd.Args, want) {
		t.Errorf("Args = %v, want %v", cmd.Args, want)
	}

	cmd = ExecSpawner{Binary: "trainmesh-node", LookPath: func(string) (string, error) {
		t.Error("numactl looked up with NUMA disabled")
		return "", nil
	}}.Command(SpawnRequest{CtrlPath: "c.sock"})
	want = []string{"trainmesh-node", "loader", "--ctrl", "c.sock"}
	if !reflect.DeepEqual(cmd.Args, want) {
		t.Errorf("Args = %v, want %v", cmd.Args, want)
	}
}

func TestExecSpawner_RequiresBinary(t *testing.T) {
	if _, err := (ExecSpawner{}).Spawn(context.Background(), SpawnRequest{}); err == nil {
		t.Error("Spawn without binary should fail")
	}
}
