package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.SyncRule != DefaultSyncRule {
		t.Errorf("SyncRule = %q, want %q", cfg.SyncRule, DefaultSyncRule)
	}
	if cfg.DataSource != "hkl" {
		t.Errorf("DataSource = %q, want hkl", cfg.DataSource)
	}
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) error = %v", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*TrainConfig)
		wantErr error
	}{
		{"valid", func(*TrainConfig) {}, nil},
		{"missing sync rule", func(c *TrainConfig) { c.SyncRule = "" }, domain.ErrMissingKey},
		{"bad sync rule", func(c *TrainConfig) { c.SyncRule = "hogwild" }, domain.ErrInvalidSyncRule},
		{"bad port", func(c *TrainConfig) { c.Port = 70000 }, domain.ErrInvalidConfig},
		{"rank outside group", func(c *TrainConfig) { c.Group.Rank = 4; c.Group.Size = 4 }, domain.ErrInvalidRank},
		{"bad log level", func(c *TrainConfig) { c.Log.Level = "trace" }, domain.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := Verify(cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyWorker(t *testing.T) {
	valid := func() *TrainConfig {
		cfg := Default()
		cfg.Device = "gpu1"
		cfg.ParaLoad = true
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*TrainConfig)
		wantErr error
	}{
		{"valid", func(*TrainConfig) {}, nil},
		{"missing device", func(c *TrainConfig) { c.Device = "" }, domain.ErrMissingKey},
		{"device without index", func(c *TrainConfig) { c.Device = "gpu" }, domain.ErrInvalidDevice},
		{"wrong data source", func(c *TrainConfig) { c.DataSource = "lmdb" }, domain.ErrUnsupportedDataSource},
		{"zero batch", func(c *TrainConfig) { c.BatchSize = 0 }, domain.ErrInvalidConfig},
		{"bad dtype", func(c *TrainConfig) { c.DType = "complex64" }, domain.ErrInvalidConfig},
		{"bad sock_data", func(c *TrainConfig) { c.SockData = 0 }, domain.ErrInvalidConfig},
		{"sock_data at the limit", func(c *TrainConfig) { c.SockData = 65535; c.Device = "gpu0" }, nil},
		{"sock_data plus index overflows", func(c *TrainConfig) { c.SockData = 65530; c.Device = "gpu7" }, domain.ErrInvalidConfig},
		{"overflow ignored without para_load", func(c *TrainConfig) { c.SockData = 65530; c.Device = "gpu7"; c.ParaLoad = false }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := VerifyWorker(cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("VerifyWorker() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyWorker() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInject(t *testing.T) {
	cfg := Default()
	cfg.SockData = 5000

	id, err := domain.NewIdentity(3, 4, domain.RoleWorker)
	if err != nil {
		t.Fatal(err)
	}
	dev, err := domain.ParseDevice("gpu7")
	if err != nil {
		t.Fatal(err)
	}

	Inject(cfg, id, domain.BSP, dev)

	if cfg.Rank != 3 || cfg.Size != 4 {
		t.Errorf("rank/size = %d/%d, want 3/4", cfg.Rank, cfg.Size)
	}
	if cfg.Verbose {
		t.Error("BSP rank 3 must not be verbose")
	}
	if cfg.WorkerID != "3" {
		t.Errorf("WorkerID = %q, want 3", cfg.WorkerID)
	}
	if cfg.SockData != 5007 {
		t.Errorf("SockData = %d, want 5007", cfg.SockData)
	}
	if cfg.Device != "gpu7" {
		t.Errorf("Device = %q", cfg.Device)
	}
}

func TestMergeModel(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "googlenet.yaml"), []byte("batch_size: 32\ninput_shape: [3, 224, 224]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Name = "googlenet"
	cfg.ModelDir = dir
	cfg.Rank = 2
	cfg.Group.Seeds = []string{"10.0.0.1:7946"}
	cfg.Rendezvous.ReadTimeout = 5 * time.Second

	out, merged, err := MergeModel(cfg)
	if err != nil {
		t.Fatalf("MergeModel() error = %v", err)
	}
	if !merged {
		t.Fatal("expected a merge")
	}
	if out.BatchSize != 32 {
		t.Errorf("BatchSize = %d, want 32", out.BatchSize)
	}
	if len(out.InputShape) != 3 || out.InputShape[1] != 224 {
		t.Errorf("InputShape = %v", out.InputShape)
	}
	if out.Rank != 2 {
		t.Errorf("Rank = %d, injected values must survive", out.Rank)
	}
	if len(out.Group.Seeds) != 1 || out.Rendezvous.ReadTimeout != 5*time.Second {
		t.Errorf("sections lost in merge: %+v %+v", out.Group, out.Rendezvous)
	}

	cfg.Name = "alexnet"
	out, merged, err = MergeModel(cfg)
	if err != nil || merged {
		t.Fatalf("MergeModel(no file) = %v, %v", merged, err)
	}
	if out == cfg {
		t.Error("MergeModel must return a copy")
	}
}

func TestMergeModel_KeepsIdentity(t *testing.T) {
	dir := t.TempDir()
	body := "rank: 9\nsize: 2\nverbose: true\nworker_id: \"9\"\nsock_data: 1234\ndevice: gpu0\nbatch_size: 64\n"
	if err := os.WriteFile(filepath.Join(dir, "alexnet.yaml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Name = "alexnet"
	cfg.ModelDir = dir
	cfg.Rank = 3
	cfg.Size = 8
	cfg.Verbose = false
	cfg.WorkerID = "3"
	cfg.Device = "gpu7"
	cfg.SockData = 5007

	out, merged, err := MergeModel(cfg)
	if err != nil || !merged {
		t.Fatalf("MergeModel() = %v, %v", merged, err)
	}
	if out.BatchSize != 64 {
		t.Errorf("BatchSize = %d, model keys must still apply", out.BatchSize)
	}
	if out.Rank != 3 || out.Size != 8 || out.Verbose || out.WorkerID != "3" {
		t.Errorf("identity overridden: rank=%d size=%d verbose=%v worker_id=%q", out.Rank, out.Size, out.Verbose, out.WorkerID)
	}
	if out.Device != "gpu7" || out.SockData != 5007 {
		t.Errorf("device binding overridden: device=%q sock_data=%d", out.Device, out.SockData)
	}
}

func TestMergeModel_NoFile(t *testing.T) {
	cfg := Default()
	cfg.Name = "alexnet"
	cfg.ModelDir = t.TempDir()
	out, merged, err := MergeModel(cfg)
	if err != nil || merged {
		t.Fatalf("MergeModel(no file) = %v, %v", merged, err)
	}
	if out == cfg {
		t.Error("MergeModel must return a copy")
	}
}

func TestStructRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Device = "gpu5"
	cfg.SockData = 5005
	cfg.ParaLoad = true
	cfg.InputShape = []int{3, 227, 227}
	cfg.Loader.DialTimeout = 3 * time.Second
	cfg.WorkerID = "1"
	cfg.Group.Seeds = []string{"not-handed-off:1"}

	s, err := ToStruct(cfg)
	if err != nil {
		t.Fatalf("ToStruct() error = %v", err)
	}
	if _, ok := s.Fields["group"]; ok {
		t.Error("group section must stay with the worker")
	}

	got, err := FromStruct(s)
	if err != nil {
		t.Fatalf("FromStruct() error = %v", err)
	}
	if got.Device != "gpu5" || got.SockData != 5005 || !got.ParaLoad || got.WorkerID != "1" {
		t.Errorf("decoded = %+v", got)
	}
	if len(got.InputShape) != 3 || got.InputShape[2] != 227 {
		t.Errorf("InputShape = %v", got.InputShape)
	}
	if got.Loader.DialTimeout != 3*time.Second {
		t.Errorf("DialTimeout = %v", got.Loader.DialTimeout)
	}
	if len(got.Group.Seeds) != 0 {
		t.Errorf("Seeds = %v", got.Group.Seeds)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	content := `
sync_rule: EASGD
device: gpu2
group:
  rank: 1
  size: 3
  wait_timeout: 5s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRAINMESH_GROUP_BIND_PORT", "17946")
	t.Setenv("TRAINMESH_PARA_LOAD", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SyncRule != "EASGD" || cfg.Device != "gpu2" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Group.Rank != 1 || cfg.Group.Size != 3 || cfg.Group.WaitTimeout != 5*time.Second {
		t.Errorf("Group = %+v", cfg.Group)
	}
	if cfg.Group.BindPort != 17946 {
		t.Errorf("BindPort = %d, want env override", cfg.Group.BindPort)
	}
	if !cfg.ParaLoad {
		t.Error("ParaLoad should come from the environment")
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want default", cfg.Port)
	}
}
