package confloader

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	SyncRule string `koanf:"sync_rule"`
	SockData int    `koanf:"sock_data"`
	Name     string `koanf:"name"`
	Group    struct {
		Rank     int `koanf:"rank"`
		BindPort int `koanf:"bind_port"`
	} `koanf:"group"`
	BatchSize int `koanf:"batch_size"`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/node.yaml"),
		WithSections("group"),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/node.yaml" {
		t.Errorf("filePath = %q", l.filePath)
	}
	if !l.sections["group"] {
		t.Error("group section not registered")
	}
	if NewLoader().envPrefix != DefaultEnvPrefix {
		t.Error("default env prefix not applied")
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	writeFile(t, path, `
sync_rule: BSP
sock_data: 5000
group:
  rank: 2
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.GetString("sync_rule"); got != "BSP" {
		t.Errorf("sync_rule = %q", got)
	}
	if got := l.GetInt("group.rank"); got != 2 {
		t.Errorf("group.rank = %d", got)
	}
}

func TestLoader_LoadFile_Errors(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/node.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") should not error, got: %v", err)
	}
}

func TestLoader_LoadEnv_Sections(t *testing.T) {
	t.Setenv("TRAINMESH_GROUP_BIND_PORT", "7946")
	t.Setenv("TRAINMESH_SYNC_RULE", "EASGD")
	t.Setenv("TRAINMESH_SOCK_DATA", "6000")

	l := NewLoader(WithSections("group"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if got := l.GetInt("group.bind_port"); got != 7946 {
		t.Errorf("group.bind_port = %d, want 7946", got)
	}
	if got := l.GetString("sync_rule"); got != "EASGD" {
		t.Errorf("sync_rule = %q, want EASGD", got)
	}
	if got := l.GetInt("sock_data"); got != 6000 {
		t.Errorf("sock_data = %d, want 6000", got)
	}
}

func TestLoader_LoadMap_Dotted(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{
		"group.rank": 3,
		"name":       "alexnet",
	}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Group.Rank != 3 || cfg.Name != "alexnet" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	writeFile(t, path, "sync_rule: BSP\nbatch_size: 128\n")
	t.Setenv("TRAINMESH_SYNC_RULE", "EASGD")

	l := NewLoader(WithConfigFile(path))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SyncRule != "EASGD" {
		t.Errorf("SyncRule = %q, want EASGD (env should override file)", cfg.SyncRule)
	}
	if cfg.BatchSize != 128 {
		t.Errorf("BatchSize = %d, want 128", cfg.BatchSize)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_MergeModel(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "node.yaml")
	writeFile(t, base, "name: alexnet\nbatch_size: 128\nsock_data: 5000\n")
	writeFile(t, filepath.Join(dir, "alexnet.yaml"), "batch_size: 256\n")

	l := NewLoader()
	if err := l.LoadFile(base); err != nil {
		t.Fatal(err)
	}

	merged, err := l.MergeModel(dir, "alexnet")
	if err != nil {
		t.Fatalf("MergeModel() error = %v", err)
	}
	if !merged {
		t.Fatal("MergeModel() should report the merge")
	}
	if got := l.GetInt("batch_size"); got != 256 {
		t.Errorf("batch_size = %d, want 256 from model file", got)
	}
	if got := l.GetInt("sock_data"); got != 5000 {
		t.Errorf("sock_data = %d, base keys must survive the merge", got)
	}

	merged, err = l.MergeModel(dir, "googlenet")
	if err != nil || merged {
		t.Errorf("MergeModel(missing) = %v, %v; want false, nil", merged, err)
	}
}

func TestLoader_AllAndKeys(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"key1": "value1", "key2": 2}); err != nil {
		t.Fatal(err)
	}

	if len(l.All()) < 2 || len(l.Keys()) < 2 || len(l.Raw()) < 2 {
		t.Error("expected at least two keys")
	}
	if l.GetInt("key2") != 2 {
		t.Errorf("GetInt(key2) = %d", l.GetInt("key2"))
	}
}
