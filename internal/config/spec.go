// Package config defines the trainmesh node configuration structure.
package config

import "time"

// TrainConfig is the root configuration shared by coordinator, worker and
// loader processes. Top-level keys are flat, matching the model YAML files
// that are merged over them.
type TrainConfig struct {
	// Role selects the coordination role: auto, coordinator or worker.
	// With auto, rank 0 coordinates.
	Role string `koanf:"role"`

	// SyncRule is the synchronization rule, EASGD or BSP.
	SyncRule string `koanf:"sync_rule"`

	// Device is the accelerator this worker binds, e.g. "gpu3".
	Device string `koanf:"device"`

	// ParaLoad enables the parallel loader process.
	ParaLoad bool `koanf:"para_load"`

	// Port is the coordinator's rendezvous TCP port.
	Port int `koanf:"port"`

	// SockData is the base port of the worker-to-loader data socket.
	// The device index is added before the configuration is handed on.
	SockData int `koanf:"sock_data"`

	// Name selects the model (alexnet, googlenet).
	Name      string `koanf:"name"`
	ModelDir  string `koanf:"model_dir"`
	BatchSize int    `koanf:"batch_size"`

	// InputShape overrides the model's per-sample input shape (C, H, W).
	InputShape []int  `koanf:"input_shape"`
	DType      string `koanf:"dtype"`

	DataSource string `koanf:"data_source"`
	Debug      bool   `koanf:"debug"`

	// Injected by the worker before the configuration leaves the process.
	Rank     int    `koanf:"rank"`
	Size     int    `koanf:"size"`
	Verbose  bool   `koanf:"verbose"`
	WorkerID string `koanf:"worker_id"`

	Group      GroupSection      `koanf:"group"`
	Rendezvous RendezvousSection `koanf:"rendezvous"`
	Loader     LoaderSection     `koanf:"loader"`
	Manifest   ManifestSection   `koanf:"manifest"`
	Log        LogSection        `koanf:"log"`
	Metrics    MetricsSection    `koanf:"metrics"`
}

// GroupSection configures the group channel.
type GroupSection struct {
	// Rank and Size are assigned by the launcher.
	Rank int `koanf:"rank"`
	Size int `koanf:"size"`

	BindAddr      string `koanf:"bind_addr"`
	BindPort      int    `koanf:"bind_port"`
	AdvertiseAddr string `koanf:"advertise_addr"`

	// Seeds is the list of group members to join ("host:port").
	Seeds []string `koanf:"seeds"`

	// WaitTimeout bounds how long a process waits for the full group.
	WaitTimeout time.Duration `koanf:"wait_timeout"`
}

// RendezvousSection configures the coordinator's rendezvous listener.
type RendezvousSection struct {
	// BindAddr is the host the rendezvous listener binds.
	BindAddr string `koanf:"bind_addr"`

	// Advertise is the host workers use to reach the coordinator.
	// Empty means the first non-loopback interface address.
	Advertise string `koanf:"advertise"`

	ReadTimeout time.Duration `koanf:"read_timeout"`
	JoinTimeout time.Duration `koanf:"join_timeout"`
}

// LoaderSection configures the spawned loader process.
type LoaderSection struct {
	// NUMA wraps the loader in numactl when the tool is available.
	NUMA bool `koanf:"numa"`

	// ShmDir holds shared device buffers (/dev/shm on Linux).
	ShmDir string `koanf:"shm_dir"`

	// CtrlDir holds the worker's control socket.
	CtrlDir string `koanf:"ctrl_dir"`

	// DataDir is where relative batch file names resolve. Empty means the
	// node's working directory.
	DataDir string `koanf:"data_dir"`

	DialTimeout  time.Duration `koanf:"dial_timeout"`
	DialRate     float64       `koanf:"dial_rate"`
	ReadyTimeout time.Duration `koanf:"ready_timeout"`
}

// ManifestSection configures the dataset manifest store.
type ManifestSection struct {
	Dir      string `koanf:"dir"`
	InMemory bool   `koanf:"in_memory"`
	Dataset  string `koanf:"dataset"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the prometheus endpoint. Empty Addr disables it.
type MetricsSection struct {
	Addr string `koanf:"addr"`
}

// Sections lists the nested configuration sections, used to map
// environment variables onto nested keys.
var Sections = []string{"group", "rendezvous", "loader", "manifest", "log", "metrics"}
