package config

import (
	"os"
	"time"
)

// Default configuration values.
const (
	DefaultRole       = "auto"
	DefaultSyncRule   = "BSP"
	DefaultPort       = 5555
	DefaultSockData   = 5000
	DefaultModel      = "alexnet"
	DefaultBatchSize  = 128
	DefaultDType      = "float32"
	DefaultDataSource = "hkl"

	DefaultGroupBindAddr = "0.0.0.0"
	DefaultGroupBindPort = 7946
	DefaultWaitTimeout   = 60 * time.Second

	DefaultRendezvousBind = "0.0.0.0"
	DefaultReadTimeout    = 30 * time.Second
	DefaultJoinTimeout    = 30 * time.Second

	DefaultShmDir       = "/dev/shm"
	DefaultDialTimeout  = 30 * time.Second
	DefaultDialRate     = 20
	DefaultReadyTimeout = 120 * time.Second

	DefaultManifestDir = "/var/lib/trainmesh/manifest"
	DefaultDataset     = "imagenet"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "auto"
)

// Default returns the default node configuration.
func Default() *TrainConfig {
	return &TrainConfig{
		Role:       DefaultRole,
		SyncRule:   DefaultSyncRule,
		Port:       DefaultPort,
		SockData:   DefaultSockData,
		Name:       DefaultModel,
		BatchSize:  DefaultBatchSize,
		DType:      DefaultDType,
		DataSource: DefaultDataSource,
		Size:       1,
		Group: GroupSection{
			Size:        1,
			BindAddr:    DefaultGroupBindAddr,
			BindPort:    DefaultGroupBindPort,
			WaitTimeout: DefaultWaitTimeout,
		},
		Rendezvous: RendezvousSection{
			BindAddr:    DefaultRendezvousBind,
			ReadTimeout: DefaultReadTimeout,
			JoinTimeout: DefaultJoinTimeout,
		},
		Loader: LoaderSection{
			NUMA:         true,
			ShmDir:       DefaultShmDir,
			CtrlDir:      os.TempDir(),
			DialTimeout:  DefaultDialTimeout,
			DialRate:     DefaultDialRate,
			ReadyTimeout: DefaultReadyTimeout,
		},
		Manifest: ManifestSection{
			Dir:     DefaultManifestDir,
			Dataset: DefaultDataset,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
