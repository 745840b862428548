package config

import (
	"fmt"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/infra/confloader"
)

// Inject writes the process identity into cfg before it is handed to the
// model builder or the loader: rank, size, verbose, worker_id, the
// normalised device name, and the per-device data socket port.
//
// Inject must run exactly once per configuration; sock_data is offset in place.
func Inject(cfg *TrainConfig, id domain.Identity, rule domain.SyncRule, dev domain.DeviceBinding) {
	cfg.Rank = id.Rank
	cfg.Size = id.Size
	cfg.Verbose = rule.Verbose(id.Rank)
	cfg.WorkerID = id.WorkerID()
	cfg.Device = dev.Name
	cfg.SockData = dev.SockDataPort(cfg.SockData)
}

// MergeModel returns a copy of cfg with <model_dir>/<name>.yaml merged over
// it. Keys from the model file win, except for the fields written by Inject:
// the process identity is fixed once injected.
func MergeModel(cfg *TrainConfig) (*TrainConfig, bool, error) {
	l := confloader.NewLoader()
	if err := l.LoadMap(Map(cfg)); err != nil {
		return nil, false, err
	}

	merged, err := l.MergeModel(cfg.ModelDir, cfg.Name)
	if err != nil {
		return nil, false, fmt.Errorf("merge model config: %w", err)
	}
	if !merged {
		cp := *cfg
		return &cp, false, nil
	}

	out := Default()
	out.Group.Seeds = nil
	if err := l.Unmarshal(out); err != nil {
		return nil, false, fmt.Errorf("unmarshal merged config: %w", err)
	}
	keepIdentity(out, cfg)
	return out, true, nil
}

func keepIdentity(dst, src *TrainConfig) {
	dst.Rank = src.Rank
	dst.Size = src.Size
	dst.Verbose = src.Verbose
	dst.WorkerID = src.WorkerID
	dst.Device = src.Device
	dst.SockData = src.SockData
}

// Load reads the node configuration from path (optional) and the
// environment over the defaults.
func Load(path string) (*TrainConfig, error) {
	opts := []confloader.Option{confloader.WithSections(Sections...)}
	if path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
