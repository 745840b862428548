package config

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yndnr/trainmesh-go/internal/infra/confloader"
)

// Map renders cfg as a nested map keyed by koanf names.
func Map(cfg *TrainConfig) map[string]any {
	m := HandoffMap(cfg)
	m["group"] = map[string]any{
		"rank":           cfg.Group.Rank,
		"size":           cfg.Group.Size,
		"bind_addr":      cfg.Group.BindAddr,
		"bind_port":      cfg.Group.BindPort,
		"advertise_addr": cfg.Group.AdvertiseAddr,
		"seeds":          stringList(cfg.Group.Seeds),
		"wait_timeout":   duration(cfg.Group.WaitTimeout),
	}
	m["rendezvous"] = map[string]any{
		"bind_addr":    cfg.Rendezvous.BindAddr,
		"advertise":    cfg.Rendezvous.Advertise,
		"read_timeout": duration(cfg.Rendezvous.ReadTimeout),
		"join_timeout": duration(cfg.Rendezvous.JoinTimeout),
	}
	m["metrics"] = map[string]any{
		"addr": cfg.Metrics.Addr,
	}
	return m
}

// HandoffMap renders the subset of cfg the loader process needs.
// Group, rendezvous and metrics settings stay with the worker.
func HandoffMap(cfg *TrainConfig) map[string]any {
	return map[string]any{
		"role":        cfg.Role,
		"sync_rule":   cfg.SyncRule,
		"device":      cfg.Device,
		"para_load":   cfg.ParaLoad,
		"port":        cfg.Port,
		"sock_data":   cfg.SockData,
		"name":        cfg.Name,
		"model_dir":   cfg.ModelDir,
		"batch_size":  cfg.BatchSize,
		"input_shape": intList(cfg.InputShape),
		"dtype":       cfg.DType,
		"data_source": cfg.DataSource,
		"debug":       cfg.Debug,
		"rank":        cfg.Rank,
		"size":        cfg.Size,
		"verbose":     cfg.Verbose,
		"worker_id":   cfg.WorkerID,
		"loader": map[string]any{
			"numa":          cfg.Loader.NUMA,
			"shm_dir":       cfg.Loader.ShmDir,
			"ctrl_dir":      cfg.Loader.CtrlDir,
			"data_dir":      cfg.Loader.DataDir,
			"dial_timeout":  duration(cfg.Loader.DialTimeout),
			"dial_rate":     cfg.Loader.DialRate,
			"ready_timeout": duration(cfg.Loader.ReadyTimeout),
		},
		"manifest": map[string]any{
			"dir":       cfg.Manifest.Dir,
			"in_memory": cfg.Manifest.InMemory,
			"dataset":   cfg.Manifest.Dataset,
		},
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
	}
}

// ToStruct encodes the handoff subset of cfg for the loader control channel.
func ToStruct(cfg *TrainConfig) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(HandoffMap(cfg))
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return s, nil
}

// FromStruct decodes a configuration received on the loader control channel
// over the defaults.
func FromStruct(s *structpb.Struct) (*TrainConfig, error) {
	l := confloader.NewLoader()
	if err := l.LoadMap(s.AsMap()); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := l.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// structpb only accepts []any for lists.
func intList(v []int) []any {
	out := make([]any, len(v))
	for i, x := range v {
		out[i] = x
	}
	return out
}

func stringList(v []string) []any {
	out := make([]any, len(v))
	for i, x := range v {
		out[i] = x
	}
	return out
}

func duration(d time.Duration) string {
	return d.String()
}
