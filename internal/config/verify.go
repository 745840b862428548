package config

import (
	"strings"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

// Verify validates the settings every role depends on.
func Verify(cfg *TrainConfig) error {
	if _, err := domain.ParseSyncRule(cfg.SyncRule); err != nil {
		return err
	}
	if _, err := domain.ParseRole(cfg.Role, cfg.Group.Rank); err != nil {
		return err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return domain.ErrInvalidConfig.WithDetails("port must be in 1..65535")
	}
	if err := verifyGroup(&cfg.Group); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

// VerifyWorker validates the settings a worker needs on top of Verify.
func VerifyWorker(cfg *TrainConfig) error {
	if err := Verify(cfg); err != nil {
		return err
	}
	dev, err := domain.ParseDevice(cfg.Device)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return domain.ErrMissingKey.Detailf("name")
	}
	if cfg.BatchSize <= 0 {
		return domain.ErrInvalidConfig.WithDetails("batch_size must be positive")
	}
	if _, err := domain.ParseDType(cfg.DType); err != nil {
		return err
	}
	if cfg.DataSource != DefaultDataSource {
		return domain.ErrUnsupportedDataSource.Detailf("%q", cfg.DataSource)
	}
	if cfg.ParaLoad {
		// The loader listens on sock_data plus the device index.
		if port := dev.SockDataPort(cfg.SockData); cfg.SockData <= 0 || port > 65535 {
			return domain.ErrInvalidConfig.Detailf("sock_data %d + device index %d must be in 1..65535", cfg.SockData, dev.Index)
		}
		if cfg.Loader.ShmDir == "" {
			return domain.ErrMissingKey.Detailf("loader.shm_dir")
		}
	}
	return nil
}

func verifyGroup(g *GroupSection) error {
	if g.Size < 1 {
		return domain.ErrInvalidRank.Detailf("group.size %d", g.Size)
	}
	if g.Rank < 0 || g.Rank >= g.Size {
		return domain.ErrInvalidRank.Detailf("group.rank %d outside [0,%d)", g.Rank, g.Size)
	}
	return nil
}

func verifyLog(l *LogSection) error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return domain.ErrInvalidConfig.Detailf("log.level %q", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "json", "text", "console", "auto":
	default:
		return domain.ErrInvalidConfig.Detailf("log.format %q", l.Format)
	}
	return nil
}
