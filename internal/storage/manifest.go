package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

// Debug runs use only the first files of each split.
const (
	DebugTrainFiles = 16
	DebugValFiles   = 8
)

// Mean is the mean image subtracted from every batch.
type Mean struct {
	Shape []int        `json:"shape"`
	DType domain.DType `json:"dtype"`
	Data  []byte       `json:"-"`
}

// Dataset is what a worker trains on.
type Dataset struct {
	Name        string   `json:"name"`
	TrainFiles  []string `json:"train_files"`
	TrainLabels []int32  `json:"train_labels"`
	ValFiles    []string `json:"val_files"`
	ValLabels   []int32  `json:"val_labels"`
	Mean        Mean     `json:"mean"`
}

// Validate checks that files and labels line up and the mean is complete.
func (d *Dataset) Validate() error {
	if d.Name == "" {
		return domain.ErrMissingKey.WithDetails("dataset name")
	}
	if len(d.TrainFiles) != len(d.TrainLabels) {
		return domain.ErrInvalidConfig.Detailf("%d train files, %d labels", len(d.TrainFiles), len(d.TrainLabels))
	}
	if len(d.ValFiles) != len(d.ValLabels) {
		return domain.ErrInvalidConfig.Detailf("%d val files, %d labels", len(d.ValFiles), len(d.ValLabels))
	}
	if want := domain.Elements(d.Mean.Shape) * d.Mean.DType.Size(); len(d.Mean.Data) != want {
		return domain.ErrInvalidConfig.Detailf("mean holds %d bytes, %s%v needs %d", len(d.Mean.Data), d.Mean.DType, d.Mean.Shape, want)
	}
	return nil
}

// truncate keeps the first n train and m val entries.
func (d *Dataset) truncate(n, m int) {
	if len(d.TrainFiles) > n {
		d.TrainFiles, d.TrainLabels = d.TrainFiles[:n], d.TrainLabels[:n]
	}
	if len(d.ValFiles) > m {
		d.ValFiles, d.ValLabels = d.ValFiles[:m], d.ValLabels[:m]
	}
}

// Manifest is the data-manifest collaborator.
type Manifest interface {
	Load(ctx context.Context, cfg *config.TrainConfig) (*Dataset, error)
}

// ErrDatasetNotFound indicates no manifest was imported under the name.
var ErrDatasetNotFound = errors.New("dataset not found")

const keyPrefix = "dataset/"

func metaKey(name string) string { return keyPrefix + name + "/meta" }
func meanKey(name string) string { return keyPrefix + name + "/mean" }

// BadgerManifest stores manifests in a BadgerStore.
type BadgerManifest struct {
	store *BadgerStore
}

// NewBadgerManifest wraps store.
func NewBadgerManifest(store *BadgerStore) *BadgerManifest {
	return &BadgerManifest{store: store}
}

// Import writes (or replaces) ds.
func (m *BadgerManifest) Import(ctx context.Context, ds *Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	meta, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return m.store.Update(ctx, map[string][]byte{
		metaKey(ds.Name): meta,
		meanKey(ds.Name): ds.Mean.Data,
	})
}

// Get returns the dataset stored under name.
func (m *BadgerManifest) Get(ctx context.Context, name string) (*Dataset, error) {
	meta, err := m.store.Get(ctx, []byte(metaKey(name)))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrDatasetNotFound, name)
		}
		return nil, err
	}
	var ds Dataset
	if err := json.Unmarshal(meta, &ds); err != nil {
		return nil, fmt.Errorf("decode dataset %q: %w", name, err)
	}
	if ds.Mean.Data, err = m.store.Get(ctx, []byte(meanKey(name))); err != nil {
		return nil, fmt.Errorf("read mean of %q: %w", name, err)
	}
	return &ds, nil
}

// Names lists the imported datasets.
func (m *BadgerManifest) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := m.store.Scan(ctx, []byte(keyPrefix), true, func(key, _ []byte) bool {
		k := strings.TrimPrefix(string(key), keyPrefix)
		if name, ok := strings.CutSuffix(k, "/meta"); ok {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	return names, err
}

// Load implements Manifest: it reads cfg.Manifest.Dataset, requires the hkl
// data source and truncates debug runs.
func (m *BadgerManifest) Load(ctx context.Context, cfg *config.TrainConfig) (*Dataset, error) {
	if cfg.DataSource != "hkl" {
		return nil, domain.ErrUnsupportedDataSource.Detailf("%q", cfg.DataSource)
	}
	ds, err := m.Get(ctx, cfg.Manifest.Dataset)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		ds.truncate(DebugTrainFiles, DebugValFiles)
	}
	return ds, nil
}
