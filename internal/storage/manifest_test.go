package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

func sampleDataset(name string, train, val int) *Dataset {
	ds := &Dataset{
		Name: name,
		Mean: Mean{Shape: []int{3, 2, 2}, DType: domain.Float32, Data: make([]byte, 3*2*2*4)},
	}
	for i := 0; i < train; i++ {
		ds.TrainFiles = append(ds.TrainFiles, fmt.Sprintf("train/%04d.hkl", i))
		ds.TrainLabels = append(ds.TrainLabels, int32(i%10))
	}
	for i := 0; i < val; i++ {
		ds.ValFiles = append(ds.ValFiles, fmt.Sprintf("val/%04d.hkl", i))
		ds.ValLabels = append(ds.ValLabels, int32(i%10))
	}
	ds.Mean.Data[0] = 7
	return ds
}

func TestBadgerManifest_ImportLoad(t *testing.T) {
	m := NewBadgerManifest(openMemory(t))
	ctx := context.Background()

	if err := m.Import(ctx, sampleDataset("imagenet", 40, 20)); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	cfg := config.Default()
	ds, err := m.Load(ctx, cfg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ds.TrainFiles) != 40 || len(ds.ValFiles) != 20 {
		t.Errorf("got %d train, %d val files", len(ds.TrainFiles), len(ds.ValFiles))
	}
	if ds.Mean.Data[0] != 7 || len(ds.Mean.Data) != 48 {
		t.Error("mean image not returned verbatim")
	}
}

func TestBadgerManifest_DebugTruncates(t *testing.T) {
	m := NewBadgerManifest(openMemory(t))
	ctx := context.Background()
	if err := m.Import(ctx, sampleDataset("imagenet", 40, 20)); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Debug = true
	ds, err := m.Load(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.TrainFiles) != DebugTrainFiles || len(ds.TrainLabels) != DebugTrainFiles {
		t.Errorf("train = %d files, %d labels", len(ds.TrainFiles), len(ds.TrainLabels))
	}
	if len(ds.ValFiles) != DebugValFiles || len(ds.ValLabels) != DebugValFiles {
		t.Errorf("val = %d files, %d labels", len(ds.ValFiles), len(ds.ValLabels))
	}
	if ds.TrainFiles[15] != "train/0015.hkl" {
		t.Errorf("truncation should keep the first files, got %s", ds.TrainFiles[15])
	}
}

func TestBadgerManifest_Errors(t *testing.T) {
	m := NewBadgerManifest(openMemory(t))
	ctx := context.Background()

	cfg := config.Default()
	cfg.DataSource = "lmdb"
	if _, err := m.Load(ctx, cfg); !errors.Is(err, domain.ErrUnsupportedDataSource) {
		t.Errorf("lmdb error = %v, want ErrUnsupportedDataSource", err)
	}

	cfg.DataSource = "hkl"
	cfg.Manifest.Dataset = "cifar"
	if _, err := m.Load(ctx, cfg); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("missing dataset error = %v", err)
	}

	bad := sampleDataset("broken", 2, 2)
	bad.TrainLabels = bad.TrainLabels[:1]
	if err := m.Import(ctx, bad); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("Import(mismatched labels) error = %v", err)
	}

	short := sampleDataset("short-mean", 1, 1)
	short.Mean.Data = short.Mean.Data[:4]
	if err := m.Import(ctx, short); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("Import(short mean) error = %v", err)
	}
}

func TestBadgerManifest_Names(t *testing.T) {
	m := NewBadgerManifest(openMemory(t))
	ctx := context.Background()
	for _, n := range []string{"imagenet", "cifar"} {
		if err := m.Import(ctx, sampleDataset(n, 1, 1)); err != nil {
			t.Fatal(err)
		}
	}
	names, err := m.Names(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "cifar,imagenet" {
		t.Errorf("Names() = %v", names)
	}
}

func TestParseList(t *testing.T) {
	in := "# train split\ntrain/0000.hkl 3\n\ntrain/0001.hkl 9\n"
	files, labels, err := ParseList(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[1] != "train/0001.hkl" || labels[1] != 9 {
		t.Errorf("ParseList = %v %v", files, labels)
	}

	if _, _, err := ParseList(strings.NewReader("only-a-name\n")); err == nil {
		t.Error("expected error for missing label")
	}
	if _, _, err := ParseList(strings.NewReader("f x\n")); err == nil {
		t.Error("expected error for non-numeric label")
	}
}
