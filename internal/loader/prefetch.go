package loader

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/x448/float16"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/device"
	"github.com/yndnr/trainmesh-go/internal/model"
	"github.com/yndnr/trainmesh-go/internal/storage"
)

// Prefetcher fills the shared buffer with the batch stored in file.
type Prefetcher interface {
	Fill(ctx context.Context, mode, file string, dst *device.Buffer) error
}

// PrefetcherFunc adapts a function to Prefetcher.
type PrefetcherFunc func(ctx context.Context, mode, file string, dst *device.Buffer) error

func (f PrefetcherFunc) Fill(ctx context.Context, mode, file string, dst *device.Buffer) error {
	return f(ctx, mode, file, dst)
}

// FilePrefetcher reads pre-decoded batch files whose bytes match the buffer
// layout exactly. Relative names resolve against Dir.
type FilePrefetcher struct {
	Dir string
}

func (p FilePrefetcher) Fill(ctx context.Context, mode, file string, dst *device.Buffer) error {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.Dir, file)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s batch: %w", mode, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.Size() != int64(dst.Len()) {
		return fmt.Errorf("batch %s holds %d bytes, buffer %s", file, fi.Size(), dst)
	}
	if _, err := io.ReadFull(f, dst.Bytes()); err != nil {
		return fmt.Errorf("read batch %s: %w", file, err)
	}
	return ctx.Err()
}

// MeanSubtract subtracts the per-sample mean image from every sample in
// buf. The mean is float32 with the per-sample element count.
func MeanSubtract(buf *device.Buffer, mean storage.Mean, layout model.Layout) error {
	if len(mean.Data) == 0 {
		return nil
	}
	if mean.DType != domain.Float32 {
		return domain.ErrHandshake.Detailf("mean dtype %s, want float32", mean.DType)
	}
	per := domain.Elements(mean.Shape)
	total := domain.Elements(buf.Shape())
	if per == 0 || total%per != 0 {
		return domain.ErrHandshake.Detailf("mean %v does not tile buffer %v", mean.Shape, buf.Shape())
	}
	batch := total / per

	at := func(i int) float32 {
		var j int
		if layout == model.LayoutBC01 {
			j = i % per
		} else {
			j = i / batch
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(mean.Data[j*4:]))
	}

	switch buf.DType() {
	case domain.Float32:
		xs := buf.Float32s()
		for i := range xs {
			xs[i] -= at(i)
		}
	case domain.Float16:
		xs := buf.Uint16s()
		for i := range xs {
			v := float16.Frombits(xs[i]).Float32() - at(i)
			xs[i] = float16.Fromfloat32(v).Bits()
		}
	default:
		return domain.ErrHandshake.Detailf("cannot subtract mean from %s buffer", buf.DType())
	}
	return nil
}
