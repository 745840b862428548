//go:build unix

package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

const segmentPrefix = "trainmesh-"

// Alloc creates a shared buffer in dir.
func Alloc(dir string, shape []int, dtype domain.DType) (*Buffer, error) {
	n, err := size(shape, dtype)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, segmentPrefix+uuid.NewString()+".buf")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(int64(n)); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("size segment: %w", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("map segment: %w", err)
	}

	return &Buffer{
		shape: append([]int(nil), shape...),
		dtype: dtype,
		path:  path,
		owner: true,
		data:  data,
	}, nil
}

// Open maps the buffer a handle refers to. The caller does not own it.
func Open(h domain.MemoryHandle) (*Buffer, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	path := string(h.Handle)
	if !filepath.IsAbs(path) || !strings.HasPrefix(filepath.Base(path), segmentPrefix) {
		return nil, domain.ErrHandshake.WithDetails("handle does not name a trainmesh segment")
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment: %w", err)
	}
	n := h.Bytes()
	if fi.Size() != int64(n) {
		return nil, domain.ErrHandshake.Detailf("segment holds %d bytes, handle describes %d", fi.Size(), n)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map segment: %w", err)
	}

	return &Buffer{
		shape: append([]int(nil), h.Shape...),
		dtype: h.DType,
		path:  path,
		data:  data,
	}, nil
}

func release(b *Buffer) error {
	err := unix.Munmap(b.data)
	b.data = nil
	if b.owner {
		if rerr := os.Remove(b.path); rerr != nil && !os.IsNotExist(rerr) && err == nil {
			err = rerr
		}
	}
	return err
}
