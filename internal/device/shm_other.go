//go:build !unix

package device

import (
	"errors"

	"github.com/google/uuid"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

var errNoSharedMemory = errors.New("device: shared buffers need a unix host")

// Alloc creates a process-local buffer. It cannot be opened by another
// process on this platform.
func Alloc(dir string, shape []int, dtype domain.DType) (*Buffer, error) {
	n, err := size(shape, dtype)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		shape: append([]int(nil), shape...),
		dtype: dtype,
		path:  uuid.NewString(),
		owner: true,
		data:  make([]byte, n),
	}, nil
}

// Open is not supported on this platform.
func Open(h domain.MemoryHandle) (*Buffer, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return nil, errNoSharedMemory
}

func release(b *Buffer) error {
	b.data = nil
	return nil
}
