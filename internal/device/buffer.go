package device

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/dustin/go-humanize"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

// Buffer is a shared, fixed-size device buffer.
type Buffer struct {
	shape []int
	dtype domain.DType
	path  string
	owner bool

	mu       sync.Mutex
	data     []byte
	exported bool
	closed   bool
}

// Shape returns the buffer shape.
func (b *Buffer) Shape() []int { return append([]int(nil), b.shape...) }

// DType returns the element type.
func (b *Buffer) DType() domain.DType { return b.dtype }

// Len returns the buffer size in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the mapped memory. It is invalid after Close.
func (b *Buffer) Bytes() []byte { return b.data }

// Float32s views the buffer as float32 elements.
func (b *Buffer) Float32s() []float32 {
	if b.dtype != domain.Float32 || len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b.data[0])), len(b.data)/4)
}

// Uint16s views the buffer as raw 16-bit elements, used for float16.
func (b *Buffer) Uint16s() []uint16 {
	if b.dtype != domain.Float16 || len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&b.data[0])), len(b.data)/2)
}

// Owner reports whether this process allocated the buffer.
func (b *Buffer) Owner() bool { return b.owner }

// Export returns the memory handle of an owned buffer. A buffer is exported
// at most once so that only one reader ever maps it.
func (b *Buffer) Export() (domain.MemoryHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return domain.MemoryHandle{}, domain.ErrChannelClosed.WithDetails("buffer closed")
	}
	if !b.owner {
		return domain.MemoryHandle{}, domain.ErrHandshake.WithDetails("only the owner can export a buffer")
	}
	if b.exported {
		return domain.MemoryHandle{}, domain.ErrHandleConsumed.WithDetails("buffer already exported")
	}
	b.exported = true
	return domain.MemoryHandle{
		Shape:  b.Shape(),
		DType:  b.dtype,
		Handle: []byte(b.path),
	}, nil
}

// Close unmaps the buffer; the owner also removes the backing file.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return release(b)
}

// String describes the buffer without its handle.
func (b *Buffer) String() string {
	return fmt.Sprintf("%s%v (%s)", b.dtype, b.shape, humanize.IBytes(uint64(len(b.data))))
}

func size(shape []int, dtype domain.DType) (int, error) {
	n := domain.Elements(shape) * dtype.Size()
	if n <= 0 {
		return 0, domain.ErrInvalidConfig.Detailf("buffer %s%v is empty", dtype, shape)
	}
	return n, nil
}
