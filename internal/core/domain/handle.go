package domain

import (
	"fmt"
	"strings"
)

// DType is the element type of a device buffer.
type DType string

const (
	Float32 DType = "float32"
	Float16 DType = "float16"
	Int32   DType = "int32"
	Uint8   DType = "uint8"
)

// ParseDType parses an element type name.
func ParseDType(s string) (DType, error) {
	switch DType(strings.ToLower(strings.TrimSpace(s))) {
	case Float32:
		return Float32, nil
	case Float16:
		return Float16, nil
	case Int32:
		return Int32, nil
	case Uint8:
		return Uint8, nil
	default:
		return "", ErrInvalidConfig.Detailf("dtype %q", s)
	}
}

// Size returns the element width in bytes, or 0 for unknown types.
func (t DType) Size() int {
	switch t {
	case Float32, Int32:
		return 4
	case Float16:
		return 2
	case Uint8:
		return 1
	default:
		return 0
	}
}

// Elements returns the number of elements described by shape.
func Elements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// MemoryHandle is an opaque cross-process reference to a device buffer.
//
// The producer keeps owning the buffer; the handle stays valid for the
// buffer's whole lifetime and is consumed at most once by a single reader.
type MemoryHandle struct {
	Shape  []int  `json:"shape"`
	DType  DType  `json:"dtype"`
	Handle []byte `json:"handle"`
}

// Bytes returns the buffer length the handle refers to.
func (h MemoryHandle) Bytes() int {
	return Elements(h.Shape) * h.DType.Size()
}

// Validate checks the handle metadata.
func (h MemoryHandle) Validate() error {
	if len(h.Handle) == 0 {
		return ErrHandshake.WithDetails("empty memory handle")
	}
	if h.DType.Size() == 0 {
		return ErrHandshake.Detailf("unknown dtype %q", h.DType)
	}
	for _, d := range h.Shape {
		if d <= 0 {
			return ErrHandshake.Detailf("invalid shape %v", h.Shape)
		}
	}
	if len(h.Shape) == 0 {
		return ErrHandshake.WithDetails("empty shape")
	}
	return nil
}

// String renders the metadata without the opaque handle bytes.
func (h MemoryHandle) String() string {
	return fmt.Sprintf("%s%v", h.DType, h.Shape)
}
