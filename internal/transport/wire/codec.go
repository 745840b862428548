package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

// Frame layout, all fields big endian:
//
//	[length:4][murmur3:4][tag:4][payload...]
//
// length counts checksum, tag and payload. The checksum covers tag and payload.
const (
	lengthSize = 4
	sumSize    = 4
	tagSize    = 4

	// HeaderSize is the fixed prefix in front of every payload.
	HeaderSize = lengthSize + sumSize + tagSize

	// DefaultMaxFrame bounds a single payload; large enough for a mean image.
	DefaultMaxFrame = 256 << 20
)

// Frame is one tagged message.
type Frame struct {
	Tag     Tag
	Payload []byte
}

// Encode renders a frame into a new buffer.
func Encode(tag Tag, payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(sumSize+tagSize+len(payload)))
	binary.BigEndian.PutUint32(out[8:12], uint32(tag))
	copy(out[HeaderSize:], payload)
	binary.BigEndian.PutUint32(out[4:8], checksum(out[8:]))
	return out
}

// WriteFrame writes one frame to w in a single Write call.
func WriteFrame(w io.Writer, tag Tag, payload []byte) error {
	if _, err := w.Write(Encode(tag, payload)); err != nil {
		return fmt.Errorf("wire: write %s frame: %w", tag, err)
	}
	return nil
}

// ReadFrame reads one frame from r. Payloads above max bytes are rejected
// before any allocation; max <= 0 means DefaultMaxFrame.
func ReadFrame(r io.Reader, max int) (Frame, error) {
	if max <= 0 {
		max = DefaultMaxFrame
	}

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:lengthSize]); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(hdr[:lengthSize])
	if length < sumSize+tagSize {
		return Frame{}, domain.ErrChecksumMismatch.Detailf("short frame length %d", length)
	}
	if int64(length)-sumSize-tagSize > int64(max) {
		return Frame{}, domain.ErrFrameTooLarge.Detailf("%d bytes, limit %d", length-sumSize-tagSize, max)
	}

	if _, err := io.ReadFull(r, hdr[lengthSize:]); err != nil {
		return Frame{}, fmt.Errorf("wire: read header: %w", io.ErrUnexpectedEOF)
	}
	want := binary.BigEndian.Uint32(hdr[4:8])

	body := make([]byte, tagSize+int(length)-sumSize-tagSize)
	copy(body, hdr[8:12])
	if _, err := io.ReadFull(r, body[tagSize:]); err != nil {
		return Frame{}, fmt.Errorf("wire: read payload: %w", io.ErrUnexpectedEOF)
	}

	if got := checksum(body); got != want {
		return Frame{}, domain.ErrChecksumMismatch.Detailf("got %08x want %08x", got, want)
	}

	return Frame{
		Tag:     Tag(binary.BigEndian.Uint32(body[:tagSize])),
		Payload: body[tagSize:],
	}, nil
}

// WriteJSON encodes v as JSON and writes it as one frame.
func WriteJSON(w io.Writer, tag Tag, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: marshal %s: %w", tag, err)
	}
	return WriteFrame(w, tag, payload)
}

// Decode unmarshals a JSON frame payload, checking the tag first.
func (f Frame) Decode(want Tag, v any) error {
	if f.Tag != want {
		return domain.ErrUnexpectedTag.Detailf("got %s want %s", f.Tag, want)
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("wire: unmarshal %s: %w", want, err)
	}
	return nil
}

func checksum(b []byte) uint32 {
	return murmur3.Sum32(b)
}
