package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/storage"
)

// EncodeMean renders the auxiliary payload: [header length:4][json header][data].
func EncodeMean(m storage.Mean) ([]byte, error) {
	hdr, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode mean header: %w", err)
	}
	out := make([]byte, 4+len(hdr)+len(m.Data))
	binary.BigEndian.PutUint32(out, uint32(len(hdr)))
	copy(out[4:], hdr)
	copy(out[4+len(hdr):], m.Data)
	return out, nil
}

// DecodeMean parses a payload written by EncodeMean.
func DecodeMean(b []byte) (storage.Mean, error) {
	var m storage.Mean
	if len(b) < 4 {
		return m, domain.ErrHandshake.WithDetails("short aux payload")
	}
	n := int(binary.BigEndian.Uint32(b))
	if n > len(b)-4 {
		return m, domain.ErrHandshake.WithDetails("aux header overruns payload")
	}
	if err := json.Unmarshal(b[4:4+n], &m); err != nil {
		return m, domain.ErrHandshake.WithCause(err).WithDetails("aux header")
	}
	m.Data = append([]byte(nil), b[4+n:]...)
	if want := domain.Elements(m.Shape) * m.DType.Size(); len(m.Data) != want {
		return m, domain.ErrHandshake.Detailf("mean holds %d bytes, want %d", len(m.Data), want)
	}
	return m, nil
}
