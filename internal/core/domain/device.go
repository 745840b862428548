package domain

import (
	"strconv"
	"strings"
)

// numaSplit is the first device index attached to the second socket on the
// two-socket hosts this layout assumes (devices 0-3 on node 0, 4-7 on node 1).
const numaSplit = 3

// DeviceBinding is a parsed device identifier such as "gpu7".
type DeviceBinding struct {
	Name  string // full identifier, e.g. "gpu7"
	Kind  string // leading non-digit part, e.g. "gpu"
	Index int    // trailing index, e.g. 7
}

// ParseDevice splits a device identifier into kind and trailing index.
func ParseDevice(id string) (DeviceBinding, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DeviceBinding{}, ErrMissingKey.WithDetails("device")
	}

	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return DeviceBinding{}, ErrInvalidDevice.Detailf("%q does not end in a digit", id)
	}

	idx, err := strconv.Atoi(id[i:])
	if err != nil {
		return DeviceBinding{}, ErrInvalidDevice.WithCause(err).Detailf("%q", id)
	}

	return DeviceBinding{Name: id, Kind: id[:i], Index: idx}, nil
}

// NUMANode returns the placement hint for a loader serving this device.
func (d DeviceBinding) NUMANode() int {
	return NUMANodeFor(d.Index)
}

// NUMANodeFor maps a device index to its NUMA node.
func NUMANodeFor(index int) int {
	if index > numaSplit {
		return 1
	}
	return 0
}

// SockDataPort offsets the configured base port by the device index so that
// every worker/loader pair on a host gets its own data socket.
func (d DeviceBinding) SockDataPort(base int) int {
	return base + d.Index
}

// String returns the device identifier.
func (d DeviceBinding) String() string {
	return d.Name
}
