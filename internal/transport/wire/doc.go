// Package wire implements the framing shared by every trainmesh socket.
//
// Each message is a length-prefixed frame carrying a Tag and a payload,
// protected by a murmur3 checksum. Control payloads are JSON; raw buffers
// (mean images) travel as bytes.
package wire
