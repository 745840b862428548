// Package device provides device-resident buffers that another process can
// map through an opaque memory handle.
//
// Buffers are backed by a file in a shared memory directory (/dev/shm on
// Linux) mapped MAP_SHARED, so the loader writes batches straight into the
// worker's input buffer. The allocating process owns the buffer and removes
// the backing file on Close.
package device
