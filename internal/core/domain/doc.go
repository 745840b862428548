// Package domain defines the core domain models for trainmesh.
//
// Domain models are pure values without IO dependencies:
//
//   - Identity: rank, group size and coordination role of a process
//   - SyncRule: EASGD / BSP and the verbosity policy derived from it
//   - DeviceBinding: device identifier, NUMA placement and data socket offset
//   - MemoryHandle: cross-process reference to a device buffer
//   - Errors: coded domain errors (topology, rendezvous, config, loader, wire)
package domain
