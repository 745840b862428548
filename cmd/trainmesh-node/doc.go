// Package main provides the entry point for trainmesh-node.
//
// One trainmesh-node runs per rank of the process group. Rank 0 becomes the
// coordinator and serves worker joins; every other rank is a worker bound to
// one device. Workers started with para_load spawn this same binary as
// "trainmesh-node loader" to feed their input buffer.
//
// Usage:
//
//	trainmesh-node run --config /etc/trainmesh/node.yaml
//	TRAINMESH_GROUP_RANK=3 TRAINMESH_DEVICE=gpu3 trainmesh-node run --config node.yaml
package main
