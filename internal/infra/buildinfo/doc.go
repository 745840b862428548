// Package buildinfo provides build information for trainmesh.
//
// The version travels in the channel join offer so that a coordinator and a
// worker built from incompatible releases refuse to pair.
package buildinfo
