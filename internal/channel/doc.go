// Package channel provides the private two-party channels of a trainmesh
// job.
//
// Conn is a tagged message channel over any stream socket; the worker and
// its loader talk over one. Intercomm is the coordinator/worker channel,
// created by a join: the coordinator opens an Acceptor and sends its Offer
// over the rendezvous socket, the worker Dials the offered port, and both
// sides run a self-test in which the coordinator broadcasts Sentinel.
package channel
