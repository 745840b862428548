// Package rendezvous implements the out-of-band socket a worker uses to find
// the coordinator and start a channel join.
//
// The coordinator binds one TCP port and serves connections one at a time.
// A worker sends requests on a single connection:
//
//	address  -> {"status":"ok","address":"host:port"}
//	connect  -> {"status":"offer","offer":{...}} ... {"status":"connected"}
//
// Requests and replies are JSON frames on a channel.Conn. After "connected"
// both sides close the socket; it never carries payload traffic.
package rendezvous
