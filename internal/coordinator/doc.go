// Package coordinator implements the parameter-holding role: it binds the
// rendezvous socket, joins every worker over a private channel and keeps
// those channels in a Registry.
//
// Each rendezvous connection moves through
//
//	LISTENING -> ACCEPTED -> JOINED -> REGISTERED
//
// and is served to completion before the next one is accepted, so the serve
// loop is the only writer of the Registry.
package coordinator
