// Package worker implements the device-bound worker role.
//
// A worker merges its configuration, binds its device, joins the
// coordinator over a private channel and, with para_load, spawns a loader
// process and hands it the model's input buffer. Session holds everything a
// running worker owns and tears it down in reverse order.
package worker
