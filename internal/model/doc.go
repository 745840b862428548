// Package model is the model-building collaborator of a worker.
//
// Network definitions and training math live elsewhere; this package only
// knows, per model name, the input layout it needs, and allocates the
// model's input buffer (shared_x) in shared device memory so a loader can
// fill it.
package model
