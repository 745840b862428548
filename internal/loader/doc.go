// Package loader implements the loader-process side of the worker/loader
// handoff and the batch loop that follows it.
//
// The loader talks to its worker over a tagged control channel:
//
//	worker -> loader   99 config        merged configuration (protobuf Struct)
//	worker -> loader   -- handle        over the data socket, after config
//	worker -> loader   66 aux           mean image
//	loader -> worker   50 ready
//	worker -> loader   43 mode          "train", "val" or "stop"
//	worker -> loader   40 filename      batch file for the mode above
//	loader -> worker   55 copy_finished
//
// The data socket is only opened once the configuration arrived, so the
// handle can never be read first. After "stop" the loader is terminal.
package loader
