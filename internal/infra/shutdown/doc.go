// Package shutdown provides graceful shutdown for trainmesh nodes.
//
// A Handler waits for SIGINT, SIGTERM or a programmatic Trigger and then runs
// the registered hooks in reverse registration order under a timeout. A
// worker registers its loader teardown after its channel, so the loader is
// stopped before the coordinator channel is disconnected.
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown(closeChannel)
//	h.OnShutdown(stopLoader)
//	err := h.Wait()
package shutdown
