// Package command provides the trainmesh-cli commands on urfave/cli/v2.
//
//   - address: ask a coordinator for its rendezvous address
//   - manifest: import, show and list datasets in the manifest store
//   - version: print build information
package command
