// Package process ties a rank of the process group to its coordination
// role. A Process owns the group channel and a Role strategy: rank 0
// coordinates and every other rank is a worker, unless the configuration
// names the role explicitly.
package process
