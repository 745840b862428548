// Package config provides the node configuration for trainmesh.
//
//   - spec.go: TrainConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation for every role and for workers
//   - inject.go: Identity injection and per-model YAML merge
//   - serialize.go: The serializable subset handed to the loader
//
// Configuration is loaded via internal/infra/confloader from the node file
// and TRAINMESH_ environment variables.
package config
