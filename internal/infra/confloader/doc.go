// Package confloader provides configuration loading mechanism.
//
// Sources, highest priority first:
//
//  1. Maps (the configuration a worker hands to its loader)
//  2. Environment variables (TRAINMESH_ prefix)
//  3. The per-model YAML file (<model_dir>/<name>.yaml)
//  4. The node configuration file
//  5. Default values
//
// A Watcher reports changes to the node configuration file so that the
// log level can follow it without a restart.
package confloader
