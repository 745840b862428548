// Package main provides the entry point for trainmesh-cli.
//
// trainmesh-cli is the operator tool for a trainmesh group:
//
//   - address: query a coordinator's rendezvous address
//   - manifest import|show|list: manage the dataset manifest store
//   - version: print build information
//
// Usage:
//
//	trainmesh-cli address --coordinator 10.0.0.1:5555
//	trainmesh-cli manifest --dir /var/lib/trainmesh/manifest import --name imagenet --train-list train.txt
package main
