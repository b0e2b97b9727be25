// Package cmd implements the command-line interface for the nimbus
// database client. It provides a hierarchical command structure for
// interacting with a nimbus cluster from the shell.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for record operations (get, set, delete, batch, scan, etc.)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See nimbus -help for a list of all commands.
package cmd
