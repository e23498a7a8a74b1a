// Package cmd implements the command-line interface for the sKV embedded
// key-value store. It provides a hierarchical command structure for
// inspecting and manipulating a local store.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (get, set, delete, list, watch, etc.)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See skv -help for a list of all commands.
package cmd
