// Package daemon coordinates the long-running fhirhose process.
//
// It wires configuration, queue storage, the workflow manager, and the inbox
// watcher into a single lifecycle with flock-based locking to prevent multiple
// instances. The daemon exposes queue maintenance helpers, manages manual
// document ingestion, and emits dependency health summaries for the IPC layer.
//
// Keep orchestration logic here: individual pipeline stages live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
