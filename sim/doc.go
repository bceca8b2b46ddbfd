// Package sim provides the discrete-event engine of a hybrid
// quantum/classical compute cloud simulation.
//
// # Reading Guide
//
// Start with these three files to understand the simulation core:
//   - kernel.go: the virtual clock and event loop, the only driver of progress
//   - container.go / mutex.go: the blocking resource primitives devices are built on
//   - broker.go: the per-job QPU->CPU phase state machine
//
// # Architecture
//
// Every job and device activity is a cooperative task: blocking operations
// (timeouts, container and mutex waits, polling retries) register a
// continuation and return to the kernel loop. Exactly one task runs between
// suspension points, so simulation state is never observed mid-update, and
// same-instant events run in submission order for deterministic replay.
//
// Devices own local capacity (qubit container; CPU and memory-bandwidth
// containers) plus a priority mutex gating admission against maintenance.
// Qubit placement goes through the shared Allocator: one global critical
// section over every device topology, required because releasing a
// reservation restores edges based on the current global coloring.
//
// The Environment wires kernel, event bus, ledger, device fleet, broker and
// job feed together; cmd/ exposes it as a CLI.
package sim
