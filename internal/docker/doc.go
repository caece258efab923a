// Package docker provides Docker Engine API wrappers for running the
// Coretex Node container.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container labels recording which node configuration a container
//     was started with
//   - Image operations: pull, local repo digests, remote manifest digest
//   - Container and network lifecycle: run, inspect, stop, remove
//   - Reading the CPU and memory limits of the daemon
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
