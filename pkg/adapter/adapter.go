// Package adapter defines the lifecycle contract shared by every network
// front end run by the server.
package adapter

import "context"

// Adapter is a network server that can be managed by server.Server.
//
// Lifecycle:
//  1. Creation: the adapter is built from its configuration section
//  2. Startup: Serve() opens its listener and blocks until shutdown
//  3. Shutdown: Stop() or context cancellation drains in-flight work
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve(), and more than once.
type Adapter interface {
	// Serve starts the server and blocks until the context is cancelled,
	// Stop is called, or an unrecoverable error occurs.
	//
	// If Serve returns an error before shutdown was requested, server.Server
	// treats it as fatal and stops all other adapters.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if startup fails or shutdown is not graceful
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown and waits for it, bounded by ctx.
	//
	// Implementations must be idempotent and safe to call before Serve.
	Stop(ctx context.Context) error

	// Protocol returns a short, constant name used in logs and to reject
	// duplicate adapters (e.g. "echo").
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	Port() int
}
