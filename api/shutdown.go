// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is implemented by components that own a thread or
// descriptors and must release them in order.
type GracefulShutdown interface {
	// Shutdown stops internal loops and releases resources.
	Shutdown() error
}
