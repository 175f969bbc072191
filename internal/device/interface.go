// Package device abstracts the thermal controller hardware behind a
// single send/receive transport. Two implementations exist: a wire-
// connected serial device and an in-process simulator. Callers never
// need to know which one backs the interface.
package device

import "context"

// Device is the capability interface for one thermal control device.
type Device interface {
	// Open establishes the connection.
	Open() error

	// Close releases the connection.
	Close() error

	// Send transmits one newline-terminated command line.
	Send(ctx context.Context, command string) error

	// Receive returns the next telemetry line, without the trailing
	// newline.
	Receive(ctx context.Context) ([]byte, error)
}
