// SPDX-License-Identifier: MIT

// Package transport delivers analysis frames to out-of-process renderers.
package transport

// Transport defines a generic interface for sending processed data or events.
// Implementations must be safe for concurrent use and must never block the
// caller: a slow or disconnected consumer drops frames, it does not stall
// the analysis loop.
type Transport interface {
	Send(data any) error
	Close() error
}
