// SPDX-License-Identifier: MIT
// Package transport delivers monitoring messages to consumers outside the
// process. Messages are plain values; each transport picks its own encoding.
package transport

// Transport sends monitoring messages. Implementations must be safe for
// concurrent use and must never block the caller for long: a slow consumer
// loses messages rather than stalling the publisher.
type Transport interface {
	Send(data any) error
	Close() error
}
