// Package radio defines the transport boundary between a link node and
// the physical (or simulated) radio beneath it: send a frame, receive a
// frame with a bounded wait, close the channel.
package radio

import "context"

// Transport is the capability every radio backend must provide. Frames
// are opaque byte slices; framing and parsing live in the protocol
// package above this one.
type Transport interface {
	// Send transmits frame. It does not wait for the remote peer to
	// receive it.
	Send(frame []byte) error

	// Recv waits up to timeoutMs for a frame to arrive, returning nil
	// with no error on timeout. timeoutMs == 0 means "poll, don't block".
	Recv(ctx context.Context, timeoutMs int64) ([]byte, error)

	// Close releases the underlying channel. Whether Send/Recv fail after
	// Close depends on the backend; the mock endpoint's Close is a no-op.
	Close() error
}

// RSSIProvider is an optional capability: transports backed by a real
// radio can report the received signal strength of the last frame.
// Callers type-assert for it rather than requiring it on Transport.
type RSSIProvider interface {
	LastRxRSSIDBm() (int, bool)
}
