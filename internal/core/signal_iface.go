package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Frame is a raw binary payload (e.g., audio frame).
type Frame []byte

// SignalConnection abstracts the per-connection message transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues a binary frame without blocking.
	TrySend(Frame) error
	// TrySendJSON queues a control message without blocking.
	TrySendJSON(v any) error
	Close()
}
