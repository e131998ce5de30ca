// Package notify carries wake signals between the processes of a group.
//
// A signal has a name and nothing else. It means "something under this name
// may have changed, look again". Delivery is best effort: no payload, no
// acknowledgment, no ordering between broadcasts, and a listener registered
// after a broadcast never sees it. Listeners that fall behind lose signals
// instead of blocking the sender.
package notify

import "errors"

// DefaultSignalBuffer is the per-listener channel capacity.
// A listener only needs one pending signal to know it should re-check, so a
// small buffer is enough; extra signals are dropped (non-blocking send).
const DefaultSignalBuffer = 16

var (
	// ErrBusClosed is returned by Broadcast and Listen after Close.
	ErrBusClosed = errors.New("notify bus is closed")

	// ErrEmptyName is returned for an empty signal name.
	ErrEmptyName = errors.New("signal name must not be empty")
)

// Signal is a payload-less notification for a name
type Signal struct {
	Name string
}

// Bus broadcasts and receives named signals
type Bus interface {
	// Broadcast fires a signal to every current listener of name, in every process
	Broadcast(name string) error
	// Listen returns a buffered channel of signals for name and an idempotent
	// cancel function that stops delivery and closes the channel
	Listen(name string) (signals <-chan Signal, cancel func(), err error)
	// Close cancels every listener and releases transport resources
	Close() error
}
