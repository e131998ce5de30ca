package notify

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Hub is an in-process Bus.
// Every Group sharing a Hub sees every other's broadcasts, which makes it the
// bus for tests and for several Groups embedded in one process.
type Hub struct {
	listeners *xsync.MapOf[uint64, *listener]
	buffer    int
	nextID    atomic.Uint64
	closed    atomic.Bool
}

// NewHub creates a hub with DefaultSignalBuffer sized listener channels
func NewHub() *Hub {
	return NewHubWithBuffer(DefaultSignalBuffer)
}

// NewHubWithBuffer creates a hub whose listener channels hold buffer signals
func NewHubWithBuffer(buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultSignalBuffer
	}
	return &Hub{
		listeners: xsync.NewMapOf[uint64, *listener](),
		buffer:    buffer,
	}
}

// Broadcast sends a signal to all listeners of name (non-blocking)
func (h *Hub) Broadcast(name string) error {
	if h.closed.Load() {
		return ErrBusClosed
	}
	if name == "" {
		return ErrEmptyName
	}

	sig := Signal{Name: name}
	h.listeners.Range(func(_ uint64, l *listener) bool {
		if l.name == name {
			l.offer(sig)
		}
		return true
	})
	return nil
}

// Listen registers a listener for name
func (h *Hub) Listen(name string) (<-chan Signal, func(), error) {
	if h.closed.Load() {
		return nil, nil, ErrBusClosed
	}
	if name == "" {
		return nil, nil, ErrEmptyName
	}

	l := newListener(h.nextID.Add(1), name, h.buffer)
	h.listeners.Store(l.id, l)

	cancel := func() {
		h.remove(l.id)
	}

	return l.ch, cancel, nil
}

// ListenerCount returns the number of registered listeners
func (h *Hub) ListenerCount() int {
	return h.listeners.Size()
}

// remove unregisters a listener and closes its channel
func (h *Hub) remove(id uint64) {
	if l, ok := h.listeners.LoadAndDelete(id); ok {
		l.close()
	}
}

// Close cancels every listener. Further calls are no-ops.
func (h *Hub) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	h.listeners.Range(func(id uint64, _ *listener) bool {
		h.remove(id)
		return true
	})
	return nil
}
