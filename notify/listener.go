package notify

import "sync"

// listener is one registered channel.
// offer and close share a lock so a send never races a close.
type listener struct {
	id     uint64
	name   string
	mu     sync.RWMutex
	ch     chan Signal
	closed bool
}

func newListener(id uint64, name string, buffer int) *listener {
	if buffer < 1 {
		buffer = DefaultSignalBuffer
	}
	return &listener{
		id:   id,
		name: name,
		ch:   make(chan Signal, buffer),
	}
}

// offer delivers a signal without blocking. Returns false if it was dropped.
func (l *listener) offer(sig Signal) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return false
	}

	select {
	case l.ch <- sig:
		return true
	default:
		// Buffer full, the listener already has a pending signal
		return false
	}
}

// close closes the channel if not already closed
func (l *listener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}
