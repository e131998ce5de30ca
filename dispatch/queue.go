// Package dispatch provides serial execution contexts.
//
// A SerialQueue runs submitted tasks one at a time, in submission order, on a
// single goroutine. A Group uses two of them: one for storage work (publish,
// subscribe setup, polls) and one for user callbacks, so a slow callback
// never delays draining new signals.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/maxpert/groupbus/telemetry"
	"github.com/rs/zerolog/log"
)

// ErrQueueClosed is returned for work submitted after Close
var ErrQueueClosed = errors.New("queue is closed")

// SerialQueue is an unbounded FIFO of tasks drained by one goroutine.
//
// The queue is unbounded so Submit never blocks the caller, including the
// signal forwarders that must never stall a notify transport.
type SerialQueue struct {
	name string

	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
	done   chan struct{}
}

// NewSerialQueue creates a queue and starts its goroutine
func NewSerialQueue(name string) *SerialQueue {
	q := &SerialQueue{
		name:   name,
		tasks:  make([]func(), 0, 64),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Name returns the queue name used in logs and metrics
func (q *SerialQueue) Name() string {
	return q.name
}

// Submit appends a task. Returns false if the queue is closed.
// Thread-safe: may be called from any goroutine, including a task of this queue.
func (q *SerialQueue) Submit(task func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	telemetry.QueueTasksTotal.With(q.name).Inc()

	// Non-blocking: a buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting tasks, runs everything already queued and waits.
// Must not be called from a task running on this queue.
func (q *SerialQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	<-q.done
}

// Pending returns the number of queued tasks not yet started
func (q *SerialQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *SerialQueue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.signal
			continue
		}

		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.execute(task)
	}
}

// execute runs one task. A panic ends that task only; the queue keeps going.
func (q *SerialQueue) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.HandlerPanicsTotal.With(q.name).Inc()
			log.Error().
				Str("queue", q.name).
				Str("panic", fmt.Sprint(r)).
				Msg("Recovered panic in queued task")
		}
	}()

	task()
}
