package group

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/maxpert/groupbus/db"
	"github.com/maxpert/groupbus/dispatch"
)

// Subscription is the handle returned by Group.Subscribe
type Subscription struct {
	id      uuid.UUID
	topic   string
	handler Handler
	group   *Group

	// Written only on the writer context, atomic so Cursor is safe anywhere
	cursor atomic.Uint64

	ready         chan struct{}
	err           error // Set before ready is closed
	stopListening func()
	pollQueued    atomic.Bool
	cancelled     atomic.Bool
}

func newSubscription(g *Group, topic string, handler Handler) *Subscription {
	s := &Subscription{
		id:      uuid.New(),
		topic:   topic,
		handler: handler,
		group:   g,
		ready:   make(chan struct{}),
	}
	s.cursor.Store(db.CursorStart)
	return s
}

// ID uniquely identifies the subscription
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Cursor returns the id of the last row handed to the handler
func (s *Subscription) Cursor() uint64 {
	return s.cursor.Load()
}

// Ready is closed once registration has run on the writer context
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Err reports why registration failed. Only meaningful after Ready.
func (s *Subscription) Err() error {
	select {
	case <-s.ready:
		return s.err
	default:
		return nil
	}
}

// Poll reads and dispatches everything after the cursor now, as a wake
// signal would, and waits for the read to finish.
func (s *Subscription) Poll(ctx context.Context) error {
	_, err := dispatch.Await(ctx, dispatch.Run(s.group.writer, func() (int, error) {
		return s.group.poll(s)
	}))
	return err
}

// Cancel stops delivery. Handlers already queued on the callback context
// are skipped. Safe to call more than once.
func (s *Subscription) Cancel() {
	if !s.cancelled.CompareAndSwap(false, true) {
		return
	}
	s.group.writer.Submit(func() { s.group.unregister(s) })
}
