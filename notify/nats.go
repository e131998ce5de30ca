package notify

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NatsBus implements Bus over core NATS subjects.
// Core NATS is fire-and-forget with no persistence, which matches the
// contract: a process that is not subscribed when a signal fires never sees it.
type NatsBus struct {
	nc     *nats.Conn
	owned  bool // Close the connection on Close
	prefix string
	buffer int

	mu     sync.Mutex
	subs   map[uint64]*natsListener
	nextID atomic.Uint64
	closed atomic.Bool
}

type natsListener struct {
	*listener
	sub *nats.Subscription
}

// NewNatsBus connects to url and returns a bus publishing under prefix
func NewNatsBus(url, prefix string, buffer int) (*NatsBus, error) {
	if prefix == "" {
		return nil, fmt.Errorf("subject prefix is required")
	}

	nc, err := nats.Connect(url,
		nats.Name("groupbus"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Str("url", url).Msg("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	bus := NewNatsBusWithConn(nc, prefix, buffer)
	bus.owned = true
	return bus, nil
}

// NewNatsBusWithConn wraps an existing connection. Close leaves it open.
func NewNatsBusWithConn(nc *nats.Conn, prefix string, buffer int) *NatsBus {
	if buffer < 1 {
		buffer = DefaultSignalBuffer
	}
	return &NatsBus{
		nc:     nc,
		prefix: strings.TrimSuffix(prefix, "."),
		buffer: buffer,
		subs:   make(map[uint64]*natsListener),
	}
}

// Subject returns the NATS subject a signal name travels on.
// Names are base64url encoded so dots, spaces and wildcards in a name can
// never change the subject structure.
func (b *NatsBus) Subject(name string) string {
	return subjectFor(b.prefix, name)
}

func subjectFor(prefix, name string) string {
	return prefix + "." + base64.RawURLEncoding.EncodeToString([]byte(name))
}

// Broadcast publishes an empty message on the name's subject
func (b *NatsBus) Broadcast(name string) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if name == "" {
		return ErrEmptyName
	}

	if err := b.nc.Publish(b.Subject(name), nil); err != nil {
		return fmt.Errorf("failed to publish signal %q: %w", name, err)
	}
	return nil
}

// Listen subscribes to the name's subject.
// The NATS callback goroutine only offers to the buffered channel.
func (b *NatsBus) Listen(name string) (<-chan Signal, func(), error) {
	if b.closed.Load() {
		return nil, nil, ErrBusClosed
	}
	if name == "" {
		return nil, nil, ErrEmptyName
	}

	l := &natsListener{listener: newListener(b.nextID.Add(1), name, b.buffer)}
	sig := Signal{Name: name}

	sub, err := b.nc.Subscribe(b.Subject(name), func(_ *nats.Msg) {
		l.offer(sig)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe to %q: %w", name, err)
	}
	l.sub = sub

	b.mu.Lock()
	b.subs[l.id] = l
	b.mu.Unlock()

	cancel := func() {
		b.remove(l.id)
	}

	return l.ch, cancel, nil
}

func (b *NatsBus) remove(id uint64) {
	b.mu.Lock()
	l, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()

	if !ok {
		return
	}

	if err := l.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
		log.Debug().Err(err).Str("name", l.name).Msg("Failed to unsubscribe signal listener")
	}
	l.close()
}

// Close cancels every listener and closes the connection if this bus opened it
func (b *NatsBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.remove(id)
	}

	if b.owned && b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			b.nc.Close()
		}
	}
	return nil
}
