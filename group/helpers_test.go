package group

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maxpert/groupbus/db"
	"github.com/maxpert/groupbus/notify"
	"github.com/stretchr/testify/require"
)

const (
	testGroupID = "group.com.example.app"
	waitTimeout = 2 * time.Second
)

func testStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "messages.sqlite")
}

func openStore(t *testing.T, path string) *db.MessageStore {
	t.Helper()
	store, err := db.OpenMessageStore(path, db.StoreOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestGroup opens its own store handle on path, like a separate process would
func newTestGroup(t *testing.T, path string, bus notify.Bus, mutate ...func(*Options)) *Group {
	t.Helper()
	store := openStore(t, path)
	opts := Options{
		GroupID:  testGroupID,
		Store:    store,
		Bus:      bus,
		Settings: store.Settings(),
	}
	for _, m := range mutate {
		m(&opts)
	}

	g, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func subscribe(t *testing.T, g *Group, topic string, handler Handler) *Subscription {
	t.Helper()
	sub, err := g.Subscribe(topic, handler)
	require.NoError(t, err)
	waitReady(t, sub)
	require.NoError(t, sub.Err())
	return sub
}

func waitReady(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Ready():
	case <-time.After(waitTimeout):
		t.Fatal("subscription registration timed out")
	}
}

func flush(t *testing.T, g *Group) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, g.Flush(ctx))
}

// recorder collects delivered payloads in order
type recorder struct {
	mu       sync.Mutex
	payloads []string
	topics   []string
}

func (r *recorder) handle(topic, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.payloads = append(r.payloads, payload)
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *recorder) waitFor(t *testing.T, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return r.count() >= n },
		waitTimeout, 5*time.Millisecond, "waiting for %d messages", n)
	return r.got()
}

// lossyBus drops broadcasts while dropping is set
type lossyBus struct {
	*notify.Hub
	dropping   atomic.Bool
	broadcasts atomic.Int32
}

func newLossyBus() *lossyBus {
	return &lossyBus{Hub: notify.NewHub()}
}

func (b *lossyBus) Broadcast(name string) error {
	b.broadcasts.Add(1)
	if b.dropping.Load() {
		return nil
	}
	return b.Hub.Broadcast(name)
}

// failingBroadcastBus listens normally but every broadcast fails
type failingBroadcastBus struct {
	*notify.Hub
}

func (b *failingBroadcastBus) Broadcast(string) error {
	return errors.New("transport down")
}

var errAppend = errors.New("disk full")

// failingStore rejects appends and passes everything else through
type failingStore struct {
	MessageLog
}

func (s *failingStore) Append(context.Context, string, string) (uint64, error) {
	return 0, errAppend
}

// corruptStore reports a corrupt row after the first good one, once
type corruptStore struct {
	MessageLog
	corrupt atomic.Bool
}

func (s *corruptStore) ReadAfter(ctx context.Context, topic string, cursor uint64, limit int) ([]db.Message, error) {
	messages, err := s.MessageLog.ReadAfter(ctx, topic, cursor, limit)
	if err != nil || !s.corrupt.Load() || len(messages) < 2 {
		return messages, err
	}
	return messages[:1], db.ErrCorruptRow
}
