package group

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jizhuozhi/go-future"
	"github.com/maxpert/groupbus/cfg"
	"github.com/maxpert/groupbus/db"
	"github.com/maxpert/groupbus/dispatch"
	"github.com/maxpert/groupbus/notify"
	"github.com/maxpert/groupbus/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPollBatchSize is the number of rows read per query while polling
const DefaultPollBatchSize = 100

// Options configures a Group
type Options struct {
	GroupID  string       // Required, shared by every process of the group
	Store    MessageLog   // Required
	Bus      notify.Bus   // Required
	Settings SettingStore // Optional

	// Execution contexts. Nil creates private queues owned by the Group.
	Writer    *dispatch.SerialQueue
	Callbacks *dispatch.SerialQueue

	Logger        *zerolog.Logger // Optional, defaults to the global logger
	AllowedTopics []string        // Glob patterns, empty = all
	PollBatchSize int             // Defaults to DefaultPollBatchSize
}

// Group publishes and subscribes to topics shared by every process that uses
// the same group identifier.
type Group struct {
	id        string
	store     MessageLog
	bus       notify.Bus
	settings  SettingStore
	filter    *TopicFilter
	batchSize int
	logger    zerolog.Logger

	writer    *dispatch.SerialQueue
	callbacks *dispatch.SerialQueue
	ownQueues []*dispatch.SerialQueue
	owned     []io.Closer

	// Mutated only on the writer context
	subscriptions []*Subscription
	active        atomic.Int64

	forwarders sync.WaitGroup
	closed     atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

// New creates a Group over an existing store and bus.
// The caller keeps ownership of both.
func New(opts Options) (*Group, error) {
	if opts.GroupID == "" {
		return nil, fmt.Errorf("group id is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("message store is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("notify bus is required")
	}

	filter, err := NewTopicFilter(opts.AllowedTopics)
	if err != nil {
		return nil, fmt.Errorf("failed to create topic filter: %w", err)
	}

	batchSize := opts.PollBatchSize
	if batchSize <= 0 {
		batchSize = DefaultPollBatchSize
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	g := &Group{
		id:        opts.GroupID,
		store:     opts.Store,
		bus:       opts.Bus,
		settings:  opts.Settings,
		filter:    filter,
		batchSize: batchSize,
		logger:    logger.With().Str("group", opts.GroupID).Logger(),
		writer:    opts.Writer,
		callbacks: opts.Callbacks,
	}

	if g.writer == nil {
		g.writer = dispatch.NewSerialQueue("writer")
		g.ownQueues = append(g.ownQueues, g.writer)
	}
	if g.callbacks == nil {
		g.callbacks = dispatch.NewSerialQueue("callbacks")
		g.ownQueues = append(g.ownQueues, g.callbacks)
	}

	return g, nil
}

// Open builds the SQLite store and notify bus described by config and
// returns a Group that owns them. Close releases both.
func Open(config *cfg.Configuration) (*Group, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := db.OpenMessageStore(config.StoragePath(), db.StoreOptions{
		BusyTimeout: time.Duration(config.Storage.BusyTimeoutMS) * time.Millisecond,
		Synchronous: config.Storage.Synchronous,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %w", err)
	}

	bus, err := notify.NewBus(config.Notify)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create notify bus: %w", err)
	}

	logger := log.With().Uint64("instance_id", config.InstanceID).Logger()
	g, err := New(Options{
		GroupID:       config.GroupID,
		Store:         store,
		Bus:           bus,
		Settings:      store.Settings(),
		Logger:        &logger,
		AllowedTopics: config.Bus.AllowedTopics,
		PollBatchSize: config.Bus.PollBatchSize,
	})
	if err != nil {
		bus.Close()
		store.Close()
		return nil, err
	}

	// Bus first so no signal arrives for a closed store
	g.owned = []io.Closer{bus, store}

	g.logger.Info().
		Str("path", config.StoragePath()).
		Str("transport", config.Notify.Transport).
		Msg("Group opened")

	return g, nil
}

// ID returns the group identifier
func (g *Group) ID() string {
	return g.id
}

// SubscriptionCount returns the number of registered subscriptions
func (g *Group) SubscriptionCount() int {
	return int(g.active.Load())
}

// signalName is the wake signal for topic within this group
func (g *Group) signalName(topic string) string {
	return g.id + topic
}

func (g *Group) checkTopic(topic string) error {
	if topic == "" {
		return db.ErrEmptyTopic
	}
	if !g.filter.Match(topic) {
		return fmt.Errorf("%w: %q", ErrTopicNotAllowed, topic)
	}
	return nil
}

// Publish appends payload to topic, wakes every subscriber of the group and
// returns the new message id. ctx bounds the wait only; once queued the
// append runs to completion.
func (g *Group) Publish(ctx context.Context, topic, payload string) (uint64, error) {
	return dispatch.Await(ctx, g.PublishAsync(topic, payload))
}

// PublishAsync queues a publish on the writer context without waiting
func (g *Group) PublishAsync(topic, payload string) *future.Future[uint64] {
	if g.closed.Load() {
		return dispatch.Failed[uint64](ErrGroupClosed)
	}
	if err := g.checkTopic(topic); err != nil {
		return dispatch.Failed[uint64](err)
	}

	return dispatch.Run(g.writer, func() (uint64, error) {
		return g.publish(topic, payload)
	})
}

// publish runs on the writer context
func (g *Group) publish(topic, payload string) (uint64, error) {
	start := time.Now()
	defer func() {
		telemetry.PublishDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	id, err := g.store.Append(context.Background(), topic, payload)
	if err != nil {
		telemetry.PublishTotal.With("failed").Inc()
		g.logger.Error().Err(err).Str("topic", topic).Msg("Failed to append message")
		return 0, fmt.Errorf("publish to %q: %w", topic, err)
	}

	// The row is durable; a lost signal only delays delivery
	if err := g.bus.Broadcast(g.signalName(topic)); err != nil {
		telemetry.BroadcastFailuresTotal.Inc()
		g.logger.Warn().Err(err).Str("topic", topic).Uint64("id", id).Msg("Failed to broadcast wake signal")
	}

	telemetry.PublishTotal.With("success").Inc()
	g.logger.Debug().Str("topic", topic).Uint64("id", id).Msg("Published message")
	return id, nil
}

// Subscribe registers handler for messages on topic published from now on,
// by this or any other process of the group. It returns before registration
// finishes; wait on Subscription.Ready when ordering against a later publish
// matters.
func (g *Group) Subscribe(topic string, handler Handler) (*Subscription, error) {
	if g.closed.Load() {
		return nil, ErrGroupClosed
	}
	if err := g.checkTopic(topic); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	sub := newSubscription(g, topic, handler)
	if !g.writer.Submit(func() { g.register(sub) }) {
		return nil, ErrGroupClosed
	}
	return sub, nil
}

// register runs on the writer context
func (g *Group) register(sub *Subscription) {
	defer close(sub.ready)

	if sub.cancelled.Load() || g.closed.Load() {
		return
	}

	cursor, err := g.store.MaxID(context.Background(), sub.topic)
	if errors.Is(err, db.ErrStoreClosed) {
		sub.err = err
		g.logger.Error().Err(err).Str("topic", sub.topic).Msg("Cannot subscribe without storage")
		return
	}
	if err != nil {
		// Falls back to replaying whatever the topic holds on the first wake
		cursor = db.CursorStart
		g.logger.Warn().Err(err).Str("topic", sub.topic).Msg("Failed to read max id, starting from the beginning")
	}
	sub.cursor.Store(cursor)

	signals, cancel, err := g.bus.Listen(g.signalName(sub.topic))
	if err != nil {
		sub.err = fmt.Errorf("listen on %q: %w", sub.topic, err)
		g.logger.Error().Err(err).Str("topic", sub.topic).Msg("Failed to listen for wake signals")
		return
	}
	sub.stopListening = cancel

	g.subscriptions = append(g.subscriptions, sub)
	g.active.Add(1)
	telemetry.ActiveSubscriptions.Inc()

	g.forwarders.Add(1)
	go g.forward(sub, signals)

	g.logger.Debug().
		Str("topic", sub.topic).
		Str("subscription", sub.id.String()).
		Uint64("cursor", cursor).
		Msg("Subscribed")
}

// forward turns wake signals into poll tasks until the listener is cancelled.
// At most one poll per subscription is queued at a time.
func (g *Group) forward(sub *Subscription, signals <-chan notify.Signal) {
	defer g.forwarders.Done()

	for range signals {
		telemetry.WakeSignalsTotal.Inc()

		if !sub.pollQueued.CompareAndSwap(false, true) {
			continue
		}
		if !g.writer.Submit(func() { g.poll(sub) }) {
			sub.pollQueued.Store(false)
		}
	}
}

// unregister runs on the writer context
func (g *Group) unregister(sub *Subscription) {
	for i, s := range g.subscriptions {
		if s == sub {
			g.subscriptions = append(g.subscriptions[:i], g.subscriptions[i+1:]...)
			g.active.Add(-1)
			telemetry.ActiveSubscriptions.Dec()
			break
		}
	}
	if sub.stopListening != nil {
		sub.stopListening()
	}
}

// Clear deletes every stored message of the group and resets every local
// subscription to the beginning of its topic. Subscriptions stay registered.
func (g *Group) Clear(ctx context.Context) error {
	if g.closed.Load() {
		return ErrGroupClosed
	}

	_, err := dispatch.Await(ctx, dispatch.Run(g.writer, func() (struct{}, error) {
		if err := g.store.Clear(context.Background()); err != nil {
			g.logger.Error().Err(err).Msg("Failed to clear messages")
			return struct{}{}, fmt.Errorf("clear: %w", err)
		}

		for _, sub := range g.subscriptions {
			sub.cursor.Store(db.CursorStart)
		}

		telemetry.ClearTotal.Inc()
		g.logger.Info().Int("subscriptions", len(g.subscriptions)).Msg("Cleared messages")
		return struct{}{}, nil
	}))
	return err
}

// Flush waits until work queued on both contexts before the call has run:
// pending publishes and polls, then the callbacks they dispatched.
func (g *Group) Flush(ctx context.Context) error {
	if err := dispatch.Barrier(ctx, g.writer); err != nil {
		return err
	}
	return dispatch.Barrier(ctx, g.callbacks)
}

// SaveSetting stores value under key in the group's shared settings
func (g *Group) SaveSetting(ctx context.Context, key string, value any) error {
	if g.settings == nil {
		return ErrNoSettings
	}
	return g.settings.Set(ctx, key, value)
}

// LoadSetting decodes the value under key into out. Returns false if absent.
func (g *Group) LoadSetting(ctx context.Context, key string, out any) (bool, error) {
	if g.settings == nil {
		return false, ErrNoSettings
	}
	return g.settings.Get(ctx, key, out)
}

// DeleteSetting removes key from the group's shared settings
func (g *Group) DeleteSetting(ctx context.Context, key string) error {
	if g.settings == nil {
		return ErrNoSettings
	}
	return g.settings.Delete(ctx, key)
}

// Close cancels every subscription, drains the queues the Group created and
// closes the store and bus it opened. Queued publishes still complete.
// Must not be called from a handler.
func (g *Group) Close() error {
	g.closeOnce.Do(func() {
		g.closed.Store(true)

		stop := func() {
			for _, sub := range g.subscriptions {
				sub.cancelled.Store(true)
				if sub.stopListening != nil {
					sub.stopListening()
				}
			}
			telemetry.ActiveSubscriptions.Sub(float64(len(g.subscriptions)))
			g.active.Store(0)
			g.subscriptions = nil
		}
		if _, err := dispatch.Run(g.writer, func() (struct{}, error) {
			stop()
			return struct{}{}, nil
		}).Get(); err != nil {
			// Writer closed by its owner, nothing else touches the registry now
			stop()
		}

		g.forwarders.Wait()

		for _, q := range g.ownQueues {
			q.Close()
		}

		for _, c := range g.owned {
			if err := c.Close(); err != nil && g.closeErr == nil {
				g.closeErr = err
			}
		}

		g.logger.Info().Msg("Group closed")
	})
	return g.closeErr
}
