package group

import (
	"context"
	"errors"
	"time"

	"github.com/maxpert/groupbus/db"
	"github.com/maxpert/groupbus/telemetry"
)

// poll runs on the writer context. It reads every row after the cursor in
// batches, advances the cursor to each row and dispatches it. Returns the
// number of rows dispatched.
func (g *Group) poll(sub *Subscription) (int, error) {
	sub.pollQueued.Store(false)

	if sub.cancelled.Load() {
		return 0, nil
	}

	delivered := 0
	defer func() {
		telemetry.PollBatchRows.Observe(float64(delivered))
	}()

	for {
		cursor := sub.cursor.Load()

		start := time.Now()
		messages, err := g.store.ReadAfter(context.Background(), sub.topic, cursor, g.batchSize)
		telemetry.PollDurationSeconds.Observe(time.Since(start).Seconds())

		// Rows decoded ahead of a corrupt row are still delivered
		for _, msg := range messages {
			sub.cursor.Store(msg.ID)
			g.deliver(sub, msg)
			delivered++
		}

		if err != nil {
			if errors.Is(err, db.ErrCorruptRow) {
				telemetry.PollTotal.With("corrupt").Inc()
				g.logger.Error().Err(err).
					Str("topic", sub.topic).
					Uint64("cursor", sub.cursor.Load()).
					Msg("Stopped poll at corrupt row")
			} else {
				telemetry.PollTotal.With("failed").Inc()
				g.logger.Warn().Err(err).
					Str("topic", sub.topic).
					Uint64("cursor", cursor).
					Msg("Failed to read messages")
			}
			return delivered, err
		}

		if len(messages) < g.batchSize {
			telemetry.PollTotal.With("success").Inc()
			return delivered, nil
		}
	}
}

// deliver hands one message to the callback context
func (g *Group) deliver(sub *Subscription, msg db.Message) {
	telemetry.DeliveredTotal.Inc()

	g.callbacks.Submit(func() {
		if sub.cancelled.Load() {
			return
		}
		sub.handler(msg.Topic, msg.Payload)
	})
}
