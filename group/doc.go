// Package group implements durable, cursor-based publish/subscribe across
// every process that shares one group identifier.
//
// Messages are rows in a SQLite file all processes of the group open. The
// notify Bus only carries payload-less wake signals named groupID+topic; a
// signal tells subscribers to read forward from their cursor. A lost signal
// delays delivery until the next one, it never loses a message.
//
// # Execution contexts
//
// Each Group runs work on two serial queues:
//
//   - Writer: Publish, Clear, subscription registration and polls. Storage
//     statements from one process never interleave.
//   - Callbacks: user handlers, one at a time, in id order per subscription.
//
// Example usage:
//
//	g, err := group.Open(cfg.Config)
//	if err != nil {
//		return err
//	}
//	defer g.Close()
//
//	sub, _ := g.Subscribe("sync", func(topic, payload string) {
//		log.Info().Str("topic", topic).Str("payload", payload).Msg("Received")
//	})
//	<-sub.Ready()
//
//	id, err := g.Publish(ctx, "sync", "a")
//
// # Delivery
//
// A subscription starts at the newest id present when it registered, so it
// never replays history. On each wake it reads rows with id > cursor in
// ascending order, advances the cursor to each row and then hands the row to
// the callback queue. Delivery is at-least-once across signal loss and exactly
// once per (subscription, row) otherwise.
//
// # Clear
//
// Clear deletes every row and resets every local cursor to db.CursorStart.
// Row ids are never reused, so other processes keep working without a reset.
package group
