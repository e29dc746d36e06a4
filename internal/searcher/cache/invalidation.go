package cache

import (
	"context"
	"time"

	"github.com/nepal-guide-hub/discovery/pkg/kafka"
)

// InvalidationEvent announces a catalog change (a package edited, an agency
// verified, a guide deactivated) that can make cached responses stale.
type InvalidationEvent struct {
	Kind   string    `json:"kind,omitempty"`
	ID     int64     `json:"id,omitempty"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// HandleInvalidation returns the Kafka handler that flushes c on every
// catalog change. Keys are hashes, so the whole namespace goes.
func HandleInvalidation(c *QueryCache) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[InvalidationEvent](value)
		if err != nil {
			c.logger.Warn("undecodable invalidation event, flushing anyway", "error", err)
		}
		deleted, err := c.Invalidate(ctx)
		if err != nil {
			return err
		}
		c.logger.Info("catalog change invalidated cache",
			"kind", event.Kind,
			"id", event.ID,
			"reason", event.Reason,
			"keys_deleted", deleted,
		)
		return nil
	}
}
