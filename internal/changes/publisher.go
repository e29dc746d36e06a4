package changes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nepal-guide-hub/discovery/internal/searcher/cache"
	"github.com/nepal-guide-hub/discovery/pkg/kafka"
	"github.com/nepal-guide-hub/discovery/pkg/resilience"
)

// Publisher writes validated change notifications to the invalidation topic.
type Publisher struct {
	producer kafka.Publisher
	retry    resilience.RetryConfig
	now      func() time.Time
	logger   *slog.Logger
}

func NewPublisher(producer kafka.Publisher) *Publisher {
	return &Publisher{
		producer: producer,
		retry:    resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond},
		now:      time.Now,
		logger:   slog.Default().With("component", "change-publisher"),
	}
}

// Publish stamps event with the current time when unset and publishes it,
// keyed by kind so changes to one kind stay ordered.
func (p *Publisher) Publish(ctx context.Context, event cache.InvalidationEvent) error {
	if event.At.IsZero() {
		event.At = p.now().UTC()
	}
	batch := []kafka.Event{{Key: event.Kind, Value: event}}
	err := resilience.Retry(ctx, "publish catalog change", p.retry, func() error {
		return p.producer.PublishBatch(ctx, batch)
	})
	if err != nil {
		return fmt.Errorf("publishing catalog change: %w", err)
	}
	p.logger.Info("catalog change published",
		"kind", event.Kind,
		"id", event.ID,
		"reason", event.Reason,
	)
	return nil
}
