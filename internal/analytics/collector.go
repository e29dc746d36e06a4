package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nepal-guide-hub/discovery/pkg/config"
	"github.com/nepal-guide-hub/discovery/pkg/kafka"
	"github.com/nepal-guide-hub/discovery/pkg/metrics"
	"github.com/nepal-guide-hub/discovery/pkg/resilience"
)

// Collector buffers search events and publishes them to Kafka in batches,
// flushing when a batch fills or the flush interval passes. Track never
// blocks the search path: when the buffer is full the event is dropped.
type Collector struct {
	publisher     kafka.Publisher
	events        chan SearchEvent
	batchSize     int
	flushInterval time.Duration
	retry         resilience.RetryConfig
	metrics       *metrics.Metrics
	logger        *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewCollector creates a Collector. m may be nil.
func NewCollector(publisher kafka.Publisher, cfg config.AnalyticsConfig, m *metrics.Metrics) *Collector {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		events:        make(chan SearchEvent, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retry:         resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		metrics:       m,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the publish loop. It runs until ctx is cancelled or Close
// is called, flushing whatever is buffered on the way out.
func (c *Collector) Start(ctx context.Context) {
	go c.loop(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.events),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track enqueues an event. It reports false when the event was dropped.
func (c *Collector) Track(event SearchEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.events <- event:
		return true
	default:
		if c.metrics != nil {
			c.metrics.EventsDroppedTotal.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)")
		return false
	}
}

// Close stops accepting events and waits for the final flush.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				c.flushFinal(batch)
				return
			}
			batch = append(batch, kafka.Event{Key: event.Kind, Value: event})
			if len(batch) >= c.batchSize {
				c.flush(ctx, batch)
				batch = make([]kafka.Event, 0, c.batchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				c.flush(ctx, batch)
				batch = make([]kafka.Event, 0, c.batchSize)
			}
		case <-ctx.Done():
		drain:
			for {
				select {
				case event, ok := <-c.events:
					if !ok {
						break drain
					}
					batch = append(batch, kafka.Event{Key: event.Kind, Value: event})
				default:
					break drain
				}
			}
			c.flushFinal(batch)
			return
		}
	}
}

func (c *Collector) flushFinal(batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx, batch)
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	err := resilience.Retry(ctx, "publish search events", c.retry, func() error {
		return c.publisher.PublishBatch(ctx, batch)
	})
	status := "ok"
	if err != nil {
		status = "error"
		c.logger.Error("dropping analytics batch", "events", len(batch), "error", err)
	}
	if c.metrics != nil {
		c.metrics.EventsPublishedTotal.WithLabelValues(status).Add(float64(len(batch)))
	}
}
