package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nepal-guide-hub/discovery/pkg/kafka"
	"github.com/nepal-guide-hub/discovery/pkg/metrics"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

const topLimit = 10

type Stats struct {
	TotalSearches     int64                `json:"total_searches"`
	CacheHits         int64                `json:"cache_hits"`
	CacheMisses       int64                `json:"cache_misses"`
	ZeroResultCount   int64                `json:"zero_result_count"`
	ByKind            map[string]KindStats `json:"by_kind"`
	AvgLatencyMs      float64              `json:"avg_latency_ms"`
	P50LatencyMs      int64                `json:"p50_latency_ms"`
	P95LatencyMs      int64                `json:"p95_latency_ms"`
	P99LatencyMs      int64                `json:"p99_latency_ms"`
	TopQueries        []Count              `json:"top_queries"`
	ZeroResultQueries []Count              `json:"zero_result_queries"`
	TopFilters        []Count              `json:"top_filters"`
	IgnoredFilters    []Count              `json:"ignored_filters"`
	TopSorts          []Count              `json:"top_sorts"`
	QueriesPerMinute  float64              `json:"queries_per_minute"`
	Since             time.Time            `json:"since"`
}

// KindStats counts searches that covered one entity kind.
type KindStats struct {
	Searches    int64 `json:"searches"`
	Results     int64 `json:"results"`
	ZeroResults int64 `json:"zero_results"`
}

type Count struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Aggregator folds search events into running statistics.
type Aggregator struct {
	mu            sync.Mutex
	totalSearches int64
	cacheHits     int64
	cacheMisses   int64
	zeroResults   int64
	byKind        map[string]KindStats
	latencies     []int64
	next          int
	queries       map[string]int64
	zeroQueries   map[string]int64
	filters       map[string]int64
	ignored       map[string]int64
	sorts         map[string]int64
	startTime     time.Time
	now           func() time.Time

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAggregator creates an empty Aggregator. m may be nil.
func NewAggregator(m *metrics.Metrics) *Aggregator {
	return newAggregator(m, time.Now)
}

func newAggregator(m *metrics.Metrics, now func() time.Time) *Aggregator {
	return &Aggregator{
		byKind:      make(map[string]KindStats),
		latencies:   make([]int64, 0, 1024),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		filters:     make(map[string]int64),
		ignored:     make(map[string]int64),
		sorts:       make(map[string]int64),
		startTime:   now(),
		now:         now,
		metrics:     m,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns the Kafka handler that feeds agg. Undecodable
// messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode search event", "key", string(key), "error", err)
			return nil
		}
		if event.Type != EventSearch {
			agg.logger.Debug("skipping event", "type", event.Type)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one event into the statistics.
func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}

	for kind, n := range event.Results {
		ks := a.byKind[kind]
		ks.Searches++
		ks.Results += int64(n)
		if n == 0 {
			ks.ZeroResults++
		}
		a.byKind[kind] = ks
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}

	query := strings.ToLower(strings.TrimSpace(event.Query))
	if query != "" {
		a.queries[query]++
	}
	if event.Total() == 0 {
		a.zeroResults++
		if query != "" {
			a.zeroQueries[query]++
		}
	}
	for _, name := range event.Filters {
		a.filters[name]++
	}
	for _, name := range event.Ignored {
		a.ignored[name]++
	}
	if event.Sort != "" {
		a.sorts[event.Sort]++
	}
	if a.metrics != nil {
		a.metrics.EventsConsumedTotal.Inc()
	}
}

// Stats returns a consistent snapshot of the statistics.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := Stats{
		TotalSearches:     a.totalSearches,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		ByKind:            make(map[string]KindStats, len(a.byKind)),
		TopQueries:        topN(a.queries, topLimit),
		ZeroResultQueries: topN(a.zeroQueries, topLimit),
		TopFilters:        topN(a.filters, topLimit),
		IgnoredFilters:    topN(a.ignored, topLimit),
		TopSorts:          topN(a.sorts, topLimit),
		Since:             a.startTime.UTC(),
	}
	for kind, ks := range a.byKind {
		stats.ByKind[kind] = ks
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts, ties broken alphabetically.
func topN(counts map[string]int64, n int) []Count {
	result := make([]Count, 0, len(counts))
	for value, count := range counts {
		result = append(result, Count{Value: value, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Value < result[j].Value
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
