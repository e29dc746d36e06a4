package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nepal-guide-hub/discovery/pkg/config"
	"github.com/nepal-guide-hub/discovery/pkg/kafka"
	"github.com/nepal-guide-hub/discovery/pkg/metrics"
	"github.com/nepal-guide-hub/discovery/pkg/resilience"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fails   int
}

func (p *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return errors.New("broker not available")
	}
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) events() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func search(query string, results map[string]int) SearchEvent {
	return SearchEvent{Type: EventSearch, Query: query, Kind: "all", Results: results}
}

func TestCollectorFlushesFullBatches(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, config.AnalyticsConfig{BufferSize: 10, BatchSize: 2, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())

	for i := 0; i < 5; i++ {
		c.Track(search("everest", map[string]int{"packages": 1}))
	}
	c.Close()

	if got := pub.events(); got != 5 {
		t.Errorf("published %d events, want 5", got)
	}
	if len(pub.batches[0]) != 2 {
		t.Errorf("first batch = %d events, want 2", len(pub.batches[0]))
	}
	if pub.batches[0][0].Key != "all" {
		t.Errorf("event key = %q, want the kind selector", pub.batches[0][0].Key)
	}
	if c.Track(search("late", nil)) {
		t.Error("Track after Close should report a drop")
	}
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, config.AnalyticsConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, nil)
	c.Start(context.Background())
	defer c.Close()

	c.Track(search("annapurna", nil))
	deadline := time.Now().Add(2 * time.Second)
	for pub.events() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("interval flush never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCollectorRetriesThenCounts(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	pub := &fakePublisher{fails: 1}
	c := NewCollector(pub, config.AnalyticsConfig{BatchSize: 1, FlushInterval: time.Hour}, m)
	c.retry = resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}
	c.Start(context.Background())
	c.Track(search("langtang", nil))
	c.Close()

	if pub.events() != 1 {
		t.Errorf("published %d, want 1 after retry", pub.events())
	}
	if got := testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok counter = %v", got)
	}
}

func TestCollectorDropsWhenBufferFull(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(&fakePublisher{}, config.AnalyticsConfig{BufferSize: 1}, m)
	if !c.Track(search("a", nil)) {
		t.Fatal("first event should be buffered")
	}
	if c.Track(search("b", nil)) {
		t.Error("second event should be dropped")
	}
	if got := testutil.ToFloat64(m.EventsDroppedTotal); got != 1 {
		t.Errorf("dropped counter = %v", got)
	}
}

func TestCollectorFlushesOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, config.AnalyticsConfig{BatchSize: 100, FlushInterval: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.Track(search("mustang", nil))
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-c.done
	if pub.events() != 1 {
		t.Errorf("published %d, want the buffered event", pub.events())
	}
}

func TestAggregatorStats(t *testing.T) {
	start := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	now := start
	agg := newAggregator(nil, func() time.Time { return now })

	agg.Record(SearchEvent{Type: EventSearch, Query: "Everest", Filters: []string{"difficulty"}, Sort: "price_low", Results: map[string]int{"packages": 3, "guides": 0}, LatencyMs: 10})
	agg.Record(SearchEvent{Type: EventSearch, Query: "everest ", Results: map[string]int{"packages": 1}, LatencyMs: 30, CacheHit: true})
	agg.Record(SearchEvent{Type: EventSearch, Query: "yeti", Ignored: []string{"colour"}, Results: map[string]int{"packages": 0, "guides": 0}, LatencyMs: 20})
	agg.Record(SearchEvent{Type: EventSearch, Results: map[string]int{"agencies": 0}, LatencyMs: 40})
	now = start.Add(2 * time.Minute)

	s := agg.Stats()
	if s.TotalSearches != 4 || s.CacheHits != 1 || s.CacheMisses != 3 {
		t.Errorf("totals = %d/%d/%d", s.TotalSearches, s.CacheHits, s.CacheMisses)
	}
	if s.ZeroResultCount != 2 {
		t.Errorf("zero results = %d, want 2", s.ZeroResultCount)
	}
	if s.ByKind["packages"] != (KindStats{Searches: 3, Results: 4, ZeroResults: 1}) {
		t.Errorf("packages = %+v", s.ByKind["packages"])
	}
	if len(s.TopQueries) != 2 || s.TopQueries[0] != (Count{Value: "everest", Count: 2}) {
		t.Errorf("top queries = %+v", s.TopQueries)
	}
	if len(s.ZeroResultQueries) != 1 || s.ZeroResultQueries[0].Value != "yeti" {
		t.Errorf("zero result queries = %+v", s.ZeroResultQueries)
	}
	if s.TopFilters[0].Value != "difficulty" || s.IgnoredFilters[0].Value != "colour" || s.TopSorts[0].Value != "price_low" {
		t.Errorf("filters = %+v ignored = %+v sorts = %+v", s.TopFilters, s.IgnoredFilters, s.TopSorts)
	}
	if s.AvgLatencyMs != 25 || s.P50LatencyMs != 30 || s.P99LatencyMs != 40 {
		t.Errorf("latency avg=%v p50=%d p99=%d", s.AvgLatencyMs, s.P50LatencyMs, s.P99LatencyMs)
	}
	if s.QueriesPerMinute != 2 {
		t.Errorf("qpm = %v, want 2", s.QueriesPerMinute)
	}
}

func TestAggregatorLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator(nil)
	for i := 0; i < maxLatencySamples+50; i++ {
		agg.Record(SearchEvent{Type: EventSearch, LatencyMs: int64(i)})
	}
	if len(agg.latencies) != maxLatencySamples {
		t.Errorf("latency samples = %d", len(agg.latencies))
	}
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator(nil)
	h := HandleEvent(agg)
	value, _ := json.Marshal(search("pokhara", map[string]int{"guides": 2}))
	if err := h(context.Background(), []byte("all"), value); err != nil {
		t.Fatal(err)
	}
	if err := h(context.Background(), nil, []byte("not json")); err != nil {
		t.Errorf("bad message should be skipped, got %v", err)
	}
	if err := h(context.Background(), nil, []byte(`{"type":"something_else"}`)); err != nil {
		t.Fatal(err)
	}
	if agg.Stats().TotalSearches != 1 {
		t.Errorf("total = %d, want 1", agg.Stats().TotalSearches)
	}
}

type fakeHistory struct {
	snapshots []Stats
	err       error
	limit     int
}

func (f *fakeHistory) ListSnapshots(ctx context.Context, limit int) ([]Stats, error) {
	f.limit = limit
	return f.snapshots, f.err
}

func TestHandler(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Record(search("everest", map[string]int{"packages": 1}))
	hist := &fakeHistory{snapshots: []Stats{{TotalSearches: 9}}}
	mux := http.NewServeMux()
	NewHandler(agg, hist).Register(mux)

	tests := []struct {
		name      string
		path      string
		want      int
		wantLimit int
	}{
		{"live stats", "/api/v1/analytics", http.StatusOK, 0},
		{"history default", "/api/v1/analytics/history", http.StatusOK, 24},
		{"history limit", "/api/v1/analytics/history?limit=3", http.StatusOK, 3},
		{"history bad limit", "/api/v1/analytics/history?limit=0", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist.limit = 0
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if hist.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", hist.limit, tt.wantLimit)
			}
		})
	}

	hist.err = errors.New("pq: too many connections")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	noHistory := http.NewServeMux()
	NewHandler(agg, nil).Register(noHistory)
	noHistory.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
