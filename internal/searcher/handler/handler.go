// Package handler exposes the search engine over HTTP: the combined search
// endpoint, one paginated listing per entity kind and the cache controls.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nepal-guide-hub/discovery/internal/analytics"
	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/searcher/cache"
	"github.com/nepal-guide-hub/discovery/internal/searcher/executor"
	"github.com/nepal-guide-hub/discovery/internal/searcher/filter"
	"github.com/nepal-guide-hub/discovery/internal/searcher/tokenizer"
	"github.com/nepal-guide-hub/discovery/pkg/config"
	apperrors "github.com/nepal-guide-hub/discovery/pkg/errors"
	"github.com/nepal-guide-hub/discovery/pkg/logger"
	"github.com/nepal-guide-hub/discovery/pkg/metrics"
	"github.com/nepal-guide-hub/discovery/pkg/middleware"
	"github.com/nepal-guide-hub/discovery/pkg/resilience"
	"github.com/nepal-guide-hub/discovery/pkg/tracing"
)

// Query parameters that are not filters.
var reserved = map[string]bool{
	"query":  true,
	"search": true,
	"kind":   true,
	"sort":   true,
	"page":   true,
}

type SearchExecutor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Response, error)
}

// Tracker receives one event per completed search.
type Tracker interface {
	Track(event analytics.SearchEvent) bool
}

type Option func(*Handler)

func WithCache(c *cache.QueryCache) Option { return func(h *Handler) { h.cache = c } }

func WithTracker(t Tracker) Option { return func(h *Handler) { h.tracker = t } }

func WithTracer(t *tracing.Tracer) Option { return func(h *Handler) { h.tracer = t } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Handler) { h.metrics = m } }

type Handler struct {
	executor SearchExecutor
	cache    *cache.QueryCache
	tracker  Tracker
	tracer   *tracing.Tracer
	metrics  *metrics.Metrics
	timeout  time.Duration
	pageSize int
	logger   *slog.Logger
}

func New(exec SearchExecutor, cfg config.SearchConfig, opts ...Option) *Handler {
	h := &Handler{
		executor: exec,
		timeout:  cfg.Timeout,
		pageSize: cfg.PageSize,
		logger:   slog.Default().With("component", "search-handler"),
	}
	if h.pageSize <= 0 {
		h.pageSize = 12
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.tracer == nil {
		h.tracer = tracing.NewTracer(config.TracingConfig{})
	}
	return h
}

// Register mounts the search routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/packages", h.List(catalog.KindPackages))
	mux.HandleFunc("GET /api/v1/guides", h.List(catalog.KindGuides))
	mux.HandleFunc("GET /api/v1/agencies", h.List(catalog.KindAgencies))
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /api/v1/search?query=&kind=&sort=&<filters>.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	req := parseRequest(params, catalog.ParseSelector(params.Get("kind")))
	resp, ok := h.execute(w, r, req)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Page is one page of a single-kind listing.
type Page struct {
	Kind     catalog.Kind `json:"kind"`
	Query    string       `json:"query,omitempty"`
	Sort     string       `json:"sort"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Pages    int          `json:"pages"`
	// Total counts every match; Count is how many of them can be paged.
	Total   int            `json:"total"`
	Count   int            `json:"count"`
	HasNext bool           `json:"has_next"`
	HasPrev bool           `json:"has_previous"`
	Ignored []string       `json:"ignored_filters,omitempty"`
	Hits    []executor.Hit `json:"hits"`
}

// List serves the paginated listing for one kind. "search" is accepted as
// an alias of "query".
func (h *Handler) List(kind catalog.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		req := parseRequest(params, catalog.Selector(kind))
		resp, ok := h.execute(w, r, req)
		if !ok {
			return
		}
		kr := resp.Results[kind]
		h.writeJSON(w, http.StatusOK, paginate(kr, resp.Query, params.Get("page"), h.pageSize))
	}
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request, req executor.Request) (*executor.Response, bool) {
	start := time.Now()
	requestID := middleware.GetRequestID(r.Context())
	ctx, span := h.tracer.Start(r.Context(), r.Method+" "+r.URL.Path, requestID)
	defer h.tracer.Finish(span)
	log := logger.FromContext(ctx)

	var resp *executor.Response
	cacheHit := false
	err := resilience.WithTimeout(ctx, h.timeout, "search", func(ctx context.Context) error {
		var (
			out *executor.Response
			hit bool
			err error
		)
		if h.cache != nil {
			out, hit, err = h.cache.GetOrCompute(ctx, req, func(ctx context.Context) (*executor.Response, error) {
				return h.executor.Execute(ctx, req)
			})
		} else {
			out, err = h.executor.Execute(ctx, req)
		}
		if err == nil {
			resp, cacheHit = out, hit
		}
		return err
	})
	latency := time.Since(start)

	if err != nil {
		var outcome string
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
			err = apperrors.Wrap(apperrors.ErrTimeout, err)
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
			err = apperrors.Wrap(apperrors.ErrTimeout, err)
		default:
			outcome = "error"
			err = apperrors.Wrap(apperrors.ErrStorage, err)
		}
		h.countRequest(req.Kind, outcome)
		log.Error("search failed", "query", req.Query, "kind", req.Kind, "error", err)
		h.writeError(w, err)
		return nil, false
	}

	span.SetAttr("cache_hit", cacheHit)
	h.observe(resp, cacheHit, latency)
	log.Info("search completed",
		"query", resp.Query,
		"kind", resp.Kind,
		"sort", req.Sort,
		"total", resp.Total(),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(newEvent(req, resp, cacheHit, latency, requestID))
	}
	return resp, true
}

func (h *Handler) countRequest(kind catalog.Selector, outcome string) {
	if h.metrics != nil {
		h.metrics.SearchRequestsTotal.WithLabelValues(string(catalog.ParseSelector(string(kind))), outcome).Inc()
	}
}

func (h *Handler) observe(resp *executor.Response, cacheHit bool, latency time.Duration) {
	h.countRequest(resp.Kind, "ok")
	if h.metrics == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	h.metrics.SearchLatency.WithLabelValues(status).Observe(latency.Seconds())
	for kind, kr := range resp.Results {
		h.metrics.SearchCandidates.WithLabelValues(string(kind)).Observe(float64(kr.Total))
		h.metrics.SearchResultsCount.WithLabelValues(string(kind)).Observe(float64(len(kr.Hits)))
		if kr.Total == 0 {
			h.metrics.ZeroResultsTotal.WithLabelValues(string(kind)).Inc()
		}
		for _, name := range kr.Ignored {
			h.metrics.IgnoredFiltersTotal.WithLabelValues(string(kind), name).Inc()
		}
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.Wrap(apperrors.ErrCacheUnavailable, err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// parseRequest reads query, sort and every non-reserved parameter as a
// filter. Repeated parameters keep their first value.
func parseRequest(params url.Values, sel catalog.Selector) executor.Request {
	query := params.Get("query")
	if query == "" {
		query = params.Get("search")
	}
	req := executor.Request{
		Query:   query,
		Kind:    sel,
		Sort:    params.Get("sort"),
		Filters: make(map[string]string),
	}
	for name, values := range params {
		if reserved[name] || len(values) == 0 {
			continue
		}
		req.Filters[name] = values[0]
	}
	return req
}

// paginate slices kr the way a page-numbered listing does: a missing or
// non-numeric page is the first page, an out-of-range page is the last.
func paginate(kr *executor.KindResult, query, rawPage string, size int) Page {
	hits := kr.Hits
	pages := (len(hits) + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	page, err := strconv.Atoi(strings.TrimSpace(rawPage))
	switch {
	case err != nil:
		page = 1
	case page < 1 || page > pages:
		page = pages
	}
	lo := (page - 1) * size
	hi := min(lo+size, len(hits))
	return Page{
		Kind:     kr.Kind,
		Query:    query,
		Sort:     kr.Sort,
		Page:     page,
		PageSize: size,
		Pages:    pages,
		Total:    kr.Total,
		Count:    len(hits),
		HasNext:  page < pages,
		HasPrev:  page > 1,
		Ignored:  kr.Ignored,
		Hits:     hits[lo:hi],
	}
}

func newEvent(req executor.Request, resp *executor.Response, cacheHit bool, latency time.Duration, requestID string) analytics.SearchEvent {
	event := analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Query:     resp.Query,
		Tokens:    tokenizer.Parse(req.Query).Tokens,
		Kind:      string(resp.Kind),
		Sort:      req.Sort,
		Results:   make(map[string]int, len(resp.Results)),
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
	applied := make(map[string]bool)
	ignored := make(map[string]bool)
	for kind, kr := range resp.Results {
		event.Results[string(kind)] = kr.Total
		skip := make(map[string]bool, len(kr.Ignored))
		for _, name := range kr.Ignored {
			ignored[name] = true
			skip[name] = true
		}
		for _, name := range filter.Names(kind) {
			if strings.TrimSpace(req.Filters[name]) != "" && !skip[name] {
				applied[name] = true
			}
		}
	}
	for name := range applied {
		event.Filters = append(event.Filters, name)
	}
	for name := range ignored {
		event.Ignored = append(event.Ignored, name)
	}
	sort.Strings(event.Filters)
	sort.Strings(event.Ignored)
	return event
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": apperrors.PublicMessage(err)})
}
