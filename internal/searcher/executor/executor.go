// Package executor runs the discovery pipeline for one search request:
// eligibility and structured filtering, optional relevance scoring, sorting
// and truncation, once per requested entity kind.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/searcher/filter"
	"github.com/nepal-guide-hub/discovery/internal/searcher/ranker"
	"github.com/nepal-guide-hub/discovery/internal/searcher/sorter"
	"github.com/nepal-guide-hub/discovery/internal/searcher/tokenizer"
	"github.com/nepal-guide-hub/discovery/internal/storage"
	"github.com/nepal-guide-hub/discovery/pkg/config"
	"github.com/nepal-guide-hub/discovery/pkg/tracing"
)

// Request is one search request.
type Request struct {
	Query   string            `json:"query"`
	Kind    catalog.Selector  `json:"kind"`
	Filters map[string]string `json:"filters,omitempty"`
	Sort    string            `json:"sort,omitempty"`
}

// Hit is one ranked result.
type Hit struct {
	ID    int64        `json:"id"`
	Kind  catalog.Kind `json:"kind"`
	Label string       `json:"label"`
	Slug  string       `json:"slug,omitempty"`
	// Score is set only for scored searches.
	Score *int `json:"score,omitempty"`
	// Item is the entity snapshot. After a cache round trip it holds the
	// decoded JSON object instead of the concrete catalog type.
	Item any `json:"item"`
}

// KindResult is the outcome for one entity kind.
type KindResult struct {
	Kind catalog.Kind `json:"kind"`
	// Sort is the effective sort key after fallbacks.
	Sort string `json:"sort"`
	// Total counts the matching candidates before truncation.
	Total   int      `json:"total"`
	Scored  bool     `json:"scored"`
	Ignored []string `json:"ignored_filters,omitempty"`
	Hits    []Hit    `json:"hits"`
}

// Response holds the per-kind results of a search.
type Response struct {
	Query   string                       `json:"query"`
	Kind    catalog.Selector             `json:"kind"`
	Results map[catalog.Kind]*KindResult `json:"results"`
}

// Total sums the per-kind totals.
func (r *Response) Total() int {
	n := 0
	for _, kr := range r.Results {
		n += kr.Total
	}
	return n
}

// ExplainedHit pairs a hit with its score breakdown.
type ExplainedHit struct {
	Hit
	Breakdown *ranker.Breakdown `json:"breakdown,omitempty"`
}

// Explanation describes how one kind's results were produced.
type Explanation struct {
	Kind       catalog.Kind       `json:"kind"`
	Plan       sorter.Plan        `json:"plan"`
	Predicates []filter.Predicate `json:"predicates"`
	Ignored    []string           `json:"ignored_filters,omitempty"`
	Candidates int                `json:"candidates"`
	Total      int                `json:"total"`
	Hits       []ExplainedHit     `json:"hits"`
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the time source used for date-relative filters.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor runs searches against a Repository.
type Executor struct {
	repo         storage.Repository
	candidateCap int
	resultCap    int
	now          func() time.Time
	logger       *slog.Logger
}

func New(repo storage.Repository, cfg config.SearchConfig, opts ...Option) *Executor {
	e := &Executor{
		repo:         repo,
		candidateCap: cfg.CandidateCap,
		resultCap:    cfg.ResultCap,
		now:          time.Now,
		logger:       slog.Default().With("component", "search-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs req. Malformed input never fails a search; only storage
// errors are returned.
func (e *Executor) Execute(ctx context.Context, req Request) (*Response, error) {
	q := tokenizer.Parse(req.Query)
	sel := catalog.ParseSelector(string(req.Kind))
	resp := &Response{
		Query:   q.Phrase,
		Kind:    sel,
		Results: make(map[catalog.Kind]*KindResult, len(catalog.Kinds)),
	}
	for _, kind := range sel.Kinds() {
		r, err := e.run(ctx, kind, q, req)
		if err != nil {
			return nil, err
		}
		kr := &KindResult{
			Kind:    kind,
			Sort:    r.plan.Key,
			Total:   r.total,
			Scored:  r.scored,
			Ignored: r.parsed.Ignored,
			Hits:    make([]Hit, len(r.ranked)),
		}
		for i, s := range r.ranked {
			kr.Hits[i] = newHit(s, r.scored)
		}
		resp.Results[kind] = kr
	}
	e.logger.Debug("search executed",
		"query", q.Phrase,
		"kind", sel,
		"sort", req.Sort,
		"total", resp.Total(),
	)
	return resp, nil
}

// Explain runs req like Execute and reports the plan, predicates and score
// breakdown of every returned hit.
func (e *Executor) Explain(ctx context.Context, req Request) ([]Explanation, error) {
	q := tokenizer.Parse(req.Query)
	sel := catalog.ParseSelector(string(req.Kind))
	out := make([]Explanation, 0, len(sel.Kinds()))
	for _, kind := range sel.Kinds() {
		r, err := e.run(ctx, kind, q, req)
		if err != nil {
			return nil, err
		}
		ex := Explanation{
			Kind:       kind,
			Plan:       r.plan,
			Predicates: r.parsed.Predicates,
			Ignored:    r.parsed.Ignored,
			Candidates: r.candidates,
			Total:      r.total,
			Hits:       make([]ExplainedHit, len(r.ranked)),
		}
		for i, s := range r.ranked {
			ex.Hits[i] = ExplainedHit{Hit: newHit(s, r.scored)}
			if b, ok := r.breakdowns[s.Item.ItemID()]; ok {
				ex.Hits[i].Breakdown = &b
			}
		}
		out = append(out, ex)
	}
	return out, nil
}

type kindRun struct {
	parsed     filter.Result
	plan       sorter.Plan
	scored     bool
	candidates int
	total      int
	ranked     []sorter.Scored
	breakdowns map[int64]ranker.Breakdown
}

func (e *Executor) run(ctx context.Context, kind catalog.Kind, q tokenizer.Query, req Request) (*kindRun, error) {
	ctx, span := tracing.StartChildSpan(ctx, "search."+string(kind))
	defer span.End()

	r := &kindRun{
		parsed: filter.Parse(kind, req.Filters, e.now()),
		plan:   sorter.Resolve(kind, req.Sort, !q.Empty()),
		scored: !q.Empty(),
	}
	for _, name := range r.parsed.Ignored {
		e.logger.Debug("filter ignored", "kind", kind, "filter", name, "value", req.Filters[name])
	}

	_, fetchSpan := tracing.StartChildSpan(ctx, "fetch")
	// The text match goes to storage with the predicates so the candidate
	// cap only ever trims items that can appear in the result.
	items, err := e.repo.Candidates(ctx, storage.Fetch{
		Kind:       kind,
		Predicates: r.parsed.Predicates,
		Text:       q,
		TextFields: ranker.Fields(kind),
		Order:      r.plan.StorageKeys(),
		Limit:      e.candidateCap,
	})
	fetchSpan.SetAttr("rows", len(items))
	fetchSpan.End()
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", kind, err)
	}
	r.candidates = len(items)

	_, filterSpan := tracing.StartChildSpan(ctx, "filter")
	scored := make([]sorter.Scored, 0, len(items))
	for _, item := range items {
		if item.Eligible() && filter.MatchAll(item, r.parsed.Predicates) {
			scored = append(scored, sorter.Scored{Item: item})
		}
	}
	filterSpan.End()

	if r.scored {
		_, scoreSpan := tracing.StartChildSpan(ctx, "score")
		r.breakdowns = make(map[int64]ranker.Breakdown, len(scored))
		matched := scored[:0]
		for _, s := range scored {
			b := ranker.Score(s.Item, q)
			if !b.Matched {
				continue
			}
			s.Score = b.Total
			r.breakdowns[s.Item.ItemID()] = b
			matched = append(matched, s)
		}
		scored = matched
		scoreSpan.End()
	}

	_, sortSpan := tracing.StartChildSpan(ctx, "sort")
	sorter.Sort(r.plan, scored)
	sortSpan.End()

	r.total = len(scored)
	if e.resultCap > 0 && len(scored) > e.resultCap {
		scored = scored[:e.resultCap]
	}
	r.ranked = scored
	span.SetAttr("candidates", r.candidates)
	span.SetAttr("results", len(r.ranked))
	return r, nil
}

func newHit(s sorter.Scored, scored bool) Hit {
	h := Hit{
		ID:    s.Item.ItemID(),
		Kind:  s.Item.Kind(),
		Label: s.Item.Label(),
		Item:  s.Item,
	}
	if p, ok := s.Item.(*catalog.Package); ok {
		h.Slug = p.Slug
	}
	if scored {
		score := s.Score
		h.Score = &score
	}
	return h
}
