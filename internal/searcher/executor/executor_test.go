package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/searcher/ranker"
	"github.com/nepal-guide-hub/discovery/internal/searcher/sorter"
	"github.com/nepal-guide-hub/discovery/internal/storage"
	"github.com/nepal-guide-hub/discovery/internal/storage/memory"
	"github.com/nepal-guide-hub/discovery/pkg/config"
)

var (
	base  = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock = func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) }
)

func day(n int) time.Time { return base.AddDate(0, 0, n) }

func fixture() memory.Fixture {
	year := 2010
	summit := catalog.AgencyRef{ID: 1}
	ghost := catalog.AgencyRef{ID: 2}
	return memory.Fixture{
		Agencies: []catalog.Agency{
			{ID: 1, Name: "Summit Nepal", Description: "Treks across Nepal", EstablishedYear: &year, Rating: 4.0, TotalRatings: 20, IsVerified: true, Created: day(0)},
			{ID: 2, Name: "Ghost Tours", Description: "Annapurna trek operator", Rating: 5, IsVerified: false, Created: day(0)},
		},
		Packages: []catalog.Package{
			{ID: 1, Slug: "abc-trek", Title: "Annapurna Base Camp Trek", Description: "Ten days in the Annapurna sanctuary", PackageType: "trekking", PricePerPerson: 900, DurationDays: 10, IsActive: true, Agency: summit, Created: day(1)},
			{ID: 2, Slug: "everest-view", Title: "Everest View Trek", Description: "Short trek", PackageType: "trekking", PricePerPerson: 1200, DurationDays: 7, IsActive: true, Agency: summit, Created: day(2)},
			{ID: 3, Slug: "chitwan", Title: "Chitwan Safari", Description: "Jungle", PackageType: "wildlife", PricePerPerson: 300, DurationDays: 3, IsActive: true, Agency: summit, Created: day(3)},
			{ID: 4, Title: "Annapurna Sunrise", IsActive: false, Agency: summit, Created: day(4)},
			{ID: 5, Title: "Annapurna Express Trek", IsActive: true, Agency: ghost, Created: day(5)},
		},
		Guides: []catalog.Guide{
			{ID: 1, Name: "Pemba", Bio: "Annapurna region expert", PlacesCovered: "Annapurna, Mustang", IsAvailable: true, Rating: 4.5, TotalRatings: 30, Agency: summit, Created: day(1)},
			{ID: 2, Name: "Maya", Bio: "Cultural tours", IsAvailable: true, Rating: 4.9, TotalRatings: 50, Agency: summit, Created: day(2)},
		},
	}
}

func searchCfg() config.SearchConfig {
	return config.SearchConfig{CandidateCap: 100, ResultCap: 30, PageSize: 12}
}

func newExecutor(t *testing.T, cfg config.SearchConfig) *Executor {
	t.Helper()
	return New(memory.New(fixture()), cfg, WithClock(clock))
}

func hitIDs(kr *KindResult) []int64 {
	out := make([]int64, len(kr.Hits))
	for i, h := range kr.Hits {
		out[i] = h.ID
	}
	return out
}

func hitScores(kr *KindResult) []int {
	out := make([]int, len(kr.Hits))
	for i, h := range kr.Hits {
		if h.Score == nil {
			out[i] = -1
			continue
		}
		out[i] = *h.Score
	}
	return out
}

func TestExecuteQueryAllKinds(t *testing.T) {
	e := newExecutor(t, searchCfg())
	resp, err := e.Execute(context.Background(), Request{Query: "  Annapurna   TREK ", Kind: "all"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Query != "annapurna trek" {
		t.Errorf("query = %q", resp.Query)
	}
	tests := []struct {
		kind       catalog.Kind
		wantIDs    []int64
		wantScores []int
	}{
		// title 2 tokens (6) + description "annapurna" (2); second package hits "trek" twice.
		{catalog.KindPackages, []int64{1, 2}, []int{8, 5}},
		// bio (2) + places (2) + rating 4.5*2 (9) + 30 ratings (3).
		{catalog.KindGuides, []int64{1}, []int{16}},
		// description "trek" (2) + rating 4*2 (8) + 20 ratings (2) + 3 active packages (3).
		{catalog.KindAgencies, []int64{1}, []int{15}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			kr := resp.Results[tt.kind]
			if kr == nil {
				t.Fatalf("missing results for %s", tt.kind)
			}
			if !kr.Scored || kr.Sort != sorter.KeyRelevance {
				t.Errorf("scored = %v sort = %q, want relevance", kr.Scored, kr.Sort)
			}
			if got := hitIDs(kr); !reflect.DeepEqual(got, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", got, tt.wantIDs)
			}
			if got := hitScores(kr); !reflect.DeepEqual(got, tt.wantScores) {
				t.Errorf("scores = %v, want %v", got, tt.wantScores)
			}
		})
	}
	if resp.Total() != 4 {
		t.Errorf("total = %d, want 4", resp.Total())
	}
}

func TestExecuteWithoutQueryUsesDefaultOrder(t *testing.T) {
	e := newExecutor(t, searchCfg())
	resp, err := e.Execute(context.Background(), Request{Kind: "packages"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results = %d kinds, want 1", len(resp.Results))
	}
	kr := resp.Results[catalog.KindPackages]
	if kr.Scored || kr.Sort != "newest" {
		t.Errorf("scored = %v sort = %q", kr.Scored, kr.Sort)
	}
	if got := hitIDs(kr); !reflect.DeepEqual(got, []int64{3, 2, 1}) {
		t.Errorf("ids = %v, want [3 2 1]", got)
	}
	for _, h := range kr.Hits {
		if h.Score != nil {
			t.Errorf("hit %d has a score in an unscored search", h.ID)
		}
	}
	if kr.Hits[0].Slug != "chitwan" || kr.Hits[0].Label != "Chitwan Safari" {
		t.Errorf("hit = %+v", kr.Hits[0])
	}
}

func TestRelevanceWithoutQueryFallsBack(t *testing.T) {
	e := newExecutor(t, searchCfg())
	resp, err := e.Execute(context.Background(), Request{Kind: "guides", Sort: "relevance"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	kr := resp.Results[catalog.KindGuides]
	if kr.Sort != "rating" {
		t.Errorf("sort = %q, want rating", kr.Sort)
	}
	if got := hitIDs(kr); !reflect.DeepEqual(got, []int64{2, 1}) {
		t.Errorf("ids = %v, want [2 1]", got)
	}
}

func TestExplicitSortWithQuery(t *testing.T) {
	e := newExecutor(t, searchCfg())
	resp, err := e.Execute(context.Background(), Request{Query: "annapurna trek", Kind: "packages", Sort: "price_high"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	kr := resp.Results[catalog.KindPackages]
	if kr.Sort != "price_high" || !kr.Scored {
		t.Errorf("sort = %q scored = %v", kr.Sort, kr.Scored)
	}
	if got := hitIDs(kr); !reflect.DeepEqual(got, []int64{2, 1}) {
		t.Errorf("ids = %v, want [2 1]", got)
	}
}

func TestInvertedRangeIsEmpty(t *testing.T) {
	e := newExecutor(t, searchCfg())
	resp, err := e.Execute(context.Background(), Request{
		Kind:    "packages",
		Filters: map[string]string{"min_price": "100", "max_price": "50"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	kr := resp.Results[catalog.KindPackages]
	if kr.Total != 0 || kr.Hits == nil || len(kr.Hits) != 0 {
		t.Errorf("result = %+v, want empty non-nil hits", kr)
	}
}

func TestIgnoredFiltersReported(t *testing.T) {
	e := newExecutor(t, searchCfg())
	resp, err := e.Execute(context.Background(), Request{
		Kind:    "packages",
		Filters: map[string]string{"min_price": "cheap", "type": "trekking"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	kr := resp.Results[catalog.KindPackages]
	if !reflect.DeepEqual(kr.Ignored, []string{"min_price"}) {
		t.Errorf("ignored = %v", kr.Ignored)
	}
	if got := hitIDs(kr); !reflect.DeepEqual(got, []int64{2, 1}) {
		t.Errorf("ids = %v, want [2 1]", got)
	}
}

func TestEstablishedFilterUsesClock(t *testing.T) {
	e := newExecutor(t, searchCfg())
	for bucket, want := range map[string][]int64{"veteran": {1}, "experienced": {}} {
		resp, err := e.Execute(context.Background(), Request{
			Kind:    "agencies",
			Filters: map[string]string{"established": bucket},
		})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if got := hitIDs(resp.Results[catalog.KindAgencies]); !reflect.DeepEqual(got, want) {
			t.Errorf("%s: ids = %v, want %v", bucket, got, want)
		}
	}
}

func TestResultCapTruncatesAfterRanking(t *testing.T) {
	cfg := searchCfg()
	cfg.ResultCap = 2
	resp, err := newExecutor(t, cfg).Execute(context.Background(), Request{Kind: "packages"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	kr := resp.Results[catalog.KindPackages]
	if kr.Total != 3 {
		t.Errorf("total = %d, want 3 before truncation", kr.Total)
	}
	if got := hitIDs(kr); !reflect.DeepEqual(got, []int64{3, 2}) {
		t.Errorf("ids = %v, want [3 2]", got)
	}
}

type recordingRepo struct {
	storage.Repository
	fetches []storage.Fetch
}

func (r *recordingRepo) Candidates(ctx context.Context, f storage.Fetch) ([]catalog.Item, error) {
	r.fetches = append(r.fetches, f)
	return r.Repository.Candidates(ctx, f)
}

func TestFetchCarriesPlan(t *testing.T) {
	repo := &recordingRepo{Repository: memory.New(fixture())}
	cfg := searchCfg()
	cfg.CandidateCap = 1
	e := New(repo, cfg, WithClock(clock))
	resp, err := e.Execute(context.Background(), Request{Query: "trek", Kind: "packages", Filters: map[string]string{"type": "trekking"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(repo.fetches) != 1 {
		t.Fatalf("fetches = %d, want 1", len(repo.fetches))
	}
	f := repo.fetches[0]
	if f.Kind != catalog.KindPackages || f.Limit != 1 || len(f.Predicates) != 1 {
		t.Errorf("fetch = %+v", f)
	}
	if f.Text.Phrase != "trek" || !reflect.DeepEqual(f.TextFields, ranker.Fields(catalog.KindPackages)) {
		t.Errorf("text = %+v over %v", f.Text, f.TextFields)
	}
	wantOrder := []sorter.Key{{Field: catalog.FieldCreatedAt, Desc: true}, {Field: catalog.FieldID, Desc: true}}
	if !reflect.DeepEqual(f.Order, wantOrder) {
		t.Errorf("order = %+v, want %+v", f.Order, wantOrder)
	}
	// The candidate cap keeps only the newest trekking package.
	if got := hitIDs(resp.Results[catalog.KindPackages]); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("ids = %v, want [2]", got)
	}
}

type failingRepo struct{ err error }

func (r failingRepo) Candidates(context.Context, storage.Fetch) ([]catalog.Item, error) {
	return nil, r.err
}

func TestStorageErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	e := New(failingRepo{err: boom}, searchCfg())
	_, err := e.Execute(context.Background(), Request{Kind: "guides"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if err.Error() != "fetching guides: connection refused" {
		t.Errorf("err = %q", err.Error())
	}
}

// permissiveRepo ignores eligibility and predicates, as a lax adapter might.
type permissiveRepo struct{ items []catalog.Item }

func (r permissiveRepo) Candidates(context.Context, storage.Fetch) ([]catalog.Item, error) {
	return r.items, nil
}

func TestExecutorReappliesEligibilityAndFilters(t *testing.T) {
	repo := permissiveRepo{items: []catalog.Item{
		&catalog.Package{ID: 1, PricePerPerson: 50, IsActive: true, Agency: catalog.AgencyRef{Verified: true}},
		&catalog.Package{ID: 2, PricePerPerson: 500, IsActive: true, Agency: catalog.AgencyRef{Verified: true}},
		&catalog.Package{ID: 3, PricePerPerson: 500, IsActive: false, Agency: catalog.AgencyRef{Verified: true}},
		&catalog.Package{ID: 4, PricePerPerson: 500, IsActive: true, Agency: catalog.AgencyRef{Verified: false}},
	}}
	resp, err := New(repo, searchCfg()).Execute(context.Background(), Request{
		Kind:    "packages",
		Filters: map[string]string{"min_price": "100"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := hitIDs(resp.Results[catalog.KindPackages]); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("ids = %v, want [2]", got)
	}
}

func TestExplain(t *testing.T) {
	e := newExecutor(t, searchCfg())
	out, err := e.Explain(context.Background(), Request{Query: "annapurna trek", Kind: "packages", Filters: map[string]string{"max_price": "1000"}})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("explanations = %d, want 1", len(out))
	}
	ex := out[0]
	// Chitwan Safari is under the price cap but never reaches the executor:
	// storage drops it for not matching the text.
	if !ex.Plan.Relevance || len(ex.Predicates) != 1 || ex.Candidates != 1 || ex.Total != 1 {
		t.Errorf("explanation = %+v", ex)
	}
	if len(ex.Hits) != 1 || ex.Hits[0].Breakdown == nil {
		t.Fatalf("hits = %+v", ex.Hits)
	}
	b := ex.Hits[0].Breakdown
	if b.Text != 8 || b.Boost != 0 || b.Total != 8 || !b.Matched {
		t.Errorf("breakdown = %+v", b)
	}
	if title := b.Fields[0]; title.Field != catalog.FieldTitle || title.PhraseHit || title.TokenHits != 2 || title.Score != 6 {
		t.Errorf("title = %+v", title)
	}
}

func TestCandidateCapKeepsTextMatches(t *testing.T) {
	summit := catalog.AgencyRef{ID: 1}
	fx := memory.Fixture{
		Agencies: []catalog.Agency{{ID: 1, Name: "Summit Nepal", IsVerified: true, Created: day(0)}},
		Packages: []catalog.Package{
			{ID: 1, Title: "Everest Base Camp", PricePerPerson: 100, DurationDays: 12, IsActive: true, Agency: summit, Created: day(0)},
		},
	}
	for i := 2; i <= 101; i++ {
		fx.Packages = append(fx.Packages, catalog.Package{
			ID: int64(i), Title: fmt.Sprintf("Lakeside %d", i), PricePerPerson: float64(500 + i),
			DurationDays: 2, IsActive: true, Agency: summit, Created: day(i),
		})
	}
	e := New(memory.New(fx), config.SearchConfig{CandidateCap: 100, ResultCap: 30}, WithClock(clock))

	for _, sort := range []string{"", "relevance", "newest", "price_low", "price_high", "duration_long"} {
		t.Run("sort="+sort, func(t *testing.T) {
			resp, err := e.Execute(context.Background(), Request{Query: "everest", Kind: "packages", Sort: sort})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			kr := resp.Results[catalog.KindPackages]
			if kr.Total != 1 || !reflect.DeepEqual(hitIDs(kr), []int64{1}) {
				t.Errorf("total = %d ids = %v, want the one Everest package", kr.Total, hitIDs(kr))
			}
		})
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	summit := catalog.AgencyRef{ID: 1}
	fx := memory.Fixture{
		Agencies: []catalog.Agency{{ID: 1, Name: "Summit Nepal", Description: "Treks", IsVerified: true, Rating: 4, Created: day(0)}},
		Guides: []catalog.Guide{
			{ID: 1, Name: "Pemba", Bio: "Trek leader", IsAvailable: true, Rating: 4.5, Agency: summit, Created: day(1)},
			{ID: 2, Name: "Dawa", Bio: "Trek leader", IsAvailable: true, Rating: 4.5, Agency: summit, Created: day(1)},
			{ID: 3, Name: "Nima", Bio: "Trek leader", IsAvailable: true, Rating: 4.5, Agency: summit, Created: day(1)},
		},
	}
	// Equal prices, dates and scores leave only the id tie-break.
	for i := 1; i <= 6; i++ {
		fx.Packages = append(fx.Packages, catalog.Package{
			ID: int64(i), Title: "Trek", PricePerPerson: 700, DurationDays: 5,
			IsActive: true, Agency: summit, Created: day(1),
		})
	}
	e := New(memory.New(fx), searchCfg(), WithClock(clock))

	reqs := []Request{
		{Query: "trek", Kind: "all"},
		{Query: "trek", Kind: "packages", Sort: "price_low"},
		{Kind: "guides", Sort: "rating"},
		{Kind: "all", Filters: map[string]string{"max_price": "700", "min_rating": "4"}},
	}
	for _, req := range reqs {
		first, err := e.Execute(context.Background(), req)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		second, err := e.Execute(context.Background(), req)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%+v: responses differ", req)
		}
		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		if string(a) != string(b) {
			t.Errorf("%+v: encodings differ:\n%s\n%s", req, a, b)
		}
	}

	resp, err := e.Execute(context.Background(), Request{Query: "trek", Kind: "packages"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := hitIDs(resp.Results[catalog.KindPackages]); !reflect.DeepEqual(got, []int64{6, 5, 4, 3, 2, 1}) {
		t.Errorf("tied ids = %v, want descending id order", got)
	}
}
