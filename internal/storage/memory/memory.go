// Package memory is an in-process Repository over a fixed catalog snapshot.
// Snapshots are usually loaded from a YAML fixture file.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/searcher/filter"
	"github.com/nepal-guide-hub/discovery/internal/searcher/matcher"
	"github.com/nepal-guide-hub/discovery/internal/searcher/sorter"
	"github.com/nepal-guide-hub/discovery/internal/storage"
)

// Fixture is the on-disk layout of a catalog snapshot.
type Fixture struct {
	Agencies []catalog.Agency  `yaml:"agencies"`
	Packages []catalog.Package `yaml:"packages"`
	Guides   []catalog.Guide   `yaml:"guides"`
}

// Store holds a catalog snapshot. It is safe for concurrent reads.
type Store struct {
	items  map[catalog.Kind][]catalog.Item
	logger *slog.Logger
}

// New builds a Store from fixture. Agency references on packages and guides
// are resolved by id when the referenced agency exists, and each agency's
// package count is computed from its active packages.
func New(fx Fixture) *Store {
	agencies := make(map[int64]*catalog.Agency, len(fx.Agencies))
	s := &Store{
		items:  make(map[catalog.Kind][]catalog.Item, len(catalog.Kinds)),
		logger: slog.Default().With("component", "memory-store"),
	}
	for i := range fx.Agencies {
		a := fx.Agencies[i]
		a.PackageCount = 0
		agencies[a.ID] = &a
	}
	for i := range fx.Packages {
		p := fx.Packages[i]
		if a, ok := agencies[p.Agency.ID]; ok {
			p.Agency = ref(a)
			if p.IsActive {
				a.PackageCount++
			}
		}
		s.items[catalog.KindPackages] = append(s.items[catalog.KindPackages], &p)
	}
	for i := range fx.Guides {
		g := fx.Guides[i]
		if a, ok := agencies[g.Agency.ID]; ok {
			g.Agency = ref(a)
		}
		s.items[catalog.KindGuides] = append(s.items[catalog.KindGuides], &g)
	}
	for _, a := range agencies {
		s.items[catalog.KindAgencies] = append(s.items[catalog.KindAgencies], a)
	}
	sort.Slice(s.items[catalog.KindAgencies], func(i, j int) bool {
		return s.items[catalog.KindAgencies][i].ItemID() < s.items[catalog.KindAgencies][j].ItemID()
	})
	return s
}

// Load reads a YAML fixture file and builds a Store from it.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures %s: %w", path, err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing fixtures %s: %w", path, err)
	}
	s := New(fx)
	s.logger.Info("fixtures loaded",
		"path", path,
		"packages", len(fx.Packages),
		"guides", len(fx.Guides),
		"agencies", len(fx.Agencies),
	)
	return s, nil
}

// Candidates implements storage.Repository.
func (s *Store) Candidates(ctx context.Context, f storage.Fetch) ([]catalog.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, ok := s.items[f.Kind]
	if !ok && !known(f.Kind) {
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownKind, f.Kind)
	}
	candidates := make([]sorter.Scored, 0, len(all))
	for _, item := range all {
		if item.Eligible() && filter.MatchAll(item, f.Predicates) && textMatch(item, f) {
			candidates = append(candidates, sorter.Scored{Item: item})
		}
	}
	if len(f.Order) > 0 {
		sorter.Sort(sorter.Plan{Keys: f.Order}, candidates)
	}
	if f.Limit > 0 && len(candidates) > f.Limit {
		candidates = candidates[:f.Limit]
	}
	out := make([]catalog.Item, len(candidates))
	for i, c := range candidates {
		out[i] = c.Item
	}
	return out, nil
}

// Len returns the number of stored items of kind, eligible or not.
func (s *Store) Len(kind catalog.Kind) int {
	return len(s.items[kind])
}

func textMatch(item catalog.Item, f storage.Fetch) bool {
	if f.Text.Empty() {
		return true
	}
	for _, field := range f.TextFields {
		if matcher.Match(item.Text(field), f.Text).Any() {
			return true
		}
	}
	return false
}

func ref(a *catalog.Agency) catalog.AgencyRef {
	return catalog.AgencyRef{
		ID:           a.ID,
		Name:         a.Name,
		Verified:     a.IsVerified,
		Rating:       a.Rating,
		TotalRatings: a.TotalRatings,
	}
}

func known(kind catalog.Kind) bool {
	for _, k := range catalog.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
