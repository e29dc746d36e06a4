package filter

import (
	"reflect"
	"testing"
	"time"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
)

var now = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

func ids(items []catalog.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ItemID())
	}
	return out
}

func packages() []catalog.Item {
	return []catalog.Item{
		&catalog.Package{ID: 1, PackageType: "trekking", Difficulty: "moderate", PricePerPerson: 1200, DurationDays: 14, Agency: catalog.AgencyRef{Rating: 4.5}},
		&catalog.Package{ID: 2, PackageType: "cultural", Difficulty: "easy", PricePerPerson: 300, DurationDays: 3, Agency: catalog.AgencyRef{Rating: 3.9}},
		&catalog.Package{ID: 3, PackageType: "trekking", Difficulty: "difficult", PricePerPerson: 2500, DurationDays: 21, Agency: catalog.AgencyRef{Rating: 4.8}},
		&catalog.Package{ID: 4, PackageType: "wildlife", Difficulty: "easy", PricePerPerson: 80, DurationDays: 5, Agency: catalog.AgencyRef{Rating: 2.0}},
	}
}

func guides() []catalog.Item {
	return []catalog.Item{
		&catalog.Guide{ID: 1, Specialties: []string{"trekking", "mountaineering"}, Languages: []string{"en", "ne"}, ExperienceYears: 12, DailyRate: 60, Rating: 4.9},
		&catalog.Guide{ID: 2, Specialties: []string{"cultural"}, Languages: []string{"en", "fr"}, ExperienceYears: 4, DailyRate: 35, Rating: 4.1},
		&catalog.Guide{ID: 3, Specialties: nil, Languages: []string{"ne"}, ExperienceYears: 7, DailyRate: 25, Rating: 3.5},
		&catalog.Guide{ID: 4, Specialties: []string{"wildlife", "trekking"}, Languages: []string{"de"}, ExperienceYears: 1, DailyRate: 40, Rating: 0},
	}
}

func agencies() []catalog.Item {
	return []catalog.Item{
		&catalog.Agency{ID: 1, Address: "Thamel, Kathmandu", EstablishedYear: intPtr(2023), Rating: 4.2},
		&catalog.Agency{ID: 2, Address: "Lakeside, Pokhara", EstablishedYear: intPtr(2015), Rating: 4.7},
		&catalog.Agency{ID: 3, Address: "Durbar Marg, KATHMANDU", EstablishedYear: intPtr(1995), Rating: 3.1},
		&catalog.Agency{ID: 4, Address: "Sauraha, Chitwan", EstablishedYear: nil, Rating: 4.0},
	}
}

func run(kind catalog.Kind, items []catalog.Item, raw map[string]string) []int64 {
	res := Parse(kind, raw, now)
	return ids(Apply(items, res.Predicates))
}

func TestPackageFilters(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]string
		want []int64
	}{
		{"no filters", nil, []int64{1, 2, 3, 4}},
		{"blank values pass through", map[string]string{"type": " ", "min_price": ""}, []int64{1, 2, 3, 4}},
		{"type round trip", map[string]string{"type": "trekking"}, []int64{1, 3}},
		{"difficulty", map[string]string{"difficulty": "easy"}, []int64{2, 4}},
		{"min price inclusive", map[string]string{"min_price": "1200"}, []int64{1, 3}},
		{"max price inclusive", map[string]string{"max_price": "300"}, []int64{2, 4}},
		{"price range", map[string]string{"min_price": "100", "max_price": "1500"}, []int64{1, 2}},
		{"inverted range is empty", map[string]string{"min_price": "100", "max_price": "50"}, []int64{}},
		{"unparsable price ignored", map[string]string{"min_price": "cheap"}, []int64{1, 2, 3, 4}},
		{"duration 1-3", map[string]string{"duration": "1-3"}, []int64{2}},
		{"duration 4-7", map[string]string{"duration": "4-7"}, []int64{4}},
		{"duration 8-14", map[string]string{"duration": "8-14"}, []int64{1}},
		{"duration 15+", map[string]string{"duration": "15+"}, []int64{3}},
		{"unknown duration ignored", map[string]string{"duration": "forever"}, []int64{1, 2, 3, 4}},
		{"min duration", map[string]string{"min_duration": "14"}, []int64{1, 3}},
		{"agency rating floor", map[string]string{"min_rating": "4.5"}, []int64{1, 3}},
		{"and combination", map[string]string{"type": "trekking", "max_price": "2000"}, []int64{1}},
		{"guide filters ignored for packages", map[string]string{"language": "en"}, []int64{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(catalog.KindPackages, packages(), tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGuideFilters(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]string
		want []int64
	}{
		{"specialization membership", map[string]string{"specialization": "trekking"}, []int64{1, 4}},
		{"specialization no match", map[string]string{"specialization": "pilgrimage"}, []int64{}},
		{"language membership", map[string]string{"language": "ne"}, []int64{1, 3}},
		{"rate range", map[string]string{"min_rate": "30", "max_rate": "50"}, []int64{2, 4}},
		{"experience 1-5", map[string]string{"experience": "1-5"}, []int64{2, 4}},
		{"experience 6-10", map[string]string{"experience": "6-10"}, []int64{3}},
		{"experience 11+", map[string]string{"experience": "11+"}, []int64{1}},
		{"unknown experience ignored", map[string]string{"experience": "10+"}, []int64{1, 2, 3, 4}},
		{"min experience", map[string]string{"min_experience": "5"}, []int64{1, 3}},
		{"rating floor", map[string]string{"min_rating": "4"}, []int64{1, 2}},
		{"combined", map[string]string{"specialization": "trekking", "language": "en"}, []int64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(catalog.KindGuides, guides(), tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAgencyFilters(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]string
		want []int64
	}{
		{"new", map[string]string{"established": "new"}, []int64{1}},
		{"experienced", map[string]string{"established": "experienced"}, []int64{2}},
		{"veteran", map[string]string{"established": "Veteran"}, []int64{3}},
		{"unknown bucket ignored", map[string]string{"established": "ancient"}, []int64{1, 2, 3, 4}},
		{"location substring case insensitive", map[string]string{"location": "kathmandu"}, []int64{1, 3}},
		{"rating floor", map[string]string{"min_rating": "4.2"}, []int64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(catalog.KindAgencies, agencies(), tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstablishedBucketBoundaries(t *testing.T) {
	res := Parse(catalog.KindAgencies, map[string]string{"established": "experienced"}, now)
	want := []Predicate{
		{Name: "established", Field: catalog.FieldEstablished, Op: OpGTE, Num: 2011},
		{Name: "established", Field: catalog.FieldEstablished, Op: OpLTE, Num: 2020},
	}
	if !reflect.DeepEqual(res.Predicates, want) {
		t.Errorf("predicates = %+v, want %+v", res.Predicates, want)
	}
}

func TestParseReportsIgnored(t *testing.T) {
	res := Parse(catalog.KindPackages, map[string]string{
		"min_price": "abc",
		"max_price": "NaN",
		"duration":  "2-4",
		"type":      "trekking",
		"sort":      "price_low",
	}, now)
	if len(res.Predicates) != 1 {
		t.Errorf("predicates = %+v, want only the type predicate", res.Predicates)
	}
	want := []string{"max_price", "min_price", "duration"}
	if !sameSet(res.Ignored, want) {
		t.Errorf("ignored = %v, want %v", res.Ignored, want)
	}
}

func TestApplyWithoutPredicatesReturnsInput(t *testing.T) {
	items := packages()
	if got := Apply(items, nil); len(got) != len(items) {
		t.Errorf("len = %d, want %d", len(got), len(items))
	}
}

func TestNames(t *testing.T) {
	names := Names(catalog.KindGuides)
	if !sameSet(names, []string{"specialization", "language", "min_rate", "max_rate", "experience", "min_experience", "min_rating"}) {
		t.Errorf("names = %v", names)
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		name, value string
		want        string
		wantDated   bool
	}{
		{"established", " Veteran ", "veteran", true},
		{"duration", "15+", "15+", false},
		{"experience", " 11+", "11+", false},
		{"type", " Trekking ", "Trekking", false},
		{"location", "Thamel", "Thamel", false},
		{"unknown", " X ", "X", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dated := Canonical(tt.name, tt.value)
			if got != tt.want || dated != tt.wantDated {
				t.Errorf("Canonical(%q, %q) = %q, %v; want %q, %v", tt.name, tt.value, got, dated, tt.want, tt.wantDated)
			}
		})
	}
}
