package ranker

import (
	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/searcher/matcher"
	"github.com/nepal-guide-hub/discovery/internal/searcher/tokenizer"
)

// FieldWeight is the contribution of one text field: Phrase is added when
// the whole phrase matches, Token is added per matching query token.
type FieldWeight struct {
	Field  string
	Phrase int
	Token  int
}

// Weights holds the scorable fields per kind, primary field first. The
// values are a compatibility contract and must not be retuned.
var Weights = map[catalog.Kind][]FieldWeight{
	catalog.KindPackages: {
		{Field: catalog.FieldTitle, Phrase: 10, Token: 3},
		{Field: catalog.FieldDescription, Phrase: 6, Token: 2},
		{Field: catalog.FieldBestSeason, Phrase: 3, Token: 1},
		{Field: catalog.FieldAgencyName, Phrase: 4, Token: 2},
	},
	catalog.KindGuides: {
		{Field: catalog.FieldName, Phrase: 8, Token: 3},
		{Field: catalog.FieldBio, Phrase: 5, Token: 2},
		{Field: catalog.FieldPlacesCovered, Phrase: 4, Token: 2},
		{Field: catalog.FieldAgencyName, Phrase: 3, Token: 1},
	},
	catalog.KindAgencies: {
		{Field: catalog.FieldName, Phrase: 7, Token: 3},
		{Field: catalog.FieldDescription, Phrase: 4, Token: 2},
	},
}

// Fields returns the scorable text fields of kind in weight-table order.
func Fields(kind catalog.Kind) []string {
	weights := Weights[kind]
	out := make([]string, len(weights))
	for i, w := range weights {
		out[i] = w.Field
	}
	return out
}

const (
	featuredBoost    = 5
	viewsPerPoint    = 50
	maxViewsBoost    = 20
	ratingsPerPoint  = 10
	maxRatingsBoost  = 15
	maxPackagesBoost = 10
)

// FieldScore is the text contribution of one field.
type FieldScore struct {
	Field string `json:"field"`
	matcher.FieldMatch
	Score int `json:"score"`
}

// Breakdown explains how a score was assembled.
type Breakdown struct {
	Fields []FieldScore `json:"fields"`
	Text   int          `json:"text"`
	Boost  int          `json:"boost"`
	Total  int          `json:"total"`
	// Matched is set when at least one field matched the query.
	Matched bool `json:"matched"`
}

// Score computes the relevance of item for q. It must only be called for a
// non-empty query.
func Score(item catalog.Item, q tokenizer.Query) Breakdown {
	weights := Weights[item.Kind()]
	b := Breakdown{Fields: make([]FieldScore, 0, len(weights))}
	for _, w := range weights {
		m := matcher.Match(item.Text(w.Field), q)
		fs := FieldScore{Field: w.Field, FieldMatch: m, Score: m.TokenHits * w.Token}
		if m.PhraseHit {
			fs.Score += w.Phrase
		}
		if m.Any() {
			b.Matched = true
		}
		b.Text += fs.Score
		b.Fields = append(b.Fields, fs)
	}
	b.Boost = Boost(item)
	b.Total = b.Text + b.Boost
	return b
}

// Boost returns the query-independent metadata contribution for item.
func Boost(item catalog.Item) int {
	switch it := item.(type) {
	case *catalog.Package:
		boost := min(it.ViewsCount/viewsPerPoint, maxViewsBoost)
		if it.Featured {
			boost += featuredBoost
		}
		return nonNegative(boost)
	case *catalog.Guide:
		return nonNegative(int(it.Rating*2) + min(it.TotalRatings/ratingsPerPoint, maxRatingsBoost))
	case *catalog.Agency:
		return nonNegative(int(it.Rating)*2 +
			min(it.TotalRatings/ratingsPerPoint, maxRatingsBoost) +
			min(it.PackageCount, maxPackagesBoost))
	}
	return 0
}

// nonNegative clamps corrupt negative counters so a score never drops below
// zero.
func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
