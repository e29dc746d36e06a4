// Package sorter resolves a requested sort key into a total ordering over
// scored catalog items.
//
// Relevance ordering is applied only when the caller says scores exist; it is
// never inferred from the data. Every ordering ends with the item id so ties
// are broken deterministically and pagination is reproducible.
package sorter

import (
	"sort"
	"strings"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
)

// KeyRelevance selects ordering by relevance score.
const KeyRelevance = "relevance"

// FieldScore is the pseudo-field naming the relevance score in a Plan.
const FieldScore = "score"

// Key is one component of a multi-key ordering.
type Key struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// Plan is a resolved ordering.
type Plan struct {
	// Key is the effective sort key name.
	Key       string `json:"key"`
	Relevance bool   `json:"relevance"`
	Keys      []Key  `json:"keys"`
}

// StorageKeys returns the plan's keys without the relevance score, which
// only exists in memory.
func (p Plan) StorageKeys() []Key {
	out := make([]Key, 0, len(p.Keys))
	for _, k := range p.Keys {
		if k.Field != FieldScore {
			out = append(out, k)
		}
	}
	return out
}

// Scored pairs an item with its relevance score. Score is meaningful only
// when the search was scored.
type Scored struct {
	Item  catalog.Item
	Score int
}

type kindOrders struct {
	def       string
	relevance []Key
	keys      map[string][]Key
}

var (
	newest        = Key{Field: catalog.FieldCreatedAt, Desc: true}
	ratingDesc    = Key{Field: catalog.FieldRating, Desc: true}
	ratingsDesc   = Key{Field: catalog.FieldTotalRatings, Desc: true}
	nameAsc       = Key{Field: catalog.FieldName}
	priceAsc      = Key{Field: catalog.FieldPrice}
	rateAsc       = Key{Field: catalog.FieldRate}
	experienceAsc = Key{Field: catalog.FieldExperience}
)

func desc(k Key) Key {
	k.Desc = true
	return k
}

var orders = map[catalog.Kind]kindOrders{
	catalog.KindPackages: {
		def:       "newest",
		relevance: []Key{newest},
		keys: map[string][]Key{
			"newest":         {newest},
			"price_low":      {priceAsc, newest},
			"price_high":     {desc(priceAsc), newest},
			"rating":         {ratingDesc, ratingsDesc, newest},
			"duration_short": {{Field: catalog.FieldDuration}, priceAsc},
			"duration_long":  {{Field: catalog.FieldDuration, Desc: true}, priceAsc},
		},
	},
	catalog.KindGuides: {
		def:       "rating",
		relevance: []Key{ratingDesc, ratingsDesc, newest},
		keys: map[string][]Key{
			"rating":         {ratingDesc, ratingsDesc, newest},
			"price_low":      {rateAsc, ratingDesc},
			"price_high":     {desc(rateAsc), ratingDesc},
			"experience":     {desc(experienceAsc), ratingDesc},
			"experience_low": {experienceAsc, ratingDesc},
			"name":           {nameAsc},
			"newest":         {newest},
		},
	},
	catalog.KindAgencies: {
		def:       "rating",
		relevance: []Key{ratingDesc, ratingsDesc, nameAsc},
		keys: map[string][]Key{
			"rating":      {ratingDesc, ratingsDesc, nameAsc},
			"name":        {nameAsc},
			"newest":      {newest},
			"established": {{Field: catalog.FieldEstablished}, nameAsc},
		},
	},
}

var idDesc = Key{Field: catalog.FieldID, Desc: true}

// Resolve picks the ordering for kind. scored reports whether a query
// produced relevance scores for this search.
func Resolve(kind catalog.Kind, key string, scored bool) Plan {
	o := orders[kind]
	key = strings.ToLower(strings.TrimSpace(key))
	if scored && (key == "" || key == KeyRelevance) {
		keys := append([]Key{{Field: FieldScore, Desc: true}}, o.relevance...)
		return Plan{Key: KeyRelevance, Relevance: true, Keys: append(keys, idDesc)}
	}
	keys, ok := o.keys[key]
	if !ok {
		key = o.def
		keys = o.keys[key]
	}
	return Plan{Key: key, Keys: append(append([]Key(nil), keys...), idDesc)}
}

// Keys returns the explicit sort keys accepted for kind, relevance included.
func Keys(kind catalog.Kind) []string {
	o := orders[kind]
	out := make([]string, 0, len(o.keys)+1)
	out = append(out, KeyRelevance)
	for k := range o.keys {
		out = append(out, k)
	}
	sort.Strings(out[1:])
	return out
}

// Sort orders items in place according to plan.
func Sort(plan Plan, items []Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(plan.Keys, items[i], items[j])
	})
}

// Less reports whether a orders before b under keys.
func Less(keys []Key, a, b Scored) bool {
	for _, k := range keys {
		if c := compare(k, a, b); c != 0 {
			return c < 0
		}
	}
	return false
}

// compare returns the signed ordering of a and b under one key. Null values
// sort after non-null values regardless of direction.
func compare(k Key, a, b Scored) int {
	var c int
	switch k.Field {
	case FieldScore:
		c = cmpInt(int64(a.Score), int64(b.Score))
	case catalog.FieldID:
		c = cmpInt(a.Item.ItemID(), b.Item.ItemID())
	case catalog.FieldCreatedAt:
		c = a.Item.CreatedAt().Compare(b.Item.CreatedAt())
	case catalog.FieldName:
		an, _ := a.Item.String(catalog.FieldName)
		bn, _ := b.Item.String(catalog.FieldName)
		c = strings.Compare(strings.ToLower(an), strings.ToLower(bn))
		if c == 0 {
			c = strings.Compare(an, bn)
		}
	default:
		av, aok := a.Item.Number(k.Field)
		bv, bok := b.Item.Number(k.Field)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		switch {
		case av < bv:
			c = -1
		case av > bv:
			c = 1
		}
	}
	if k.Desc {
		return -c
	}
	return c
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
