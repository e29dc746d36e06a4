// Package filter turns raw request filter values into storage-neutral
// predicates and evaluates them against catalog items.
//
// Parsing is permissive: a missing, blank, unparsable or unknown value never
// produces an error. It simply contributes no predicate and is reported in
// Result.Ignored so callers can log or count it. All predicates of one search
// are AND-combined.
package filter

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
)

// Op is a predicate comparison operator.
type Op string

const (
	OpGTE      Op = "gte"
	OpLTE      Op = "lte"
	OpEq       Op = "eq"
	OpHas      Op = "has"
	OpContains Op = "contains"
)

// Predicate is one condition over a catalog field.
type Predicate struct {
	// Name is the request parameter the predicate came from.
	Name  string  `json:"name"`
	Field string  `json:"field"`
	Op    Op      `json:"op"`
	Num   float64 `json:"num,omitempty"`
	Text  string  `json:"text,omitempty"`
}

// Match reports whether item satisfies the predicate. A null numeric field
// never satisfies a range predicate.
func (p Predicate) Match(item catalog.Item) bool {
	switch p.Op {
	case OpGTE:
		v, ok := item.Number(p.Field)
		return ok && v >= p.Num
	case OpLTE:
		v, ok := item.Number(p.Field)
		return ok && v <= p.Num
	case OpEq:
		v, ok := item.String(p.Field)
		return ok && v == p.Text
	case OpHas:
		for _, v := range item.Set(p.Field) {
			if v == p.Text {
				return true
			}
		}
		return false
	case OpContains:
		v, ok := item.String(p.Field)
		return ok && strings.Contains(strings.ToLower(v), strings.ToLower(p.Text))
	}
	return false
}

// Result is the outcome of parsing a raw filter map.
type Result struct {
	Predicates []Predicate
	// Ignored lists filter names that were present with a value that could
	// not be used.
	Ignored []string
}

// Parse builds the predicates for kind from raw. now anchors filters that
// are relative to the current date (agency age buckets).
func Parse(kind catalog.Kind, raw map[string]string, now time.Time) Result {
	var res Result
	for _, rule := range rules[kind] {
		value := strings.TrimSpace(raw[rule.name])
		if value == "" {
			continue
		}
		preds, ok := rule.build(rule, value, now)
		if !ok {
			res.Ignored = append(res.Ignored, rule.name)
			continue
		}
		res.Predicates = append(res.Predicates, preds...)
	}
	return res
}

// Apply returns the items that satisfy every predicate, preserving order.
func Apply(items []catalog.Item, preds []Predicate) []catalog.Item {
	if len(preds) == 0 {
		return items
	}
	out := make([]catalog.Item, 0, len(items))
	for _, item := range items {
		if MatchAll(item, preds) {
			out = append(out, item)
		}
	}
	return out
}

// MatchAll reports whether item satisfies every predicate.
func MatchAll(item catalog.Item, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Match(item) {
			return false
		}
	}
	return true
}

// Names returns the accepted filter parameter names for kind.
func Names(kind catalog.Kind) []string {
	names := make([]string, 0, len(rules[kind]))
	for _, rule := range rules[kind] {
		names = append(names, rule.name)
	}
	return names
}

// Canonical returns value the way Parse reads it for the named filter:
// trimmed, and lower-cased for bucket filters. dated reports whether the
// filter's meaning also depends on the evaluation date.
func Canonical(name, value string) (canonical string, dated bool) {
	value = strings.TrimSpace(value)
	for _, kindRules := range rules {
		for _, r := range kindRules {
			if r.name != name || r.buckets == nil {
				continue
			}
			return strings.ToLower(value), r.dated
		}
	}
	return value, false
}

type rule struct {
	name    string
	field   string
	op      Op
	buckets map[string]bucket
	// dated rules resolve against the evaluation date.
	dated bool
	build func(s rule, value string, now time.Time) ([]Predicate, bool)
}

// bucket is an inclusive numeric range; a nil bound is open.
type bucket struct {
	lo, hi *float64
}

func bound(v float64) *float64 { return &v }

var rules = map[catalog.Kind][]rule{
	catalog.KindPackages: {
		{name: "type", field: catalog.FieldPackageType, op: OpEq, build: textPredicate},
		{name: "difficulty", field: catalog.FieldDifficulty, op: OpEq, build: textPredicate},
		{name: "min_price", field: catalog.FieldPrice, op: OpGTE, build: numberPredicate},
		{name: "max_price", field: catalog.FieldPrice, op: OpLTE, build: numberPredicate},
		{name: "duration", field: catalog.FieldDuration, buckets: durationBuckets, build: bucketPredicates},
		{name: "min_duration", field: catalog.FieldDuration, op: OpGTE, build: numberPredicate},
		{name: "max_duration", field: catalog.FieldDuration, op: OpLTE, build: numberPredicate},
		{name: "min_rating", field: catalog.FieldRating, op: OpGTE, build: numberPredicate},
	},
	catalog.KindGuides: {
		{name: "specialization", field: catalog.FieldSpecialties, op: OpHas, build: textPredicate},
		{name: "language", field: catalog.FieldLanguages, op: OpHas, build: textPredicate},
		{name: "min_rate", field: catalog.FieldRate, op: OpGTE, build: numberPredicate},
		{name: "max_rate", field: catalog.FieldRate, op: OpLTE, build: numberPredicate},
		{name: "experience", field: catalog.FieldExperience, buckets: experienceBuckets, build: bucketPredicates},
		{name: "min_experience", field: catalog.FieldExperience, op: OpGTE, build: numberPredicate},
		{name: "min_rating", field: catalog.FieldRating, op: OpGTE, build: numberPredicate},
	},
	catalog.KindAgencies: {
		{name: "established", field: catalog.FieldEstablished, buckets: ageBuckets, dated: true, build: establishedPredicates},
		{name: "location", field: catalog.FieldAddress, op: OpContains, build: textPredicate},
		{name: "min_rating", field: catalog.FieldRating, op: OpGTE, build: numberPredicate},
	},
}

var durationBuckets = map[string]bucket{
	"1-3":  {lo: bound(1), hi: bound(3)},
	"4-7":  {lo: bound(4), hi: bound(7)},
	"8-14": {lo: bound(8), hi: bound(14)},
	"15+":  {lo: bound(15)},
}

var experienceBuckets = map[string]bucket{
	"1-5":  {lo: bound(1), hi: bound(5)},
	"6-10": {lo: bound(6), hi: bound(10)},
	"11+":  {lo: bound(11)},
}

// Agency age buckets in years of operation.
var ageBuckets = map[string]bucket{
	"new":         {lo: bound(0), hi: bound(5)},
	"experienced": {lo: bound(6), hi: bound(15)},
	"veteran":     {lo: bound(16)},
}

func textPredicate(s rule, value string, _ time.Time) ([]Predicate, bool) {
	return []Predicate{{Name: s.name, Field: s.field, Op: s.op, Text: value}}, true
}

func numberPredicate(s rule, value string, _ time.Time) ([]Predicate, bool) {
	n, ok := parseNumber(value)
	if !ok {
		return nil, false
	}
	return []Predicate{{Name: s.name, Field: s.field, Op: s.op, Num: n}}, true
}

func bucketPredicates(s rule, value string, _ time.Time) ([]Predicate, bool) {
	b, ok := s.buckets[strings.ToLower(value)]
	if !ok {
		return nil, false
	}
	return rangePredicates(s, b.lo, b.hi), true
}

// establishedPredicates converts an age bucket into a range over the
// establishment year: an agency aged between lo and hi years was founded
// between now-hi and now-lo.
func establishedPredicates(s rule, value string, now time.Time) ([]Predicate, bool) {
	b, ok := s.buckets[strings.ToLower(value)]
	if !ok {
		return nil, false
	}
	year := float64(now.Year())
	var from, to *float64
	if b.hi != nil {
		from = bound(year - *b.hi)
	}
	if b.lo != nil {
		to = bound(year - *b.lo)
	}
	return rangePredicates(s, from, to), true
}

func rangePredicates(s rule, lo, hi *float64) []Predicate {
	preds := make([]Predicate, 0, 2)
	if lo != nil {
		preds = append(preds, Predicate{Name: s.name, Field: s.field, Op: OpGTE, Num: *lo})
	}
	if hi != nil {
		preds = append(preds, Predicate{Name: s.name, Field: s.field, Op: OpLTE, Num: *hi})
	}
	return preds
}

func parseNumber(value string) (float64, bool) {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
