package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
)

var queries = []string{
	"everest base camp",
	"annapurna circuit",
	"langtang valley trek",
	"manaslu",
	"mustang",
	"chitwan jungle safari",
	"pokhara paragliding",
	"kathmandu heritage",
	"rafting trishuli",
	"sherpa guide",
	"gokyo lakes",
	"peak climbing",
	"thamel",
	"bhaktapur durbar square",
	"zzzz no such trek",
}

type filterChoice struct {
	name   string
	values []string
}

var listFilters = map[string][]filterChoice{
	"packages": {
		{"type", []string{"trekking", "cultural", "adventure", "wildlife"}},
		{"difficulty", []string{"easy", "moderate", "difficult"}},
		{"max_price", []string{"500", "1000", "2000"}},
		{"duration", []string{"1-3", "4-7", "8-14", "15+"}},
	},
	"guides": {
		{"language", []string{"en", "fr", "de", "zh"}},
		{"experience", []string{"1-5", "6-10", "11+"}},
		{"min_rating", []string{"4", "4.5"}},
	},
	"agencies": {
		{"location", []string{"kathmandu", "pokhara"}},
		{"established", []string{"new", "experienced", "veteran"}},
	},
}

var listSorts = map[string][]string{
	"packages": {"", "newest", "price_low", "price_high", "rating", "duration_short"},
	"guides":   {"", "rating", "price_low", "experience", "name"},
	"agencies": {"", "rating", "name", "established"},
}

// Scenario is one generated request.
type Scenario struct {
	Endpoint string
	URL      string
}

// generator produces a reproducible request mix: 40% cross-kind search,
// the rest single-kind listings with a random query, filter, sort and page.
type generator struct {
	base string
	rng  *rand.Rand
}

func newGenerator(base string, seed int64) *generator {
	return &generator{base: base, rng: rand.New(rand.NewSource(seed))}
}

func (g *generator) next() Scenario {
	if g.rng.Intn(10) < 4 {
		params := url.Values{"query": {g.pick(queries)}}
		if g.rng.Intn(4) == 0 {
			params.Set("sort", "rating")
		}
		return Scenario{Endpoint: "search", URL: g.base + "/api/v1/search?" + params.Encode()}
	}

	kinds := []string{"packages", "guides", "agencies"}
	kind := kinds[g.rng.Intn(len(kinds))]
	params := url.Values{}
	if g.rng.Intn(2) == 0 {
		params.Set("search", g.pick(queries))
	}
	if g.rng.Intn(3) > 0 {
		fc := listFilters[kind][g.rng.Intn(len(listFilters[kind]))]
		params.Set(fc.name, g.pick(fc.values))
	}
	if sort := g.pick(listSorts[kind]); sort != "" {
		params.Set("sort", sort)
	}
	if g.rng.Intn(5) == 0 {
		params.Set("page", fmt.Sprint(2+g.rng.Intn(2)))
	}
	return Scenario{Endpoint: kind, URL: fmt.Sprintf("%s/api/v1/%s?%s", g.base, kind, params.Encode())}
}

func (g *generator) pick(values []string) string {
	return values[g.rng.Intn(len(values))]
}

// resultTotal reads the match count from a search or listing response, or
// -1 when the body is not one.
func resultTotal(body []byte) int {
	var resp struct {
		Total   *int `json:"total"`
		Results map[string]struct {
			Total int `json:"total"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return -1
	}
	if resp.Total != nil {
		return *resp.Total
	}
	if resp.Results == nil {
		return -1
	}
	n := 0
	for _, kr := range resp.Results {
		n += kr.Total
	}
	return n
}
