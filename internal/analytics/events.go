// Package analytics collects search events, publishes them to Kafka and
// aggregates them into discovery statistics: what travellers look for, which
// filters they use and which searches come back empty.
package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
)

// SearchEvent describes one executed search request.
type SearchEvent struct {
	Type  EventType `json:"type"`
	Query string    `json:"query"`
	// Tokens are the normalised query tokens; empty for browse requests.
	Tokens []string `json:"tokens,omitempty"`
	// Kind is the requested selector ("all" or a single kind).
	Kind string `json:"kind"`
	Sort string `json:"sort,omitempty"`
	// Filters names the filters that were applied, Ignored those that were
	// dropped as unknown or malformed.
	Filters   []string       `json:"filters,omitempty"`
	Ignored   []string       `json:"ignored,omitempty"`
	Results   map[string]int `json:"results"`
	LatencyMs int64          `json:"latency_ms"`
	CacheHit  bool           `json:"cache_hit"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`
}

// Total sums the per-kind result counts.
func (e SearchEvent) Total() int {
	n := 0
	for _, c := range e.Results {
		n += c
	}
	return n
}
