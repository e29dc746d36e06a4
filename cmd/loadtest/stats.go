package main

import (
	"sort"
	"sync"
	"time"
)

type endpointCount struct {
	Requests    int64
	ZeroResults int64
}

// Stats accumulates request outcomes across workers.
type Stats struct {
	mu          sync.Mutex
	total       int64
	success     int64
	errors      int64
	zeroResults int64
	latencies   []time.Duration
	statusCodes map[int]int64
	byEndpoint  map[string]*endpointCount
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
		byEndpoint:  make(map[string]*endpointCount),
	}
}

// Record counts one request. Transport errors carry no latency or status.
func (s *Stats) Record(endpoint string, duration time.Duration, statusCode int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.endpoint(endpoint).Requests++
	if err != nil {
		s.errors++
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.success++
	} else {
		s.errors++
	}
	s.latencies = append(s.latencies, duration)
	s.statusCodes[statusCode]++
}

func (s *Stats) RecordZeroResults(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zeroResults++
	s.endpoint(endpoint).ZeroResults++
}

func (s *Stats) endpoint(name string) *endpointCount {
	c, ok := s.byEndpoint[name]
	if !ok {
		c = &endpointCount{}
		s.byEndpoint[name] = c
	}
	return c
}

// Snapshot is a consistent copy of Stats with latencies sorted ascending.
type Snapshot struct {
	Total       int64
	Success     int64
	Errors      int64
	ZeroResults int64
	Latencies   []time.Duration
	StatusCodes map[int]int64
	ByEndpoint  map[string]endpointCount
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Total:       s.total,
		Success:     s.success,
		Errors:      s.errors,
		ZeroResults: s.zeroResults,
		Latencies:   append([]time.Duration(nil), s.latencies...),
		StatusCodes: make(map[int]int64, len(s.statusCodes)),
		ByEndpoint:  make(map[string]endpointCount, len(s.byEndpoint)),
	}
	for code, n := range s.statusCodes {
		snap.StatusCodes[code] = n
	}
	for name, c := range s.byEndpoint {
		snap.ByEndpoint[name] = *c
	}
	sort.Slice(snap.Latencies, func(i, j int) bool { return snap.Latencies[i] < snap.Latencies[j] })
	return snap
}
