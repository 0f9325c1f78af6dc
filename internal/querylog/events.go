// Package querylog collects search-traffic events from the searcher and
// aggregates them into query statistics: volumes, latencies, cache
// effectiveness and the most frequent queries and terms.
package querylog

import "time"

// Endpoint names the API operation an event was recorded for.
type Endpoint string

const (
	EndpointSearch  Endpoint = "search"
	EndpointSimilar Endpoint = "similar"
)

type QueryEvent struct {
	Endpoint   Endpoint  `json:"endpoint"`
	Query      string    `json:"query"`
	Terms      []string  `json:"terms,omitempty"`
	Generation uint64    `json:"generation"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}
