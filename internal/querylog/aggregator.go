package querylog

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/kafka"
)

// maxLatencies bounds the latency window the percentiles are taken over.
const maxLatencies = 10000

type Stats struct {
	TotalSearches     int64        `json:"total_searches"`
	TotalSimilar      int64        `json:"total_similar"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	LastGeneration    uint64       `json:"last_generation"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	TopTerms          []QueryCount `json:"top_terms"`
	TopSpeakers       []QueryCount `json:"top_speakers"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds query events into running statistics.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	totalSimilar      atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	lastGeneration    atomic.Uint64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	termCounts        map[string]int64
	speakerCounts     map[string]int64
	zeroResultQueries map[string]int64
	topN              int
	startTime         time.Time

	logger *slog.Logger
}

// NewAggregator creates an Aggregator reporting the topN most frequent
// entries of each ranking.
func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		termCounts:        make(map[string]int64),
		speakerCounts:     make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		topN:              topN,
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "query-aggregator"),
	}
}

// HandleEvent is a kafka.MessageHandler for the query-events topic.
// Undecodable messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode query event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Publish records a QueryEvent carried in event, letting the Aggregator act
// as a Collector sink when no broker is configured.
func (a *Aggregator) Publish(_ context.Context, event kafka.Event) error {
	if qe, ok := event.Value.(QueryEvent); ok {
		a.Record(qe)
	}
	return nil
}

// Record folds one event into the statistics.
func (a *Aggregator) Record(event QueryEvent) {
	switch event.Endpoint {
	case EndpointSimilar:
		a.totalSimilar.Add(1)
	default:
		a.totalSearches.Add(1)
	}
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	zero := event.Endpoint == EndpointSearch && event.TotalHits == 0
	if zero {
		a.zeroResults.Add(1)
	}
	for {
		cur := a.lastGeneration.Load()
		if event.Generation <= cur || a.lastGeneration.CompareAndSwap(cur, event.Generation) {
			break
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < maxLatencies {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencies
	}
	if event.Endpoint == EndpointSimilar {
		a.speakerCounts[event.Query]++
		return
	}
	a.queryCounts[event.Query]++
	for _, term := range event.Terms {
		a.termCounts[term]++
	}
	if zero {
		a.zeroResultQueries[event.Query]++
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalSearches:   a.totalSearches.Load(),
		TotalSimilar:    a.totalSimilar.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
		LastGeneration:  a.lastGeneration.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.TopTerms = topN(a.termCounts, a.topN)
	stats.TopSpeakers = topN(a.speakerCounts, a.topN)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, a.topN)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches+stats.TotalSimilar) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN ranks by count descending, ties broken by name.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
