package main

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Recorder collects request outcomes from concurrent workers.
type Recorder struct {
	mu        sync.Mutex
	total     int
	failed    int
	statuses  map[int]int
	latencies map[string][]float64
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{statuses: make(map[int]int), latencies: make(map[string][]float64)}
}

// Record adds one request. A transport error counts as status 0; anything
// outside 2xx is a failure. Latencies are kept for answered requests only.
func (r *Recorder) Record(endpoint string, took time.Duration, status int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if err != nil {
		status = 0
	}
	r.statuses[status]++
	if status < 200 || status > 299 {
		r.failed++
	}
	if err == nil {
		r.latencies[endpoint] = append(r.latencies[endpoint], took.Seconds())
	}
}

// Total returns the number of recorded requests.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Summary describes the latencies of one endpoint.
type Summary struct {
	Count              int
	Mean, StdDev       time.Duration
	P50, P90, P99, Max time.Duration
}

// Summaries returns per-endpoint latency summaries.
func (r *Recorder) Summaries() map[string]Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Summary, len(r.latencies))
	for endpoint, xs := range r.latencies {
		sorted := slices.Clone(xs)
		slices.Sort(sorted)
		mean, std := stat.MeanStdDev(sorted, nil)
		if len(sorted) < 2 {
			std = 0
		}
		q := func(p float64) time.Duration {
			return seconds(stat.Quantile(p, stat.Empirical, sorted, nil))
		}
		out[endpoint] = Summary{
			Count:  len(sorted),
			Mean:   seconds(mean),
			StdDev: seconds(std),
			P50:    q(0.5),
			P90:    q(0.9),
			P99:    q(0.99),
			Max:    seconds(sorted[len(sorted)-1]),
		}
	}
	return out
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Microsecond)
}

// Report prints the results.
func (r *Recorder) Report(w io.Writer, elapsed time.Duration) {
	summaries := r.Summaries()
	r.mu.Lock()
	total, failed := r.total, r.failed
	codes := make([]int, 0, len(r.statuses))
	for code := range r.statuses {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	counts := make([]int, len(codes))
	for i, code := range codes {
		counts[i] = r.statuses[code]
	}
	r.mu.Unlock()

	fmt.Fprintf(w, "requests  %d\n", total)
	fmt.Fprintf(w, "failed    %d\n", failed)
	if total > 0 {
		fmt.Fprintf(w, "error     %.2f%%\n", 100*float64(failed)/float64(total))
		fmt.Fprintf(w, "rate      %.1f req/s\n", float64(total)/elapsed.Seconds())
	}

	fmt.Fprintln(w, "\nstatus")
	for i, code := range codes {
		label := fmt.Sprint(code)
		if code == 0 {
			label = "err"
		}
		fmt.Fprintf(w, "  %-4s %d\n", label, counts[i])
	}

	endpoints := make([]string, 0, len(summaries))
	for e := range summaries {
		endpoints = append(endpoints, e)
	}
	slices.Sort(endpoints)
	fmt.Fprintf(w, "\n%-9s %7s %10s %10s %10s %10s %10s %10s\n", "endpoint", "count", "mean", "stddev", "p50", "p90", "p99", "max")
	for _, e := range endpoints {
		s := summaries[e]
		fmt.Fprintf(w, "%-9s %7d %10s %10s %10s %10s %10s %10s\n", e, s.Count, s.Mean, s.StdDev, s.P50, s.P90, s.P99, s.Max)
	}
}
