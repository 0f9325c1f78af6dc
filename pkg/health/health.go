// Package health answers liveness and readiness probes. A searcher is ready
// once a snapshot is loaded; the cache and the artifact store are optional
// and only degrade it when they fail.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Status is the state of one component or of the whole service.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

var severity = map[Status]int{StatusUp: 0, StatusDegraded: 1, StatusDown: 2}

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the result of all checks. Status is the worst component status.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// Checker runs registered checks in parallel, each bounded by a timeout.
type Checker struct {
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Check
}

// NewChecker creates a Checker whose checks each get up to 2s.
func NewChecker() *Checker {
	return &Checker{timeout: 2 * time.Second, checks: make(map[string]Check)}
}

// Register adds or replaces a check the service cannot run without.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// RegisterOptional adds a check for a dependency the service can run
// without. Its failures report degraded instead of down.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.Register(name, func(ctx context.Context) ComponentHealth {
		res := check(ctx)
		if res.Status == StatusDown {
			res.Status = StatusDegraded
		}
		return res
	})
}

// Names lists the registered checks, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run executes every check and aggregates the results.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(chan struct {
		name string
		res  ComponentHealth
	}, len(checks))
	for name, check := range checks {
		go func() {
			ctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			start := time.Now()
			res := check(ctx)
			res.Latency = time.Since(start).Round(time.Millisecond).String()
			results <- struct {
				name string
				res  ComponentHealth
			}{name, res}
		}()
	}

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC(),
	}
	for range checks {
		r := <-results
		report.Components[r.name] = r.res
		if severity[r.res.Status] > severity[report.Status] {
			report.Status = r.res.Status
		}
	}
	return report
}

// PingCheck turns a connectivity probe such as a database or Redis Ping
// into a Check.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// LiveHandler answers liveness probes: the process is serving HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes with the full report. Only a down
// component withdraws readiness.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
