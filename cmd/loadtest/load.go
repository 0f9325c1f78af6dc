package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Plan describes one load test.
type Plan struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
	Speakers    []string
}

var defaultQueries = []string{
	"budget deficit",
	"health service",
	"hospital waiting lists",
	"housing crisis",
	"climate change",
	"education funding",
	"tax relief",
	"immigration asylum",
	"pension reform",
	"defence spending",
	"brexit trade",
	"unemployment benefit",
	"rural broadband",
	"police numbers",
	"energy prices",
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s holds no queries", path)
	}
	return lines, nil
}

// request returns the i-th request of the mix. Without speakers every
// request is a search; with them, every fourth is a similarity lookup and
// every eighth a speaker keyword lookup.
func (p Plan) request(i int) (endpoint, target string) {
	if n := len(p.Speakers); n > 0 {
		speaker := url.QueryEscape(p.Speakers[(i/4)%n])
		switch i % 8 {
		case 3:
			return "similar", fmt.Sprintf("%s/api/v1/similar?speaker=%s&k=10", p.BaseURL, speaker)
		case 7:
			return "keywords", fmt.Sprintf("%s/api/v1/keywords?kind=speaker&id=%s", p.BaseURL, speaker)
		}
	}
	q := url.QueryEscape(p.Queries[i%len(p.Queries)])
	return "search", fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", p.BaseURL, q)
}

// snapshotGeneration asks the searcher which generation it serves.
func snapshotGeneration(ctx context.Context, baseURL string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/snapshot", nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("snapshot endpoint answered %s", resp.Status)
	}
	var info struct {
		Generation uint64 `json:"generation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, fmt.Errorf("decoding snapshot info: %w", err)
	}
	return info.Generation, nil
}

// Run sends requests from p.Concurrency workers until p.Duration elapses or
// ctx is cancelled.
func Run(ctx context.Context, p Plan) *Recorder {
	rec := NewRecorder()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        p.Concurrency * 2,
			MaxIdleConnsPerHost: p.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(ctx, p.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := range p.Concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i += p.Concurrency {
				endpoint, target := p.request(i)
				status, took, err := send(ctx, client, target)
				if err != nil && ctx.Err() != nil {
					return nil
				}
				rec.Record(endpoint, took, status, err)
			}
			return nil
		})
	}
	g.Wait()
	return rec
}

func send(ctx context.Context, client *http.Client, target string) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, time.Since(start), err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}
