// Command loadtest drives a running searcher with a mix of search, keyword
// and similarity requests and reports throughput and latency per endpoint.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		plan      Plan
		queryFile string
		speakers  string
	)
	cmd := &cobra.Command{
		Use:           "loadtest",
		Short:         "Load test the speech search API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan.BaseURL = strings.TrimSuffix(plan.BaseURL, "/")
			plan.Queries = defaultQueries
			if queryFile != "" {
				q, err := readLines(queryFile)
				if err != nil {
					return err
				}
				plan.Queries = q
			}
			if speakers != "" {
				plan.Speakers = strings.Split(speakers, ",")
			}

			out := cmd.OutOrStdout()
			gen, err := snapshotGeneration(cmd.Context(), plan.BaseURL)
			if err != nil {
				return fmt.Errorf("searcher not ready: %w", err)
			}
			fmt.Fprintf(out, "target %s, generation %d, %d workers for %s\n",
				plan.BaseURL, gen, plan.Concurrency, plan.Duration)
			fmt.Fprintf(out, "%d queries, %d speakers\n\n", len(plan.Queries), len(plan.Speakers))

			rec := Run(cmd.Context(), plan)
			rec.Report(out, plan.Duration)
			if rec.Total() == 0 {
				return fmt.Errorf("no requests completed")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&plan.BaseURL, "url", "http://localhost:8080", "base URL of the searcher")
	f.IntVarP(&plan.Concurrency, "concurrency", "c", 10, "concurrent workers")
	f.DurationVarP(&plan.Duration, "duration", "d", 30*time.Second, "test duration")
	f.StringVar(&queryFile, "queries", "", "file with one search query per line")
	f.StringVar(&speakers, "speakers", "", "comma-separated speakers for similarity and keyword requests")
	return cmd
}
