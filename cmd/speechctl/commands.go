package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/entity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
)

func newSearchCmd(s *session) *cobra.Command {
	var (
		limit    int
		party    string
		speaker  string
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank speeches by TF-IDF relevance",
		Long: `Rank speeches by TF-IDF relevance. Terms are ORed unless the query uses
AND; NOT excludes the following term.`,
		Args: cobra.MinimumNArgs(1),
		RunE: s.withSnapshot(func(_ context.Context, out io.Writer, snap *pipeline.Snapshot, args []string) error {
			filter := parser.Filter{Party: party, Speaker: speaker}
			var err error
			if filter.From, err = parseDate(from); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if filter.To, err = parseDate(to); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			plan := parser.Parse(strings.Join(args, " ")).WithFilter(filter)
			return printJSON(out, executor.Run(snap, plan, limit))
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of results to return")
	cmd.Flags().StringVar(&party, "party", "", "Only speeches of this party")
	cmd.Flags().StringVar(&speaker, "speaker", "", "Only speeches of this speaker")
	cmd.Flags().StringVar(&from, "from", "", "Earliest sitting date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Latest sitting date, YYYY-MM-DD")
	return cmd
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, v)
}

func newKeywordsCmd(s *session) *cobra.Command {
	var stored bool
	cmd := &cobra.Command{
		Use:   "keywords <document|speaker|party|year|speaker_year|party_year> <id> [year]",
		Short: "Show the keyword summary of a document or entity",
		Example: `  speechctl keywords document 42
  speechctl keywords party red
  speechctl keywords year 2019
  speechctl keywords speaker_year alice 2020 --stored`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if args[0] == "document" {
				docID, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("document id %q: %w", args[1], err)
				}
				snap, err := s.snapshot()
				if err != nil {
					return err
				}
				kw, _ := snap.DocumentKeywords(docID)
				return printJSON(out, orEmpty(kw))
			}

			key, err := entityKey(args)
			if err != nil {
				return err
			}
			if stored {
				st, closeDB, err := s.store(cmd.Context())
				if err != nil {
					return err
				}
				defer closeDB()
				kw, err := st.EntityKeywords(cmd.Context(), key)
				if err != nil {
					return err
				}
				return printJSON(out, orEmpty(kw))
			}
			snap, err := s.snapshot()
			if err != nil {
				return err
			}
			kw, _ := snap.Keywords(key)
			return printJSON(out, orEmpty(kw))
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "Read the summary from the artifact store instead of the snapshot")
	return cmd
}

func entityKey(args []string) (entity.Key, error) {
	kind, err := entity.ParseKind(args[0])
	if err != nil {
		return entity.Key{}, err
	}
	key := entity.Key{Kind: kind, ID: args[1]}
	if !kind.HasYear() {
		return key, nil
	}
	yearArg := args[1]
	if kind == entity.KindYear {
		key.ID = ""
	} else if len(args) < 3 {
		return entity.Key{}, fmt.Errorf("kind %s requires a year", kind)
	} else {
		yearArg = args[2]
	}
	if key.Year, err = strconv.Atoi(yearArg); err != nil {
		return entity.Key{}, fmt.Errorf("year %q: %w", yearArg, err)
	}
	return key, nil
}

func orEmpty(kw []ranker.TermScore) []ranker.TermScore {
	if kw == nil {
		return []ranker.TermScore{}
	}
	return kw
}

func newSimilarCmd(s *session) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "similar <speaker>",
		Short: "List the speakers whose vocabulary is closest to a speaker's",
		Args:  cobra.ExactArgs(1),
		RunE: s.withSnapshot(func(_ context.Context, out io.Writer, snap *pipeline.Snapshot, args []string) error {
			return printJSON(out, snap.Neighbors(args[0], k))
		}),
	}
	cmd.Flags().IntVarP(&k, "top", "k", 5, "Number of neighbours, 0 for all")
	return cmd
}

func newDriftCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "drift <speaker|party> <id>",
		Short: "Show how a speaker's or party's vocabulary changes year over year",
		Args:  cobra.ExactArgs(2),
		RunE: s.withSnapshot(func(_ context.Context, out io.Writer, snap *pipeline.Snapshot, args []string) error {
			series, err := snap.Drift(entity.Kind(args[0]), args[1])
			if err != nil {
				return err
			}
			return printJSON(out, series)
		}),
	}
}

func newThemesCmd(s *session) *cobra.Command {
	var embedding bool
	cmd := &cobra.Command{
		Use:   "themes [id]",
		Short: "Describe the document clusters",
		Args:  cobra.MaximumNArgs(1),
		RunE: s.withSnapshot(func(_ context.Context, out io.Writer, snap *pipeline.Snapshot, args []string) error {
			if embedding {
				points, err := snap.Embedding()
				if err != nil {
					return err
				}
				return printJSON(out, points)
			}
			if len(args) == 0 {
				return printJSON(out, snap.Themes())
			}
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("theme id %q: %w", args[0], err)
			}
			theme, ok := snap.Theme(id)
			if !ok {
				return fmt.Errorf("theme %d does not exist, the snapshot has %d", id, len(snap.Themes()))
			}
			return printJSON(out, theme)
		}),
	}
	cmd.Flags().BoolVar(&embedding, "embedding", false, "Print the 2-D display points instead")
	return cmd
}

func newClusterCmd(s *session) *cobra.Command {
	var stored bool
	cmd := &cobra.Command{
		Use:   "cluster <doc-id>",
		Short: "Show which theme a speech belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("document id %q: %w", args[0], err)
			}
			var (
				cluster int
				found   bool
			)
			if stored {
				st, closeDB, err := s.store(cmd.Context())
				if err != nil {
					return err
				}
				defer closeDB()
				if cluster, found, err = st.ClusterOf(cmd.Context(), docID); err != nil {
					return err
				}
			} else {
				snap, err := s.snapshot()
				if err != nil {
					return err
				}
				cluster, found = snap.ClusterOf(docID)
			}
			if !found {
				return fmt.Errorf("document %d is not in the snapshot", docID)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"doc_id": docID, "cluster": cluster})
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "Read the assignment from the artifact store instead of the snapshot")
	return cmd
}

func newInfoCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Summarise the active snapshot",
		Args:  cobra.NoArgs,
		RunE: s.withSnapshot(func(_ context.Context, out io.Writer, snap *pipeline.Snapshot, _ []string) error {
			return printJSON(out, snap.Info())
		}),
	}
}
