package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/querylog"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/postgres"
)

// store connects to the artifact store. The returned func closes it.
func (s *session) store(ctx context.Context) (*store.Store, func(), error) {
	if !s.cfg.Postgres.Enabled() {
		return nil, nil, fmt.Errorf("no postgres host configured")
	}
	db, err := postgres.New(ctx, s.cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	return store.New(db), func() { db.Close() }, nil
}

func newGenerationsCmd(s *session) *cobra.Command {
	var (
		limit  int
		latest bool
	)
	cmd := &cobra.Command{
		Use:   "generations",
		Short: "List the rebuilds recorded in the artifact store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeDB, err := s.store(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			if latest {
				gen, err := st.LatestGeneration(cmd.Context())
				if err != nil {
					return err
				}
				if gen == nil {
					return fmt.Errorf("no generation recorded yet")
				}
				return printJSON(cmd.OutOrStdout(), gen)
			}
			gens, err := st.ListGenerations(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), gens)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of generations to list")
	cmd.Flags().BoolVar(&latest, "latest", false, "Show only the newest generation")
	return cmd
}

func newQueryStatsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "query-stats",
		Short: "Show the last search-traffic statistics a searcher saved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !s.cfg.Postgres.Enabled() {
				return fmt.Errorf("no postgres host configured")
			}
			db, err := postgres.New(cmd.Context(), s.cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()
			stats, err := querylog.NewStore(db).LatestSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			if stats == nil {
				return fmt.Errorf("no query statistics saved yet")
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}
