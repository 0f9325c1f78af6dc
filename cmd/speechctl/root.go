package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/logger"
)

const rootLongDesc string = `speechctl queries a parliament speech snapshot offline.

It loads the active generation from the snapshot directory the builder writes
and answers the same questions as the search service:
  speechctl search "budget deficit" --party blue
  speechctl keywords speaker alice
  speechctl similar alice -k 5
  speechctl drift party red
  speechctl themes
  speechctl info`

// session carries the flags shared by every command.
type session struct {
	configPath string
	dataDir    string
	debug      bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	s := &session{}

	cmd := &cobra.Command{
		Use:           "speechctl",
		Short:         "Query parliament speech snapshots",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(s.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.Pipeline.DataDir = s.dataDir
			}
			level := "warn"
			if s.debug {
				level = "debug"
			}
			logger.SetupWriter(cmd.ErrOrStderr(), level, "text")
			s.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&s.configPath, "config", "", "path to config file")
	cmd.PersistentFlags().StringVar(&s.dataDir, "data-dir", "", "snapshot directory, overrides pipeline.dataDir")
	cmd.PersistentFlags().BoolVarP(&s.debug, "debug", "d", false, "Enable debug logging")

	cmd.AddCommand(
		newSearchCmd(s),
		newKeywordsCmd(s),
		newSimilarCmd(s),
		newDriftCmd(s),
		newThemesCmd(s),
		newInfoCmd(s),
		newClusterCmd(s),
		newGenerationsCmd(s),
		newQueryStatsCmd(s),
	)
	return cmd
}

// snapshot loads the active generation.
func (s *session) snapshot() (*pipeline.Snapshot, error) {
	pool, err := workpool.New(s.cfg.Pipeline.Workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()
	snap, err := pipeline.NewDirStore(s.cfg.Pipeline.DataDir, 0).LoadCurrent(pool)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot from %s: %w", s.cfg.Pipeline.DataDir, err)
	}
	return snap, nil
}

// withSnapshot adapts fn into a cobra RunE that loads the snapshot first.
func (s *session) withSnapshot(fn func(ctx context.Context, out io.Writer, snap *pipeline.Snapshot, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		snap, err := s.snapshot()
		if err != nil {
			return err
		}
		return fn(cmd.Context(), cmd.OutOrStdout(), snap, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
