package querylog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/postgres"
)

// Store persists Stats snapshots in the query_stats_snapshots table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "query-stats-store"),
	}
}

func (s *Store) SaveSnapshot(ctx context.Context, stats Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO query_stats_snapshots (generation, data, captured_at) VALUES ($1, $2, $3)`,
		int64(stats.LastGeneration), data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving query stats: %w", err)
	}

	s.logger.Debug("query stats saved",
		"total_searches", stats.TotalSearches,
		"generation", stats.LastGeneration,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot. It returns nil, nil when
// none has been saved.
func (s *Store) LatestSnapshot(ctx context.Context) (*Stats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM query_stats_snapshots ORDER BY captured_at DESC, id DESC LIMIT 1`,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest query stats: %w", err)
	}

	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling query stats: %w", err)
	}
	return &stats, nil
}

// StartPeriodicSave saves the aggregator's stats every interval and once
// more when ctx is cancelled.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic query stats save failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final query stats save failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic query stats save started", "interval", interval)
}
