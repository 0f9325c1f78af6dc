package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
)

// Stats summarises a load. Skipped is keyed by reason.
type Stats struct {
	Read     int            `json:"read"`
	Accepted int            `json:"accepted"`
	Skipped  map[string]int `json:"skipped"`
}

// SkippedTotal returns the number of rejected records.
func (s Stats) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// Load reads every record from src and returns the valid ones as index
// documents. Invalid records are logged, counted and skipped; only a failing
// source aborts the load.
func Load(ctx context.Context, src Source, logger *slog.Logger) ([]index.Document, Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stats := Stats{Skipped: make(map[string]int)}
	seen := make(map[int64]struct{})
	var docs []index.Document

	skip := func(reason string, err error) {
		stats.Skipped[reason]++
		logger.Warn("skipping corpus record", "reason", reason, "error", err)
	}

	err := src.Read(ctx, func(rec Record, recErr error) error {
		stats.Read++
		if recErr != nil {
			skip("malformed", recErr)
			return nil
		}
		date, err := Validate(&rec)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				skip(verr.Reason(), err)
			} else {
				skip("invalid", err)
			}
			return nil
		}
		if _, dup := seen[rec.DocID]; dup {
			skip("duplicate_id", fmt.Errorf("duplicate document id %d", rec.DocID))
			return nil
		}
		seen[rec.DocID] = struct{}{}
		docs = append(docs, index.Document{
			ID:      rec.DocID,
			Tokens:  rec.tokens(),
			Speaker: rec.Speaker,
			Party:   rec.Party,
			Date:    date,
		})
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("reading corpus: %w", err)
	}
	stats.Accepted = len(docs)
	logger.Info("corpus loaded",
		"read", stats.Read,
		"accepted", stats.Accepted,
		"skipped", stats.SkippedTotal(),
	)
	return docs, stats, nil
}
