// Package events carries snapshot lifecycle notifications between the
// builder and the searchers over Kafka.
package events

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/pipeline"
)

type EventType string

const (
	EventSnapshotPublished EventType = "snapshot_published"
)

// SnapshotPublished announces a verified generation written to Dir.
type SnapshotPublished struct {
	Type       EventType `json:"type"`
	Generation uint64    `json:"generation"`
	Dir        string    `json:"dir"`
	BuiltAt    time.Time `json:"built_at"`
	Documents  int       `json:"documents"`
	Pairs      int       `json:"pairs"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewSnapshotPublished describes s stored in dir.
func NewSnapshotPublished(s *pipeline.Snapshot, dir string) SnapshotPublished {
	return SnapshotPublished{
		Type:       EventSnapshotPublished,
		Generation: s.Generation,
		Dir:        dir,
		BuiltAt:    s.BuiltAt,
		Documents:  s.Index.NumDocs(),
		Pairs:      len(s.Pairs),
		Timestamp:  time.Now().UTC(),
	}
}
