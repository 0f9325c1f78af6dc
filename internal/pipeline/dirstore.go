package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/cluster"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/lsi"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/similarity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

const (
	// ManifestFile holds everything of a snapshot not stored in the index
	// segment or the projection.
	ManifestFile = "artifacts.json"
	// CurrentFile names the active generation directory.
	CurrentFile = "CURRENT"

	genPrefix = "gen-"
)

// Manifest is the JSON form of a snapshot's metadata, cluster assignment and
// similarity pairs. Scores, entity vectors and keyword summaries are derived
// from the index on load.
type Manifest struct {
	Generation uint64            `json:"generation"`
	BuiltAt    time.Time         `json:"built_at"`
	Params     Params            `json:"params"`
	Corpus     corpus.Stats      `json:"corpus"`
	Stages     map[string]int64  `json:"stages_ms"`
	Documents  int               `json:"documents"`
	Terms      int               `json:"terms"`
	Clusters   *cluster.Result   `json:"clusters"`
	Pairs      []similarity.Pair `json:"pairs"`
}

// DirName returns the directory name of a generation.
func DirName(gen uint64) string {
	return fmt.Sprintf("%s%06d", genPrefix, gen)
}

// DirStore keeps snapshot generations under one root directory.
type DirStore struct {
	root   string
	keep   int
	logger *slog.Logger
}

// NewDirStore creates a DirStore rooted at root that keeps the newest keep
// generations; keep < 1 keeps all.
func NewDirStore(root string, keep int) *DirStore {
	return &DirStore{
		root:   root,
		keep:   keep,
		logger: slog.Default().With("component", "snapshot-store"),
	}
}

// Root returns the root directory.
func (d *DirStore) Root() string { return d.root }

// Generations lists the generations present on disk, ascending.
func (d *DirStore) Generations() ([]uint64, error) {
	entries, err := os.ReadDir(d.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing snapshot directory: %w", err)
	}
	var gens []uint64
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), genPrefix) {
			continue
		}
		g, err := strconv.ParseUint(strings.TrimPrefix(e.Name(), genPrefix), 10, 64)
		if err != nil {
			continue
		}
		gens = append(gens, g)
	}
	slices.Sort(gens)
	return gens, nil
}

// NextGeneration returns one more than the newest generation on disk.
func (d *DirStore) NextGeneration() (uint64, error) {
	gens, err := d.Generations()
	if err != nil {
		return 0, err
	}
	if len(gens) == 0 {
		return 1, nil
	}
	return gens[len(gens)-1] + 1, nil
}

// Write stores s in its generation directory, points CURRENT at it and
// prunes old generations. The directory is assembled under a temporary name
// and renamed into place, so a partially written generation is never
// visible.
func (d *DirStore) Write(ctx context.Context, s *Snapshot) (string, error) {
	final := filepath.Join(d.root, DirName(s.Generation))
	tmp := final + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return "", fmt.Errorf("clearing %s: %w", tmp, err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", tmp, err)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := segment.NewWriter(tmp).Write(s.Index)
		return err
	})
	g.Go(func() error {
		return writeFile(filepath.Join(tmp, lsi.FileName), func(w io.Writer) error {
			return lsi.Encode(w, s.Projection)
		})
	})
	g.Go(func() error {
		return writeFile(filepath.Join(tmp, ManifestFile), func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(manifestOf(s))
		})
	})
	if err := g.Wait(); err != nil {
		os.RemoveAll(tmp)
		return "", fmt.Errorf("writing generation %d: %w", s.Generation, err)
	}

	if err := os.RemoveAll(final); err != nil {
		return "", fmt.Errorf("replacing %s: %w", final, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("publishing %s: %w", final, err)
	}
	if err := d.setCurrent(DirName(s.Generation)); err != nil {
		return "", err
	}
	if err := d.Prune(); err != nil {
		d.logger.Warn("pruning old generations failed", "error", err)
	}

	d.logger.Info("snapshot written", "generation", s.Generation, "dir", final)
	return final, nil
}

func manifestOf(s *Snapshot) Manifest {
	return Manifest{
		Generation: s.Generation,
		BuiltAt:    s.BuiltAt,
		Params:     s.Params,
		Corpus:     s.Corpus,
		Stages:     s.Stages,
		Documents:  s.Index.NumDocs(),
		Terms:      s.Index.NumTerms(),
		Clusters:   s.Clusters,
		Pairs:      s.Pairs,
	}
}

func writeFile(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return f.Close()
}

func (d *DirStore) setCurrent(name string) error {
	path := filepath.Join(d.root, CurrentFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("updating %s: %w", CurrentFile, err)
	}
	return nil
}

// Current returns the path of the active generation directory.
func (d *DirStore) Current() (string, error) {
	data, err := os.ReadFile(filepath.Join(d.root, CurrentFile))
	if os.IsNotExist(err) {
		return "", apperrors.ErrNoSnapshot
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", CurrentFile, err)
	}
	name := strings.TrimSpace(string(data))
	if !strings.HasPrefix(name, genPrefix) || strings.ContainsAny(name, `/\`) {
		return "", apperrors.Consistencyf("%s names %q", CurrentFile, name)
	}
	return filepath.Join(d.root, name), nil
}

// LoadCurrent loads the active generation.
func (d *DirStore) LoadCurrent(pool *workpool.Pool) (*Snapshot, error) {
	dir, err := d.Current()
	if err != nil {
		return nil, err
	}
	return Load(dir, pool)
}

// Prune removes all but the newest keep generations. The active generation
// is always kept.
func (d *DirStore) Prune() error {
	if d.keep < 1 {
		return nil
	}
	gens, err := d.Generations()
	if err != nil {
		return err
	}
	current, _ := d.Current()
	for len(gens) > d.keep {
		dir := filepath.Join(d.root, DirName(gens[0]))
		gens = gens[1:]
		if dir == current {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
		d.logger.Info("pruned generation", "dir", dir)
	}
	return nil
}

// Load reads the snapshot stored in dir, recomputes its derived artifacts and
// verifies it.
func Load(dir string, pool *workpool.Pool) (*Snapshot, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	idx, err := segment.Load(filepath.Join(dir, segment.FileName))
	if err != nil {
		return nil, fmt.Errorf("loading index segment: %w", err)
	}
	if idx.NumDocs() != m.Documents || idx.NumTerms() != m.Terms {
		return nil, apperrors.Consistencyf("segment holds %d documents and %d terms, manifest %d and %d",
			idx.NumDocs(), idx.NumTerms(), m.Documents, m.Terms)
	}

	f, err := os.Open(filepath.Join(dir, lsi.FileName))
	if err != nil {
		return nil, fmt.Errorf("opening projection: %w", err)
	}
	defer f.Close()
	proj, err := lsi.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("loading projection: %w", err)
	}

	s := &Snapshot{
		Generation: m.Generation,
		BuiltAt:    m.BuiltAt,
		Params:     m.Params,
		Corpus:     m.Corpus,
		Stages:     m.Stages,
		Index:      idx,
		Scorer:     ranker.NewScorer(idx),
		Projection: proj,
		Clusters:   m.Clusters,
		Pairs:      m.Pairs,
		Graph:      similarity.NewGraph(m.Pairs),
	}
	if s.Entities, err = aggregateEntities(s.Scorer, pool); err != nil {
		return nil, err
	}
	if s.DocKeywords, s.EntityKeywords, err = extractKeywords(s.Scorer, s.Params, pool); err != nil {
		return nil, err
	}
	if s.Clusters == nil {
		return nil, apperrors.Consistencyf("manifest of generation %d has no cluster assignment", m.Generation)
	}
	if err := Verify(s); err != nil {
		return nil, err
	}
	return s, nil
}
