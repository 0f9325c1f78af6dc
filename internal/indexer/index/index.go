// Package index builds the frozen inverted index a snapshot is computed from.
// Terms receive stable ids at build time (lexicographic order), postings are
// ordered by document ordinal and documents are ordered by external id, so
// the same corpus always produces the same index.
package index

import (
	"fmt"
	"slices"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// Index is an immutable term -> postings mapping plus the forward lists
// needed for document norms and keyword extraction. Safe for concurrent
// readers.
type Index struct {
	terms    []string
	termIDs  map[string]uint32
	postings []PostingList
	forward  [][]TermFreq
	docs     []DocMeta
	ordinals map[int64]int
}

// Build indexes docs. Documents with no tokens still count towards the
// corpus size. Duplicate ids are rejected.
func Build(docs []Document) (*Index, error) {
	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, apperrors.InvalidInputf("duplicate document id %d", sorted[i].ID)
		}
	}

	counts := make([]map[string]uint32, len(sorted))
	vocab := make(map[string]struct{})
	meta := make([]DocMeta, len(sorted))
	for i, d := range sorted {
		c := make(map[string]uint32)
		length := 0
		for _, tok := range d.Tokens {
			if tok == "" {
				continue
			}
			c[tok]++
			length++
			vocab[tok] = struct{}{}
		}
		counts[i] = c
		meta[i] = DocMeta{
			ID:      d.ID,
			Speaker: d.Speaker,
			Party:   d.Party,
			Date:    d.Date,
			Length:  length,
		}
	}

	terms := make([]string, 0, len(vocab))
	for t := range vocab {
		terms = append(terms, t)
	}
	slices.Sort(terms)
	termIDs := make(map[string]uint32, len(terms))
	for i, t := range terms {
		termIDs[t] = uint32(i)
	}

	postings := make([]PostingList, len(terms))
	forward := make([][]TermFreq, len(sorted))
	for ord, c := range counts {
		fw := make([]TermFreq, 0, len(c))
		for tok, f := range c {
			fw = append(fw, TermFreq{Term: termIDs[tok], Freq: f})
		}
		slices.SortFunc(fw, func(a, b TermFreq) int { return int(a.Term) - int(b.Term) })
		forward[ord] = fw
		for _, tf := range fw {
			postings[tf.Term] = append(postings[tf.Term], Posting{Doc: int32(ord), Freq: tf.Freq})
		}
	}

	return assemble(terms, termIDs, postings, forward, meta), nil
}

// FromEntries reconstructs an index from decoded term entries and document
// metadata, as stored in a segment. Entries must be sorted by term.
func FromEntries(entries []TermEntry, docs []DocMeta) (*Index, error) {
	terms := make([]string, len(entries))
	termIDs := make(map[string]uint32, len(entries))
	postings := make([]PostingList, len(entries))
	forward := make([][]TermFreq, len(docs))
	for i, e := range entries {
		if i > 0 && entries[i-1].Term >= e.Term {
			return nil, apperrors.Consistencyf("terms out of order at %q", e.Term)
		}
		terms[i] = e.Term
		termIDs[e.Term] = uint32(i)
		postings[i] = e.Postings
		for _, p := range e.Postings {
			if int(p.Doc) < 0 || int(p.Doc) >= len(docs) {
				return nil, apperrors.Consistencyf("term %q references document ordinal %d of %d", e.Term, p.Doc, len(docs))
			}
			if p.Freq == 0 {
				return nil, apperrors.Consistencyf("term %q has zero frequency posting", e.Term)
			}
			forward[p.Doc] = append(forward[p.Doc], TermFreq{Term: uint32(i), Freq: p.Freq})
		}
	}
	for i := 1; i < len(docs); i++ {
		if docs[i-1].ID >= docs[i].ID {
			return nil, apperrors.Consistencyf("documents out of order at id %d", docs[i].ID)
		}
	}
	return assemble(terms, termIDs, postings, forward, slices.Clone(docs)), nil
}

func assemble(terms []string, termIDs map[string]uint32, postings []PostingList, forward [][]TermFreq, docs []DocMeta) *Index {
	ordinals := make(map[int64]int, len(docs))
	for i, d := range docs {
		ordinals[d.ID] = i
	}
	return &Index{
		terms:    terms,
		termIDs:  termIDs,
		postings: postings,
		forward:  forward,
		docs:     docs,
		ordinals: ordinals,
	}
}

// NumDocs is N, the corpus size.
func (x *Index) NumDocs() int { return len(x.docs) }

// NumTerms is the vocabulary size.
func (x *Index) NumTerms() int { return len(x.terms) }

// Term returns the term with the given id.
func (x *Index) Term(id uint32) string { return x.terms[id] }

// Terms returns the frozen vocabulary in id order. Callers must not modify it.
func (x *Index) Terms() []string { return x.terms }

// TermID looks up a term.
func (x *Index) TermID(term string) (uint32, bool) {
	id, ok := x.termIDs[term]
	return id, ok
}

// Postings returns the posting list of a term id.
func (x *Index) Postings(id uint32) PostingList { return x.postings[id] }

// Search returns the postings for a term, or nil if it is not indexed.
func (x *Index) Search(term string) PostingList {
	id, ok := x.termIDs[term]
	if !ok {
		return nil
	}
	return x.postings[id]
}

// DocFreq is the number of documents containing the term id.
func (x *Index) DocFreq(id uint32) int { return len(x.postings[id]) }

// Forward returns the (term id, tf) list of a document, ascending by term id.
func (x *Index) Forward(ord int) []TermFreq { return x.forward[ord] }

// Doc returns the metadata of the document at ordinal ord.
func (x *Index) Doc(ord int) DocMeta { return x.docs[ord] }

// Docs returns all document metadata in ordinal order. Callers must not
// modify it.
func (x *Index) Docs() []DocMeta { return x.docs }

// Ordinal maps an external document id to its ordinal.
func (x *Index) Ordinal(id int64) (int, bool) {
	ord, ok := x.ordinals[id]
	return ord, ok
}

// Entries returns the index as term entries sorted by term, the form the
// segment writer encodes.
func (x *Index) Entries() []TermEntry {
	out := make([]TermEntry, len(x.terms))
	for i, t := range x.terms {
		out[i] = TermEntry{Term: t, Postings: x.postings[i]}
	}
	return out
}

// String summarises the index for logs.
func (x *Index) String() string {
	return fmt.Sprintf("index{docs=%d terms=%d}", len(x.docs), len(x.terms))
}
