package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// Reader serves term lookups from a segment file without loading every
// posting list.
type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	docs     []index.DocMeta
}

// OpenReader opens a segment, checks its magic, version and checksum, and
// loads the dictionary and document table.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := newReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	if info.Size() < int64(HeaderSize+FooterSize) {
		return nil, apperrors.Consistencyf("segment %s truncated (%d bytes)", path, info.Size())
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, apperrors.Consistencyf("invalid segment file: bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:  binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:   binary.LittleEndian.Uint32(headerBytes[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		DocsOffset: int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
		DocsSize:   int64(binary.LittleEndian.Uint64(headerBytes[56:64])),
	}
	if header.Version != FormatVersion {
		return nil, apperrors.Consistencyf("unsupported segment version %d", header.Version)
	}
	if err := header.checkLayout(info.Size()); err != nil {
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}
	bodyEnd := header.DocsOffset + header.DocsSize

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, bodyEnd); err != nil {
		return nil, fmt.Errorf("reading segment footer: %w", err)
	}
	crc := crc32.NewIEEE()
	if _, err := io.Copy(crc, io.NewSectionReader(f, int64(HeaderSize), bodyEnd-int64(HeaderSize))); err != nil {
		return nil, fmt.Errorf("checksumming segment: %w", err)
	}
	if want := binary.LittleEndian.Uint32(footer[0:4]); crc.Sum32() != want {
		return nil, apperrors.Consistencyf("segment %s checksum mismatch", path)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	docsBytes := make([]byte, header.DocsSize)
	if _, err := f.ReadAt(docsBytes, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading document table: %w", err)
	}
	var docs []index.DocMeta
	if err := json.Unmarshal(docsBytes, &docs); err != nil {
		return nil, fmt.Errorf("parsing document table: %w", err)
	}
	if len(dict) != int(header.TermCount) || len(docs) != int(header.DocCount) {
		return nil, apperrors.Consistencyf("segment %s counts do not match header", path)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		docs:     docs,
	}, nil
}

// checkLayout verifies that postings, dictionary and document table follow
// the header back to back and end at the footer. The checksum does not cover
// the header, so nothing in it is trusted before this passes.
func (h SegmentHeader) checkLayout(fileSize int64) error {
	if h.PostSize < 0 || h.DictSize < 0 || h.DocsSize < 0 {
		return apperrors.Consistencyf("negative section size in header")
	}
	if h.PostOffset != int64(HeaderSize) ||
		h.DictOffset != h.PostOffset+h.PostSize ||
		h.DocsOffset != h.DictOffset+h.DictSize {
		return apperrors.Consistencyf("header sections are not contiguous")
	}
	if h.DocsOffset+h.DocsSize+int64(FooterSize) != fileSize {
		return apperrors.Consistencyf("size %d does not match header", fileSize)
	}
	return nil
}

// Search returns the postings of term, or nil if the segment does not
// contain it.
func (r *Reader) Search(term string) (index.PostingList, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return nil, nil
	}
	return r.readPostings(r.dict[idx])
}

func (r *Reader) readPostings(entry DictEntry) (index.PostingList, error) {
	if entry.PostOffset < 0 || entry.PostLen < 0 || entry.PostOffset+int64(entry.PostLen) > r.header.PostSize {
		return nil, apperrors.Consistencyf("term %q: postings outside the postings section", entry.Term)
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings: %w", err)
	}
	if len(postings) != entry.DocFreq {
		return nil, apperrors.Consistencyf("term %q: %d postings, dictionary says %d", entry.Term, len(postings), entry.DocFreq)
	}
	return postings, nil
}

// Index decodes every posting list and reconstructs the in-memory index.
func (r *Reader) Index() (*index.Index, error) {
	entries := make([]index.TermEntry, len(r.dict))
	for i, entry := range r.dict {
		postings, err := r.readPostings(entry)
		if err != nil {
			return nil, err
		}
		entries[i] = index.TermEntry{Term: entry.Term, Postings: postings}
	}
	return index.FromEntries(entries, r.docs)
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Load opens the segment at path and returns the decoded index.
func Load(path string) (*index.Index, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Index()
}
