// Package segment encodes a frozen index into a single .spdx file and reads
// it back. The layout is a fixed 64-byte header, the JSON posting lists of
// every term back to back, a JSON term dictionary, a JSON document table and
// a 32-byte footer carrying a CRC32 of everything between header and footer.
// Encoding is deterministic: the same index always yields the same bytes.
package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
)

// MagicBytes identifies a valid .spdx segment file.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// FileName is the segment's name inside a snapshot directory.
const FileName = "index.spdx"

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	DocsOffset int64
	DocsSize   int64
}

// DictEntry maps a term to its postings offset, length, and document frequency
// in the segment file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// Encode writes the segment encoding of x to w.
func Encode(w io.Writer, x *index.Index) error {
	var postings bytes.Buffer
	entries := x.Entries()
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		offset := int64(postings.Len())
		data, err := json.Marshal(entry.Postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		postings.Write(data)
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset,
			PostLen:    len(data),
			DocFreq:    len(entry.Postings),
		})
	}
	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	docsData, err := json.Marshal(x.Docs())
	if err != nil {
		return fmt.Errorf("marshaling document table: %w", err)
	}

	postStart := int64(HeaderSize)
	dictStart := postStart + int64(postings.Len())
	docsStart := dictStart + int64(len(dictData))

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(x.NumTerms()))
	binary.LittleEndian.PutUint32(header[12:16], uint32(x.NumDocs()))
	binary.LittleEndian.PutUint64(header[16:24], uint64(dictStart))
	binary.LittleEndian.PutUint64(header[24:32], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(header[32:40], uint64(postStart))
	binary.LittleEndian.PutUint64(header[40:48], uint64(postings.Len()))
	binary.LittleEndian.PutUint64(header[48:56], uint64(docsStart))
	binary.LittleEndian.PutUint64(header[56:64], uint64(len(docsData)))

	crc := crc32.NewIEEE()
	crc.Write(postings.Bytes())
	crc.Write(dictData)
	crc.Write(docsData)

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], uint32(x.NumDocs()))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postings.Len()))

	for _, part := range [][]byte{header, postings.Bytes(), dictData, docsData, footer} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("writing segment: %w", err)
		}
	}
	return nil
}

// Writer writes segments into a directory.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates the segment file for x. It writes to a .tmp file
// first and renames on success, returning the final path.
func (w *Writer) Write(x *index.Index) (string, error) {
	finalPath := filepath.Join(w.dataDir, FileName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	if err := Encode(f, x); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return finalPath, nil
}
