package index

import "time"

// Posting records how often a term occurs in one document. Doc is the
// document ordinal within the index, not its external id.
type Posting struct {
	Doc  int32  `json:"d"`
	Freq uint32 `json:"f"`
}

type PostingList []Posting

// TermFreq is one entry of a document's forward list.
type TermFreq struct {
	Term uint32
	Freq uint32
}

// TermEntry pairs a term with its postings, ordered by document ordinal.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Document is the input to Build: an external id, its normalised tokens and
// the speech metadata.
type Document struct {
	ID      int64
	Tokens  []string
	Speaker string
	Party   string
	Date    time.Time
}

// DocMeta is what the index keeps about a document besides its postings.
type DocMeta struct {
	ID      int64     `json:"id"`
	Speaker string    `json:"speaker"`
	Party   string    `json:"party"`
	Date    time.Time `json:"date"`
	// Length is the number of non-empty tokens.
	Length int `json:"length"`
}

// Year is the calendar year of the speech.
func (d DocMeta) Year() int {
	return d.Date.Year()
}
