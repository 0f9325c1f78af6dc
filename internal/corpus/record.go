// Package corpus reads normalised speech records from a JSON-lines file or a
// PostgreSQL table and turns the valid ones into index documents.
package corpus

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// Record is one speech as delivered by the normalisation stage. Tokens wins
// over Text when both are present; Text is split into lowercase words.
type Record struct {
	DocID   int64    `json:"doc_id"`
	Speaker string   `json:"speaker"`
	Party   string   `json:"party"`
	Date    string   `json:"date"`
	Tokens  []string `json:"tokens,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// dateLayouts are tried in order.
var dateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

// ValidationError holds per-field validation failure messages for one
// record. It wraps ErrInvalidInput.
type ValidationError struct {
	DocID  int64
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, e.Fields[k]))
	}
	return fmt.Sprintf("record %d: %s", e.DocID, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Reason returns a stable label for metrics, naming the first failing field.
func (e *ValidationError) Reason() string {
	for _, f := range []string{"speaker", "party", "date"} {
		if _, ok := e.Fields[f]; ok {
			return "invalid_" + f
		}
	}
	return "invalid"
}

// Validate checks the metadata every downstream stage relies on and returns
// the parsed date.
func Validate(r *Record) (time.Time, error) {
	errs := make(map[string]string)
	if strings.TrimSpace(r.Speaker) == "" {
		errs["speaker"] = "speaker is required"
	}
	if strings.TrimSpace(r.Party) == "" {
		errs["party"] = "party is required"
	}
	var date time.Time
	if strings.TrimSpace(r.Date) == "" {
		errs["date"] = "date is required"
	} else {
		var err error
		date, err = parseDate(r.Date)
		if err != nil {
			errs["date"] = fmt.Sprintf("unparseable date %q", r.Date)
		}
	}
	if len(errs) > 0 {
		return time.Time{}, &ValidationError{DocID: r.DocID, Fields: errs}
	}
	return date, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// tokens returns the record's token stream with empty tokens removed.
func (r *Record) tokens() []string {
	src := r.Tokens
	if len(src) == 0 && r.Text != "" {
		src = tokenizer.Terms(r.Text)
	}
	out := make([]string, 0, len(src))
	for _, t := range src {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
