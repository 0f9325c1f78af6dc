// Package parser turns a free-text query into a QueryPlan: normalised terms,
// excluded terms, the combining mode and optional metadata filters.
package parser

import (
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/tokenizer"
)

type QueryType int

const (
	// QueryOR ranks every document containing at least one term.
	QueryOR QueryType = iota
	// QueryAND ranks only documents containing every term.
	QueryAND
)

func (t QueryType) String() string {
	if t == QueryAND {
		return "AND"
	}
	return "OR"
}

// Filter restricts results by speech metadata. Zero fields match anything;
// From and To are inclusive calendar days, so a speech timestamped any time
// on the To day still matches.
type Filter struct {
	Party   string    `json:"party,omitempty"`
	Speaker string    `json:"speaker,omitempty"`
	From    time.Time `json:"from,omitzero"`
	To      time.Time `json:"to,omitzero"`
}

// IsZero reports whether f matches every document.
func (f Filter) IsZero() bool {
	return f.Party == "" && f.Speaker == "" && f.From.IsZero() && f.To.IsZero()
}

// Match reports whether d passes f.
func (f Filter) Match(d index.DocMeta) bool {
	if f.Party != "" && d.Party != f.Party {
		return false
	}
	if f.Speaker != "" && d.Speaker != f.Speaker {
		return false
	}
	if !f.From.IsZero() && d.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !d.Date.Before(dayAfter(f.To)) {
		return false
	}
	return true
}

func dayAfter(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

type QueryPlan struct {
	// Terms keeps duplicates; a repeated term weighs once per occurrence.
	Terms        []string
	Type         QueryType
	ExcludeTerms []string
	Filter       Filter
	RawQuery     string
}

// Parse splits query into terms. The words AND, OR and NOT (any case) are
// operators: AND and OR set the mode for the whole query, NOT excludes the
// next term.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryOR,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch strings.ToUpper(word) {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		for _, term := range tokenizer.Terms(word) {
			if excludeNext {
				plan.ExcludeTerms = append(plan.ExcludeTerms, term)
			} else {
				plan.Terms = append(plan.Terms, term)
			}
		}
		excludeNext = false
	}
	return plan
}

// WithFilter returns plan with f attached.
func (p *QueryPlan) WithFilter(f Filter) *QueryPlan {
	p.Filter = f
	return p
}

// Key is a canonical form of the plan: plans with the same key return the
// same results against the same snapshot.
func (p *QueryPlan) Key() string {
	terms := append([]string(nil), p.Terms...)
	excludes := append([]string(nil), p.ExcludeTerms...)
	sort.Strings(terms)
	sort.Strings(excludes)
	parts := []string{p.Type.String(), strings.Join(terms, ",")}
	if len(excludes) > 0 {
		parts = append(parts, "NOT:"+strings.Join(excludes, ","))
	}
	if !p.Filter.IsZero() {
		parts = append(parts,
			"party:"+p.Filter.Party,
			"speaker:"+p.Filter.Speaker,
			"from:"+formatDate(p.Filter.From),
			"to:"+formatDate(p.Filter.To),
		)
	}
	return strings.Join(parts, "|")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
