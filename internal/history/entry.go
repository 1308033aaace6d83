// Package history mirrors the transcript history owned by the steno history
// daemon and derives the filtered views the presentation layer renders.
package history

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Entry is a single transcript in the history.
type Entry struct {
	ID         int64     `json:"id"`
	Transcript string    `json:"transcript"`
	Polished   string    `json:"polished,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	WordCount  int       `json:"wordCount"`
	PolishUsed bool      `json:"polishUsed"`
	Favorite   bool      `json:"favorite"`
}

// DisplayText returns the polished text when present, otherwise the raw transcript.
func (e Entry) DisplayText() string {
	if e.Polished != "" {
		return e.Polished
	}
	return e.Transcript
}

// FilterMode selects which entries a view keeps.
type FilterMode int

const (
	FilterAll FilterMode = iota
	FilterFavorites
)

func (f FilterMode) String() string {
	if f == FilterFavorites {
		return "favorites"
	}
	return "all"
}

// Filter returns a new slice holding the entries that pass mode and contain
// query in their display text, ignoring case. The input is not modified.
func Filter(entries []Entry, mode FilterMode, query string) []Entry {
	folder := cases.Fold()
	needle := folder.String(query)

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if mode == FilterFavorites && !e.Favorite {
			continue
		}
		if needle != "" && !strings.Contains(folder.String(e.DisplayText()), needle) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CountWords returns the number of whitespace separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
