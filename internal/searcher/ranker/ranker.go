// Package ranker orders symbol matches: exact key matches first, then prefix
// matches, each class in canonical key order with ties broken by id.
package ranker

import (
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
)

// Match is one entry that satisfied a query, with the locations that
// survived the scope filter.
type Match struct {
	Entry     index.Entry
	Locations []index.Location
	Exact     bool
}

// Less orders a before b within one match class.
func Less(a, b Match) bool {
	if a.Entry.CanonicalKey != b.Entry.CanonicalKey {
		return a.Entry.CanonicalKey < b.Entry.CanonicalKey
	}
	return a.Entry.ID < b.Entry.ID
}

// Rank stably moves exact matches ahead of prefix matches. Input already in
// Less order comes out fully ranked. The slice is reordered in place.
func Rank(matches []Match) []Match {
	exact := 0
	for _, m := range matches {
		if m.Exact {
			exact++
		}
	}
	if exact == 0 || exact == len(matches) {
		return matches
	}
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Exact {
			out = append(out, m)
		}
	}
	for _, m := range matches {
		if !m.Exact {
			out = append(out, m)
		}
	}
	copy(matches, out)
	return matches
}
