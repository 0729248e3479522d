// Package parser turns raw query text into the canonical name token and
// optional scope qualifier the executor matches against.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/normalizer"
)

// Only the canonical scope separator splits a qualifier from the name.
// Other punctuation belongs to the name, as in "operator/" or "buffer.hpp".

// Query is a parsed query.
type Query struct {
	Raw string
	// Name is the canonical form of the name part. Empty means every key
	// matches.
	Name string
	// Scope is the collapsed scope qualifier joined with "::", or empty.
	Scope string
}

// Empty reports whether the query constrains nothing.
func (q Query) Empty() bool {
	return q.Name == "" && q.Scope == ""
}

// Shard returns the bucket the name token routes to. ok is false for an
// empty name, which has to be looked up in every bucket.
func (q Query) Shard() (key string, ok bool) {
	if q.Name == "" {
		return "", false
	}
	return normalizer.ShardOf(q.Name), true
}

// Parse never fails; text with nothing usable yields an empty Query.
func Parse(text string) Query {
	q := Query{Raw: text}
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return q
	}

	name := s
	if cut := strings.LastIndex(s, index.ScopeSeparator); cut >= 0 {
		q.Scope = ScopeKey(strings.Split(s[:cut], index.ScopeSeparator))
		name = s[cut+len(index.ScopeSeparator):]
	}
	q.Name = normalizer.Canonical(name)
	return q
}

// ScopeKey collapses each scope element and joins the non-empty ones with
// "::". The executor applies it to stored scopes so both sides compare in the
// same form.
func ScopeKey(scope []string) string {
	parts := make([]string, 0, len(scope))
	for _, p := range scope {
		if c := normalizer.Collapse(p); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, index.ScopeSeparator)
}
