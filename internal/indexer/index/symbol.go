package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/normalizer"
)

// Kind tags what sort of symbol a location documents. Matching and ranking
// ignore it; it only travels to the UI for display.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindFunction
	KindType
	KindVariable
	KindGroup
	KindNamespace
	KindEnum
	KindTypedef
	KindDefine
	KindFile
	KindPage
)

var kindNames = [...]string{
	KindUnknown:   "unknown",
	KindFunction:  "function",
	KindType:      "type",
	KindVariable:  "variable",
	KindGroup:     "group",
	KindNamespace: "namespace",
	KindEnum:      "enum",
	KindTypedef:   "typedef",
	KindDefine:    "define",
	KindFile:      "file",
	KindPage:      "page",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// ParseKind maps a kind name, or a common catalog synonym such as "class" or
// "method", to its Kind. Unknown names yield KindUnknown.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "function", "func", "method", "constructor":
		return KindFunction
	case "type", "class", "struct", "union", "interface":
		return KindType
	case "variable", "var", "field", "member":
		return KindVariable
	case "group", "module":
		return KindGroup
	case "namespace", "package":
		return KindNamespace
	case "enum", "enumeration", "enumvalue":
		return KindEnum
	case "typedef", "alias":
		return KindTypedef
	case "define", "macro":
		return KindDefine
	case "file":
		return KindFile
	case "page":
		return KindPage
	default:
		return KindUnknown
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// ScopeSeparator joins scope segments for display and scope filtering.
const ScopeSeparator = "::"

// RawSymbol is one record of the symbol catalog, in discovery order.
type RawSymbol struct {
	DisplayName   string   `json:"display_name"`
	Scope         []string `json:"scope"`
	AnchorRef     string   `json:"anchor_ref"`
	SignatureHint string   `json:"signature_hint,omitempty"`
	Kind          Kind     `json:"kind"`
}

// Location is one documented definition site of a symbol.
type Location struct {
	Scope         []string `json:"scope"`
	AnchorRef     string   `json:"anchor_ref"`
	SignatureHint string   `json:"signature_hint,omitempty"`
	Kind          Kind     `json:"kind"`
}

// QualifiedScope joins the scope chain with ScopeSeparator.
func (l Location) QualifiedScope() string {
	return strings.Join(l.Scope, ScopeSeparator)
}

// Entry groups every location that shares one canonical key.
type Entry struct {
	CanonicalKey string     `json:"canonical_key"`
	Collapsed    string     `json:"collapsed"`
	ID           uint64     `json:"id"`
	DisplayName  string     `json:"display_name"`
	Locations    []Location `json:"locations"`
}

// Shard is one bucket of the index. Entries are sorted by CanonicalKey.
type Shard struct {
	Key     string
	Entries []Entry
}

// EmptyShard returns a shard with no entries for the given key.
func EmptyShard(key string) *Shard {
	return &Shard{Key: key, Entries: []Entry{}}
}

func (s *Shard) Len() int {
	return len(s.Entries)
}

// Find returns the entry with exactly the given canonical key.
func (s *Shard) Find(canonical string) (Entry, bool) {
	idx := sort.Search(len(s.Entries), func(i int) bool {
		return s.Entries[i].CanonicalKey >= canonical
	})
	if idx >= len(s.Entries) || s.Entries[idx].CanonicalKey != canonical {
		return Entry{}, false
	}
	return s.Entries[idx], true
}

// PrefixRange returns the contiguous run of entries whose canonical key
// starts with prefix. The returned slice aliases the shard.
func (s *Shard) PrefixRange(prefix string) []Entry {
	start := sort.Search(len(s.Entries), func(i int) bool {
		return s.Entries[i].CanonicalKey >= prefix
	})
	end := start
	for end < len(s.Entries) && strings.HasPrefix(s.Entries[end].CanonicalKey, prefix) {
		end++
	}
	return s.Entries[start:end]
}

// Validate checks the structural invariants a loaded shard must satisfy.
func (s *Shard) Validate() error {
	for i, e := range s.Entries {
		if e.CanonicalKey == "" {
			return fmt.Errorf("shard %q entry %d: empty canonical key", s.Key, i)
		}
		if normalizer.ShardOf(e.CanonicalKey) != s.Key {
			return fmt.Errorf("shard %q entry %q: belongs to shard %q", s.Key, e.CanonicalKey, normalizer.ShardOf(e.CanonicalKey))
		}
		if len(e.Locations) == 0 {
			return fmt.Errorf("shard %q entry %q: no locations", s.Key, e.CanonicalKey)
		}
		if i > 0 && s.Entries[i-1].CanonicalKey >= e.CanonicalKey {
			return fmt.Errorf("shard %q: keys not strictly increasing at %q", s.Key, e.CanonicalKey)
		}
	}
	return nil
}
