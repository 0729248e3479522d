package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/normalizer"
)

// MemoryIndex accumulates catalog records into overload groups while a build
// is in progress. It is owned by a single builder goroutine and is not safe
// for concurrent use.
type MemoryIndex struct {
	groups    map[string]*group
	order     []string
	locations int
}

type group struct {
	shard string
	entry Entry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		groups: make(map[string]*group),
	}
}

// Add appends raw to the group for key, creating the group with an id from
// nextID when the key is seen for the first time. It reports whether a new
// group was created.
func (m *MemoryIndex) Add(key normalizer.Key, raw RawSymbol, nextID func() uint64) bool {
	loc := Location{
		Scope:         append([]string{}, raw.Scope...),
		AnchorRef:     raw.AnchorRef,
		SignatureHint: raw.SignatureHint,
		Kind:          raw.Kind,
	}
	m.locations++
	if g, exists := m.groups[key.Canonical]; exists {
		g.entry.Locations = append(g.entry.Locations, loc)
		return false
	}
	m.groups[key.Canonical] = &group{
		shard: key.Shard,
		entry: Entry{
			CanonicalKey: key.Canonical,
			Collapsed:    key.Collapsed,
			ID:           nextID(),
			DisplayName:  raw.DisplayName,
			Locations:    []Location{loc},
		},
	}
	m.order = append(m.order, key.Canonical)
	return true
}

// Snapshot partitions the groups into shards, each sorted by canonical key.
// Only non-empty shards are returned.
func (m *MemoryIndex) Snapshot() map[string]*Shard {
	shards := make(map[string]*Shard)
	for _, canonical := range m.order {
		g := m.groups[canonical]
		s, ok := shards[g.shard]
		if !ok {
			s = &Shard{Key: g.shard}
			shards[g.shard] = s
		}
		s.Entries = append(s.Entries, g.entry)
	}
	for _, s := range shards {
		sort.Slice(s.Entries, func(i, j int) bool {
			return s.Entries[i].CanonicalKey < s.Entries[j].CanonicalKey
		})
	}
	return shards
}

// Groups returns the number of distinct canonical keys.
func (m *MemoryIndex) Groups() int {
	return len(m.groups)
}

// Locations returns the number of records added, which is the number of
// catalog records a build accepted.
func (m *MemoryIndex) Locations() int {
	return m.locations
}
