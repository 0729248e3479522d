package indexer

import "time"

// BuildEvent announces a published generation. The searcher reloads when it
// receives one.
type BuildEvent struct {
	Generation string    `json:"generation"`
	Shards     int       `json:"shards"`
	Entries    int       `json:"entries"`
	Rejected   int       `json:"rejected"`
	BuiltAt    time.Time `json:"built_at"`
}

// Event describes r as a BuildEvent.
func (r *Result) Event() BuildEvent {
	return BuildEvent{
		Generation: r.Generation.String(),
		Shards:     r.Summary.Shards,
		Entries:    r.Summary.Entries,
		Rejected:   len(r.Summary.Rejected),
		BuiltAt:    r.BuiltAt,
	}
}
