// Package analytics keeps a log of answered queries. The search handler
// tracks one QueryEvent per request; a Collector ships events to Kafka and
// an Aggregator folds them into counters that are served over HTTP and
// periodically snapshotted to PostgreSQL.
package analytics

import "time"

// QueryEvent describes one answered query.
type QueryEvent struct {
	Query      string    `json:"query"`
	Name       string    `json:"name"`
	Scope      string    `json:"scope,omitempty"`
	Generation string    `json:"generation"`
	Total      int       `json:"total"`
	Returned   int       `json:"returned"`
	Cache      string    `json:"cache"`
	LatencyMs  int64     `json:"latency_ms"`
	Failed     bool      `json:"failed,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Tracker accepts query events without blocking.
type Tracker interface {
	Track(ev QueryEvent)
}
