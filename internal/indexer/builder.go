// Package indexer turns a symbol catalog into a sharded, immutable symbol
// index. A Builder groups records by canonical key, assigns each group a
// sequential id in first-encounter order and partitions the groups into
// shards sorted by key.
package indexer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
)

// Rejection records a catalog record the builder could not index.
type Rejection struct {
	Position    int    `json:"position"`
	DisplayName string `json:"display_name"`
	Reason      string `json:"reason"`
	err         error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("catalog record %d (%q): %s", r.Position, r.DisplayName, r.Reason)
}

func (r Rejection) Unwrap() error {
	return r.err
}

// Summary describes the outcome of one build.
type Summary struct {
	Records  int           `json:"records"`
	Accepted int           `json:"accepted"`
	Entries  int           `json:"entries"`
	Shards   int           `json:"shards"`
	FirstID  uint64        `json:"first_id"`
	NextID   uint64        `json:"next_id"`
	Rejected []Rejection   `json:"rejected"`
	Duration time.Duration `json:"duration"`
}

// Err joins every rejection into a single error, or returns nil.
func (s Summary) Err() error {
	if len(s.Rejected) == 0 {
		return nil
	}
	errs := make([]error, 0, len(s.Rejected))
	for _, r := range s.Rejected {
		errs = append(errs, r)
	}
	return errors.Join(errs...)
}

// Result is the immutable output of a build.
type Result struct {
	Generation uuid.UUID
	BuiltAt    time.Time
	Shards     map[string]*index.Shard
	Summary    Summary
}

// Shard returns the shard for key, or an empty shard when the build produced
// no entries for it.
func (r *Result) Shard(key string) *index.Shard {
	if s, ok := r.Shards[key]; ok {
		return s
	}
	return index.EmptyShard(key)
}

// Builder builds indexes from catalog snapshots. It keeps no state between
// builds apart from the id sequence it was given.
type Builder struct {
	seq    *Sequence
	logger *slog.Logger
}

// NewBuilder returns a Builder drawing ids from seq. A nil seq starts a fresh
// sequence at 1.
func NewBuilder(seq *Sequence) *Builder {
	if seq == nil {
		seq = NewSequence(1)
	}
	return &Builder{
		seq:    seq,
		logger: slog.Default().With("component", "index-builder"),
	}
}

// Build indexes catalog. Records whose display name cannot be normalized are
// skipped and listed in the summary. Build fails with ErrInvalidCatalog only
// when a non-empty catalog contains no usable record.
func (b *Builder) Build(catalog []index.RawSymbol) (*Result, error) {
	start := time.Now()
	mem := index.NewMemoryIndex()
	summary := Summary{
		Records: len(catalog),
		FirstID: b.seq.Peek(),
	}

	for pos, raw := range catalog {
		key, err := normalizer.Normalize(raw.DisplayName)
		if err != nil {
			summary.Rejected = append(summary.Rejected, Rejection{
				Position:    pos,
				DisplayName: raw.DisplayName,
				Reason:      err.Error(),
				err:         err,
			})
			b.logger.Warn("catalog record rejected",
				"position", pos,
				"display_name", raw.DisplayName,
				"error", err,
			)
			continue
		}
		mem.Add(key, raw, b.seq.Next)
	}
	summary.Accepted = mem.Locations()

	if summary.Records > 0 && summary.Accepted == 0 {
		return nil, fmt.Errorf("%w: all %d records rejected: %w",
			apperrors.ErrInvalidCatalog, summary.Records, summary.Err())
	}

	shards := mem.Snapshot()
	summary.Entries = mem.Groups()
	summary.Shards = len(shards)
	summary.NextID = b.seq.Peek()
	summary.Duration = time.Since(start)

	result := &Result{
		Generation: uuid.New(),
		BuiltAt:    time.Now().UTC(),
		Shards:     shards,
		Summary:    summary,
	}
	b.logger.Info("index built",
		"generation", result.Generation,
		"records", summary.Records,
		"entries", summary.Entries,
		"shards", summary.Shards,
		"rejected", len(summary.Rejected),
		"duration", summary.Duration,
	)
	return result, nil
}
