package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/postgres"
)

// SnapshotSchema creates the table snapshots are kept in.
const SnapshotSchema = `
CREATE TABLE IF NOT EXISTS query_stats_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// SnapshotStore persists Stats in PostgreSQL.
type SnapshotStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewSnapshotStore(db *postgres.Client) *SnapshotStore {
	return &SnapshotStore{
		db:     db,
		logger: slog.Default().With("component", "query-stats-store"),
	}
}

func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, SnapshotSchema); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Save(ctx context.Context, stats Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO query_stats_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving query stats snapshot: %w", err)
	}
	s.logger.Debug("query stats snapshot saved", "queries", stats.Queries)
	return nil
}

// Latest returns the newest snapshot, or nil when there is none.
func (s *SnapshotStore) Latest(ctx context.Context) (*Stats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM query_stats_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &stats, nil
}

// RunSnapshots saves agg's stats every interval until ctx ends, and once more
// on the way out. Failures are logged and retried on the next tick.
func (s *SnapshotStore) RunSnapshots(ctx context.Context, agg *Aggregator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Save(ctx, agg.Stats()); err != nil {
				s.logger.Error("query stats snapshot failed", "error", err)
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := s.Save(final, agg.Stats()); err != nil {
				s.logger.Error("final query stats snapshot failed", "error", err)
			}
			cancel()
			return
		}
	}
}
