package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/postgres"
)

// Schema creates the catalog and build-history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS symbols (
    seq            BIGSERIAL PRIMARY KEY,
    display_name   TEXT   NOT NULL,
    scope          TEXT[] NOT NULL DEFAULT '{}',
    anchor_ref     TEXT   NOT NULL,
    signature_hint TEXT   NOT NULL DEFAULT '',
    kind           TEXT   NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS index_builds (
    generation  UUID PRIMARY KEY,
    records     INTEGER     NOT NULL,
    accepted    INTEGER     NOT NULL,
    rejected    INTEGER     NOT NULL,
    entries     INTEGER     NOT NULL,
    shards      INTEGER     NOT NULL,
    first_id    BIGINT      NOT NULL,
    next_id     BIGINT      NOT NULL,
    duration_ms BIGINT      NOT NULL,
    rejections  JSONB       NOT NULL DEFAULT '[]',
    built_at    TIMESTAMPTZ NOT NULL
);
`

// PostgresSource reads the symbols table in seq order and records build
// outcomes in index_builds.
type PostgresSource struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresSource(db *postgres.Client) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: slog.Default().With("component", "catalog-postgres"),
	}
}

// EnsureSchema creates missing tables.
func (p *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

// Load returns every symbol row in discovery (seq) order.
func (p *PostgresSource) Load(ctx context.Context) ([]index.RawSymbol, error) {
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT display_name, scope, anchor_ref, signature_hint, kind
		 FROM symbols ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying symbols: %w", err)
	}
	defer rows.Close()

	var out []index.RawSymbol
	for rows.Next() {
		var (
			raw   index.RawSymbol
			scope []string
			kind  string
		)
		if err := rows.Scan(&raw.DisplayName, pq.Array(&scope), &raw.AnchorRef, &raw.SignatureHint, &kind); err != nil {
			return nil, fmt.Errorf("scanning symbol row: %w", err)
		}
		if len(scope) > 0 {
			raw.Scope = scope
		}
		raw.Kind = index.ParseKind(kind)
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating symbols: %w", err)
	}
	p.logger.Info("catalog loaded", "records", len(out))
	return out, nil
}

// Insert appends records to the symbols table in one transaction.
func (p *PostgresSource) Insert(ctx context.Context, records []index.RawSymbol) error {
	return p.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO symbols (display_name, scope, anchor_ref, signature_hint, kind)
			 VALUES ($1, $2, $3, $4, $5)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for i, r := range records {
			scope := r.Scope
			if scope == nil {
				scope = []string{}
			}
			if _, err := stmt.ExecContext(ctx, r.DisplayName, pq.Array(scope), r.AnchorRef, r.SignatureHint, r.Kind.String()); err != nil {
				return fmt.Errorf("inserting record %d: %w", i, err)
			}
		}
		return nil
	})
}

// NextID returns the id the next build should start from so that ids are
// never reissued across builds. It is 0 when no build has been recorded.
func (p *PostgresSource) NextID(ctx context.Context) (uint64, error) {
	var next int64
	err := p.db.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(next_id), 0) FROM index_builds`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("reading last build id: %w", err)
	}
	return uint64(next), nil
}

// RecordBuild stores the summary of a finished build.
func (p *PostgresSource) RecordBuild(ctx context.Context, result *indexer.Result) error {
	s := result.Summary
	rejections, err := json.Marshal(s.Rejected)
	if err != nil {
		return fmt.Errorf("marshaling rejections: %w", err)
	}
	if s.Rejected == nil {
		rejections = []byte("[]")
	}
	_, err = p.db.DB.ExecContext(ctx,
		`INSERT INTO index_builds
		 (generation, records, accepted, rejected, entries, shards, first_id, next_id, duration_ms, rejections, built_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		result.Generation.String(), s.Records, s.Accepted, len(s.Rejected), s.Entries, s.Shards,
		int64(s.FirstID), int64(s.NextID), s.Duration.Milliseconds(), rejections, result.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("recording build %s: %w", result.Generation, err)
	}
	return nil
}
