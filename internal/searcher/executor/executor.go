// Package executor answers symbol queries against one index generation.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/tracing"
)

// ShardSource is the read side of a shard.Store.
type ShardSource interface {
	Get(ctx context.Context, key string) (*index.Shard, error)
	Has(key string) bool
	MayContain(key, prefix string) bool
}

// SymbolResult is one ranked symbol in a response.
type SymbolResult struct {
	DisplayName      string           `json:"display_name"`
	ID               uint64           `json:"id"`
	Kind             index.Kind       `json:"kind"`
	MatchedLocations []index.Location `json:"matched_locations"`
}

// SearchResult is the answer to one query. Total counts every match;
// Results holds at most the requested number of them.
type SearchResult struct {
	Query     string         `json:"query"`
	Total     int            `json:"total"`
	Truncated bool           `json:"truncated"`
	Results   []SymbolResult `json:"results"`
}

// fanOut bounds how many shards an unqualified-name scan touches at once.
const fanOut = 8

type Executor struct {
	shards ShardSource
	logger *slog.Logger
}

func New(shards ShardSource) *Executor {
	return &Executor{
		shards: shards,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Search parses text and returns up to maxResults ranked symbols.
func (e *Executor) Search(ctx context.Context, text string, maxResults int) (*SearchResult, error) {
	if maxResults <= 0 {
		return nil, fmt.Errorf("%w: maxResults must be positive, got %d", apperrors.ErrInvalidArgument, maxResults)
	}
	return e.Execute(ctx, parser.Parse(text), maxResults)
}

// Execute runs an already parsed query.
func (e *Executor) Execute(ctx context.Context, q parser.Query, maxResults int) (*SearchResult, error) {
	if maxResults <= 0 {
		return nil, fmt.Errorf("%w: maxResults must be positive, got %d", apperrors.ErrInvalidArgument, maxResults)
	}
	result := &SearchResult{Query: q.Raw, Results: []SymbolResult{}}
	if q.Empty() {
		return result, nil
	}
	start := time.Now()

	var lists [][]ranker.Match
	if key, ok := q.Shard(); ok {
		matches, err := e.matchShard(ctx, key, q)
		if err != nil {
			return nil, err
		}
		lists = [][]ranker.Match{matches}
	} else {
		var err error
		if lists, err = e.matchAll(ctx, q); err != nil {
			return nil, err
		}
	}

	ranked := ranker.Rank(merger.Merge(lists, 0))
	result.Total = len(ranked)
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
		result.Truncated = true
	}
	for _, m := range ranked {
		result.Results = append(result.Results, SymbolResult{
			DisplayName:      m.Entry.DisplayName,
			ID:               m.Entry.ID,
			Kind:             m.Locations[0].Kind,
			MatchedLocations: m.Locations,
		})
	}

	logger.FromContext(ctx).Debug("query executed",
		"query", q.Raw,
		"name", q.Name,
		"scope", q.Scope,
		"total", result.Total,
		"returned", len(result.Results),
		"duration", time.Since(start),
	)
	return result, nil
}

func (e *Executor) matchAll(ctx context.Context, q parser.Query) ([][]ranker.Match, error) {
	keys := normalizer.ShardKeys()
	lists := make([][]ranker.Match, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for i, key := range keys {
		if !e.shards.Has(key) {
			continue
		}
		g.Go(func() error {
			matches, err := e.matchShard(gctx, key, q)
			if err != nil {
				return err
			}
			lists[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

func (e *Executor) matchShard(ctx context.Context, key string, q parser.Query) ([]ranker.Match, error) {
	ctx, span := tracing.Start(ctx, "shard")
	defer span.End()
	span.SetAttr("shard", key)

	if !e.shards.MayContain(key, q.Name) {
		span.SetAttr("filtered", true)
		return nil, nil
	}
	shard, err := e.shards.Get(ctx, key)
	if err != nil {
		span.SetAttr("error", err.Error())
		return nil, err
	}
	candidates := shard.PrefixRange(q.Name)
	span.SetAttr("candidates", len(candidates))
	matches := make([]ranker.Match, 0, len(candidates))
	for _, entry := range candidates {
		locs := filterScope(entry.Locations, q.Scope)
		if len(locs) == 0 {
			continue
		}
		matches = append(matches, ranker.Match{
			Entry:     entry,
			Locations: locs,
			Exact:     q.Name != "" && entry.CanonicalKey == q.Name,
		})
	}
	span.SetAttr("matches", len(matches))
	return matches, nil
}

// filterScope keeps the locations whose scope contains qualifier. An empty
// qualifier keeps everything.
func filterScope(locs []index.Location, qualifier string) []index.Location {
	if qualifier == "" {
		return locs
	}
	var kept []index.Location
	for _, loc := range locs {
		if strings.Contains(parser.ScopeKey(loc.Scope), qualifier) {
			kept = append(kept, loc)
		}
	}
	return kept
}
