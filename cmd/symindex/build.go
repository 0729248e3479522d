package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
)

// Run executes the build command: load the catalog, build, write the
// generation, record it, then announce it.
func (c *BuildCmd) Run(deps *Dependencies) error {
	ctx := deps.Ctx
	cfg := deps.Config

	var source catalog.Source
	switch {
	case c.Catalog != "":
		source = catalog.FileSource{Path: c.Catalog}
	case deps.Catalog != nil:
		source = deps.Catalog
	default:
		return errors.New("no catalog: pass a catalog file or configure postgres.host")
	}

	compression := cfg.Builder.Compression
	if c.Compression != "" {
		compression = c.Compression
	}
	codec, err := segment.ParseCompression(compression)
	if err != nil {
		return err
	}

	records, err := source.Load(ctx)
	if err != nil {
		return err
	}
	if c.Import {
		if c.Catalog == "" || deps.Catalog == nil {
			return errors.New("--import needs a catalog file and postgres.host")
		}
		if err := deps.Catalog.Insert(ctx, records); err != nil {
			return fmt.Errorf("importing catalog: %w", err)
		}
		slog.Info("catalog imported", "records", len(records))
	}
	start, err := firstID(ctx, deps)
	if err != nil {
		return err
	}

	result, err := indexer.NewBuilder(indexer.NewSequence(start)).Build(records)
	if err != nil {
		deps.Metrics.ObserveBuild(0, len(records))
		return err
	}
	deps.Metrics.ObserveBuild(result.Summary.Accepted, len(result.Summary.Rejected))
	for _, r := range result.Summary.Rejected {
		fmt.Fprintf(deps.Stderr, "skipped: %s\n", r.Error())
	}

	writer := segment.NewWriter(deps.Blobs, codec, cfg.Builder.BloomFalsePositiveRate)
	manifest, err := writer.Write(ctx, result)
	if err != nil {
		return err
	}
	gen := manifest.Generation

	if deps.Catalog != nil {
		if err := deps.Catalog.RecordBuild(ctx, result); err != nil {
			return err
		}
	}
	if c.Prune {
		if _, err := writer.Prune(ctx, gen); err != nil {
			return fmt.Errorf("pruning old generations: %w", err)
		}
	}
	if deps.Publisher != nil && !c.NoPublish {
		if err := deps.Publisher.Publish(ctx, gen, result.Event()); err != nil {
			// The generation is already CURRENT; searchers watching the
			// pointer still pick it up.
			slog.Warn("build event not published", "generation", gen, "error", err)
		}
	}
	if c.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(c.MetricsTextfile, deps.Registry); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	s := result.Summary
	fmt.Fprintf(deps.Stdout, "generation %s\n", gen)
	fmt.Fprintf(deps.Stdout, "  records %d, accepted %d, rejected %d\n", s.Records, s.Accepted, len(s.Rejected))
	fmt.Fprintf(deps.Stdout, "  entries %d in %d shards, ids %d-%d\n", s.Entries, s.Shards, s.FirstID, s.NextID)
	fmt.Fprintf(deps.Stdout, "  compression %s, took %s\n", manifest.Compression, s.Duration)
	return nil
}

// firstID picks the first id of a build so that no earlier build's ids are
// reissued: the highest of the configured base, the last recorded build and
// the current manifest.
func firstID(ctx context.Context, deps *Dependencies) (uint64, error) {
	start := deps.Config.Builder.IDBase
	if deps.Catalog != nil {
		next, err := deps.Catalog.NextID(ctx)
		if err != nil {
			return 0, err
		}
		start = max(start, next)
	}
	gen, err := segment.ReadCurrent(ctx, deps.Blobs)
	if errors.Is(err, blobstore.ErrNotFound) {
		return start, nil
	}
	if err != nil {
		return 0, err
	}
	manifest, err := segment.ReadManifest(ctx, deps.Blobs, gen)
	if err != nil {
		return 0, err
	}
	return max(start, manifest.NextID), nil
}
