package segment

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
)

// MagicBytes identifies a valid .spdx shard blob.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint16 = 2
	HeaderSize    int    = 32
)

// SegmentHeader is the 32-byte little-endian header in front of every shard
// payload.
type SegmentHeader struct {
	Magic       uint32
	Version     uint16
	Compression Compression
	EntryCount  uint32
	RawLen      uint32
	StoredLen   uint64
	Checksum    uint64
}

func (h SegmentHeader) marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = byte(h.Compression)
	binary.LittleEndian.PutUint32(buf[8:12], h.EntryCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.RawLen)
	binary.LittleEndian.PutUint64(buf[16:24], h.StoredLen)
	binary.LittleEndian.PutUint64(buf[24:32], h.Checksum)
	return buf
}

func parseHeader(buf []byte) SegmentHeader {
	return SegmentHeader{
		Magic:       binary.LittleEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		Compression: Compression(buf[6]),
		EntryCount:  binary.LittleEndian.Uint32(buf[8:12]),
		RawLen:      binary.LittleEndian.Uint32(buf[12:16]),
		StoredLen:   binary.LittleEndian.Uint64(buf[16:24]),
		Checksum:    binary.LittleEndian.Uint64(buf[24:32]),
	}
}

// Encode serializes a shard: header followed by the JSON entry array,
// compressed when that makes it smaller.
func Encode(shard *index.Shard, c Compression) ([]byte, error) {
	entries := shard.Entries
	if entries == nil {
		entries = []index.Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshaling shard %q: %w", shard.Key, err)
	}
	stored, used, err := compress(raw, c)
	if err != nil {
		return nil, fmt.Errorf("compressing shard %q: %w", shard.Key, err)
	}
	header := SegmentHeader{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		Compression: used,
		EntryCount:  uint32(len(entries)),
		RawLen:      uint32(len(raw)),
		StoredLen:   uint64(len(stored)),
		Checksum:    xxhash.Sum64(stored),
	}
	out := make([]byte, 0, HeaderSize+len(stored))
	out = append(out, header.marshal()...)
	out = append(out, stored...)
	return out, nil
}

// Writer persists build results as one blob per shard plus a manifest, and
// then moves the CURRENT pointer to the new generation.
type Writer struct {
	store       blobstore.Store
	compression Compression
	bloomRate   float64
	logger      *slog.Logger
}

// NewWriter returns a Writer. A bloomRate of zero disables prefix filters.
func NewWriter(store blobstore.Store, c Compression, bloomRate float64) *Writer {
	return &Writer{
		store:       store,
		compression: c,
		bloomRate:   bloomRate,
		logger:      slog.Default().With("component", "segment-writer"),
	}
}

// Write stores every shard of result concurrently, then the manifest, then
// the CURRENT pointer. Readers following CURRENT never see a generation whose
// shards are not all in place.
func (w *Writer) Write(ctx context.Context, result *indexer.Result) (*Manifest, error) {
	gen := result.Generation.String()
	keys := make([]string, 0, len(result.Shards))
	for key := range result.Shards {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	infos := make([]ShardInfo, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			shard := result.Shards[key]
			data, err := Encode(shard, w.compression)
			if err != nil {
				return err
			}
			name := ShardBlobName(gen, key)
			if err := w.store.Put(gctx, name, data); err != nil {
				return fmt.Errorf("writing shard %q: %w", key, err)
			}
			info := ShardInfo{
				Key:      key,
				Blob:     name,
				Entries:  shard.Len(),
				Size:     int64(len(data)),
				Checksum: xxhash.Sum64(data),
			}
			if w.bloomRate > 0 {
				info.Filter = buildPrefixFilter(shard, w.bloomRate)
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		Generation:  gen,
		CreatedAt:   result.BuiltAt,
		NextID:      result.Summary.NextID,
		Compression: w.compression,
		Entries:     result.Summary.Entries,
		Shards:      infos,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := w.store.Put(ctx, ManifestBlobName(gen), data); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}
	if err := w.store.Put(ctx, CurrentBlobName, []byte(gen)); err != nil {
		return nil, fmt.Errorf("updating %s pointer: %w", CurrentBlobName, err)
	}
	w.logger.Info("generation written",
		"generation", gen,
		"shards", len(infos),
		"entries", manifest.Entries,
		"compression", w.compression,
	)
	return manifest, nil
}

// Prune deletes every generation except keep. It returns the number of
// blobs removed.
func (w *Writer) Prune(ctx context.Context, keep string) (int, error) {
	names, err := w.store.List(ctx, "")
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		gen, ok := generationOf(name)
		if !ok || gen == keep {
			continue
		}
		if err := w.store.Delete(ctx, name); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		w.logger.Info("old generations pruned", "kept", keep, "blobs_removed", removed)
	}
	return removed, nil
}
