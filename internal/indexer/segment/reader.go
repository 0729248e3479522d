package segment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/resilience"
)

// ErrCorrupt marks a shard blob that fails header, checksum or ordering
// checks.
var ErrCorrupt = errors.New("corrupt shard blob")

// Decode parses a shard blob written by Encode and validates it.
func Decode(key string, data []byte) (*index.Shard, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	h := parseHeader(data[:HeaderSize])
	if h.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	stored := data[HeaderSize:]
	if uint64(len(stored)) != h.StoredLen {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(stored), h.StoredLen)
	}
	if sum := xxhash.Sum64(stored); sum != h.Checksum {
		return nil, fmt.Errorf("%w: checksum %x, header says %x", ErrCorrupt, sum, h.Checksum)
	}
	raw, err := decompress(stored, h.Compression, int(h.RawLen))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	var entries []index.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding entries: %w", ErrCorrupt, err)
	}
	if len(entries) != int(h.EntryCount) {
		return nil, fmt.Errorf("%w: %d entries, header says %d", ErrCorrupt, len(entries), h.EntryCount)
	}
	shard := &index.Shard{Key: key, Entries: entries}
	if err := shard.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return shard, nil
}

// BlobLoader loads the shards of one generation from a blob store.
type BlobLoader struct {
	store    blobstore.Store
	manifest *Manifest
	backoff  resilience.Backoff
	logger   *slog.Logger
}

// OpenGeneration reads the manifest of gen and returns a loader for it. An
// empty gen follows the CURRENT pointer.
func OpenGeneration(ctx context.Context, store blobstore.Store, gen string, attempts int) (*BlobLoader, error) {
	if gen == "" {
		var err error
		if gen, err = ReadCurrent(ctx, store); err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrIndexUnavailable, err)
		}
	}
	m, err := ReadManifest(ctx, store, gen)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIndexUnavailable, err)
	}
	return NewBlobLoader(store, m, attempts), nil
}

// NewBlobLoader returns a loader for the generation described by m.
func NewBlobLoader(store blobstore.Store, m *Manifest, attempts int) *BlobLoader {
	return &BlobLoader{
		store:    store,
		manifest: m,
		backoff:  resilience.Backoff{Attempts: attempts, Initial: 20 * time.Millisecond},
		logger:   slog.Default().With("component", "blob-loader", "generation", m.Generation),
	}
}

// Manifest returns the manifest the loader serves.
func (l *BlobLoader) Manifest() *Manifest {
	return l.manifest
}

// Generation returns the id of the generation the loader serves.
func (l *BlobLoader) Generation() string {
	return l.manifest.Generation
}

// Has reports whether the generation stored a shard for key.
func (l *BlobLoader) Has(key string) bool {
	_, ok := l.manifest.Shard(key)
	return ok
}

// MayContain reports whether some key in shard key could start with prefix.
// A false answer is definite.
func (l *BlobLoader) MayContain(key, prefix string) bool {
	info, ok := l.manifest.Shard(key)
	if !ok {
		return false
	}
	if info.Filter == nil || prefix == "" {
		return true
	}
	return info.Filter.TestString(prefix)
}

// Load fetches and decodes the shard for key. Transient store errors are
// retried; a missing or corrupt blob is not.
func (l *BlobLoader) Load(ctx context.Context, key string) (*index.Shard, error) {
	info, ok := l.manifest.Shard(key)
	if !ok {
		return nil, fmt.Errorf("shard %q: %w", key, blobstore.ErrNotFound)
	}
	start := time.Now()
	var shard *index.Shard
	err := resilience.Retry(ctx, "load shard "+key, l.backoff, func(ctx context.Context) error {
		data, err := l.store.Get(ctx, info.Blob)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return resilience.Permanent(err)
			}
			return err
		}
		if sum := xxhash.Sum64(data); sum != info.Checksum {
			return resilience.Permanent(fmt.Errorf("%w: blob checksum %x, manifest says %x", ErrCorrupt, sum, info.Checksum))
		}
		s, err := Decode(key, data)
		if err != nil {
			return resilience.Permanent(err)
		}
		shard = s
		return nil
	})
	if err != nil {
		l.logger.Error("shard load failed", "shard", key, "blob", info.Blob, "error", err)
		return nil, err
	}
	l.logger.Debug("shard loaded", "shard", key, "entries", shard.Len(), "duration", time.Since(start))
	return shard, nil
}
