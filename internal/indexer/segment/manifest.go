package segment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
)

// CurrentBlobName holds the id of the generation readers should serve.
const CurrentBlobName = "CURRENT"

const manifestFile = "manifest.json"

// ShardBlobName returns the blob name of one shard within a generation.
func ShardBlobName(gen, key string) string {
	return gen + "/" + key + ".spdx"
}

// ManifestBlobName returns the blob name of a generation's manifest.
func ManifestBlobName(gen string) string {
	return gen + "/" + manifestFile
}

func generationOf(name string) (string, bool) {
	gen, _, ok := strings.Cut(name, "/")
	return gen, ok && gen != ""
}

// ShardInfo describes one stored shard.
type ShardInfo struct {
	Key      string             `json:"key"`
	Blob     string             `json:"blob"`
	Entries  int                `json:"entries"`
	Size     int64              `json:"size"`
	Checksum uint64             `json:"checksum"`
	Filter   *bloom.BloomFilter `json:"filter,omitempty"`
}

// Manifest lists the shards of one generation. Buckets without entries are
// absent.
type Manifest struct {
	Generation  string      `json:"generation"`
	CreatedAt   time.Time   `json:"created_at"`
	NextID      uint64      `json:"next_id"`
	Compression Compression `json:"compression"`
	Entries     int         `json:"entries"`
	Shards      []ShardInfo `json:"shards"`
}

// Shard returns the info for key.
func (m *Manifest) Shard(key string) (ShardInfo, bool) {
	for _, s := range m.Shards {
		if s.Key == key {
			return s, true
		}
	}
	return ShardInfo{}, false
}

// ReadCurrent returns the generation the CURRENT pointer names.
func ReadCurrent(ctx context.Context, store blobstore.Store) (string, error) {
	data, err := store.Get(ctx, CurrentBlobName)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", CurrentBlobName, err)
	}
	gen := strings.TrimSpace(string(data))
	if gen == "" {
		return "", fmt.Errorf("%s pointer is empty", CurrentBlobName)
	}
	return gen, nil
}

// ReadManifest loads the manifest of gen.
func ReadManifest(ctx context.Context, store blobstore.Store, gen string) (*Manifest, error) {
	data, err := store.Get(ctx, ManifestBlobName(gen))
	if err != nil {
		return nil, fmt.Errorf("reading manifest of %s: %w", gen, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest of %s: %w", gen, err)
	}
	if m.Generation != gen {
		return nil, fmt.Errorf("manifest generation %q does not match %q", m.Generation, gen)
	}
	return &m, nil
}

// buildPrefixFilter adds every rune-aligned prefix of every key in the shard.
func buildPrefixFilter(shard *index.Shard, rate float64) *bloom.BloomFilter {
	n := 0
	for _, e := range shard.Entries {
		n += utf8.RuneCountInString(e.CanonicalKey)
	}
	if n == 0 {
		n = 1
	}
	f := bloom.NewWithEstimates(uint(n), rate)
	for _, e := range shard.Entries {
		key := e.CanonicalKey
		for i := range key {
			if i > 0 {
				f.AddString(key[:i])
			}
		}
		f.AddString(key)
	}
	return f
}
