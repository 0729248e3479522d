// Package blobstore abstracts where immutable index blobs (shard segments and
// manifests) are kept. Implementations must be safe for concurrent use.
//
// Built-in implementations:
//
//   - LocalStore: a directory on the local filesystem
//   - MemoryStore: an in-process map, for tests and one-shot tooling
//   - minio.Store: MinIO and other S3-compatible object stores
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist. Implementations return
// an error satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// Store reads and writes whole blobs by name. Names use forward slashes.
type Store interface {
	// Get returns the full contents of a blob.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put writes a blob atomically, replacing any previous contents.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
