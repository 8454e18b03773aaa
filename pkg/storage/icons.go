package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// IconStore stores portfolio icon blobs keyed by content hash.
type IconStore interface {
	// Put stores content and returns its reference.
	Put(ctx context.Context, content []byte, contentType string) (ref string, err error)
	// Get returns the blob for ref. A missing ref yields ErrIconNotFound.
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete removes the blob for ref. Deleting a missing ref is a no-op.
	Delete(ctx context.Context, ref string) error
	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// ErrIconNotFound reports a lookup for an unknown icon reference.
var ErrIconNotFound = fmt.Errorf("icon not found")

// hashRef derives the content-addressed reference for a blob.
func hashRef(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// objectKey shards a reference into a two-level key, sha256/ab/cdef...,
// to keep any one directory or prefix from growing unbounded.
func objectKey(ref string) string {
	if len(ref) < 3 {
		return "icons/sha256/" + ref
	}
	return fmt.Sprintf("icons/sha256/%s/%s", ref[:2], ref[2:])
}
