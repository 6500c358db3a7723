// Package blobstore stores reference images (from imagine()); gallery
// thumbnails are not stored here. Grounded on pkg/storage/minio.go's MinIO wrapper
// but instantiated rather than global and with a filesystem fallback
// so a single-box deployment needs no object store (SPEC_FULL domain
// stack: blobstore).
package blobstore

import "context"

// Store puts and fetches opaque blobs addressed by key (typically
// "<userID>/<name>.png").
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}
