package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	gcs "cloud.google.com/go/storage"
)

// GCSStorage is a Sync adapter over a Google Cloud Storage bucket. It
// carries a blob's checksum in the crc32MetadataKey object metadata
// entry (shared with S3Storage). GCS's own CRC32C property uses the
// Castagnoli polynomial, which never agrees with pkg/hashutil's IEEE
// CRC32 for the same bytes, so it cannot stand in for the checksum the
// rest of the pipeline computes and compares — the checksum recorded
// at Upload must be read back verbatim, the same self-consistent
// round trip the original Python adapter gets by stashing the cache's
// hash directly on the blob.
type GCSStorage struct {
	name   string
	bucket *gcs.BucketHandle
	prefix string
}

// NewGCSStorage returns a GCSStorage named name over bucket, with
// every object name prefixed by prefix (which may be empty).
func NewGCSStorage(name string, bucket *gcs.BucketHandle, prefix string) *GCSStorage {
	return &GCSStorage{name: name, bucket: bucket, prefix: prefix}
}

func (s *GCSStorage) Name() string { return s.name }

func (s *GCSStorage) object(storagePath string) string {
	if s.prefix == "" {
		return storagePath
	}
	return s.prefix + "/" + storagePath
}

func (s *GCSStorage) Copy(src, dst string) error {
	ctx := context.Background()
	srcObj := s.bucket.Object(s.object(src))
	dstObj := s.bucket.Object(s.object(dst))

	_, err := dstObj.CopierFrom(srcObj).Run(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: %s: %w", src, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage: copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (s *GCSStorage) Delete(storagePath string) error {
	ctx := context.Background()
	err := s.bucket.Object(s.object(storagePath)).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete %s: %w", storagePath, err)
	}
	return nil
}

func (s *GCSStorage) CRC32(storagePath string) (string, error) {
	ctx := context.Background()
	attrs, err := s.bucket.Object(s.object(storagePath)).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return "", fmt.Errorf("storage: %s: %w", storagePath, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("storage: attrs %s: %w", storagePath, err)
	}
	sum, ok := attrs.Metadata[crc32MetadataKey]
	if !ok {
		return "", fmt.Errorf("storage: object %s has no %s metadata: %w", storagePath, crc32MetadataKey, ErrNotFound)
	}
	return sum, nil
}

func (s *GCSStorage) Download(storagePath, cachePath string) error {
	ctx := context.Background()
	r, err := s.bucket.Object(s.object(storagePath)).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: %s: %w", storagePath, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage: open reader for %s: %w", storagePath, err)
	}
	defer r.Close()

	f, err := os.Create(cachePath)
	if err != nil {
		return fmt.Errorf("storage: create cache file %s: %w", cachePath, err)
	}
	defer f.Close()

	if _, err := f.ReadFrom(r); err != nil {
		return fmt.Errorf("storage: download %s: %w", storagePath, err)
	}
	return nil
}

func (s *GCSStorage) Upload(cachePath, storagePath, checksum string) error {
	f, err := os.Open(cachePath)
	if err != nil {
		return fmt.Errorf("storage: open cache file %s: %w", cachePath, err)
	}
	defer f.Close()

	ctx := context.Background()
	w := s.bucket.Object(s.object(storagePath)).NewWriter(ctx)
	w.Metadata = map[string]string{crc32MetadataKey: checksum}
	if _, err := w.ReadFrom(f); err != nil {
		w.Close()
		return fmt.Errorf("storage: upload %s: %w", storagePath, err)
	}
	return w.Close()
}
