package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// crc32MetadataKey is the object user-metadata key S3Storage and
// GCSStorage use to carry a blob's checksum, set at upload time and
// read back by CRC32.
const crc32MetadataKey = "crc32"

// S3Client is the subset of *s3.Client this adapter calls, so tests
// can substitute a fake without spinning up real AWS infrastructure.
type S3Client interface {
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage is a Sync adapter over an S3-compatible bucket. Its
// checksum is stored as the object's "crc32" user metadata, set at
// upload time and read back on CRC32.
type S3Storage struct {
	name   string
	client S3Client
	bucket string
	prefix string
}

// NewS3Storage returns an S3Storage named name, against bucket, with
// every object key prefixed by prefix (which may be empty).
func NewS3Storage(name string, client S3Client, bucket, prefix string) *S3Storage {
	return &S3Storage{name: name, client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Storage) Name() string { return s.name }

func (s *S3Storage) key(storagePath string) string {
	if s.prefix == "" {
		return storagePath
	}
	return s.prefix + "/" + storagePath
}

func (s *S3Storage) Copy(src, dst string) error {
	ctx := context.Background()
	source := fmt.Sprintf("%s/%s", s.bucket, s.key(src))
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(source),
		Key:        aws.String(s.key(dst)),
	})
	if isS3NotFound(err) {
		return fmt.Errorf("storage: %s: %w", src, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage: copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (s *S3Storage) Delete(storagePath string) error {
	ctx := context.Background()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(storagePath)),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", storagePath, err)
	}
	return nil
}

func (s *S3Storage) CRC32(storagePath string) (string, error) {
	ctx := context.Background()
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(storagePath)),
	})
	if isS3NotFound(err) {
		return "", fmt.Errorf("storage: %s: %w", storagePath, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("storage: head %s: %w", storagePath, err)
	}
	sum, ok := out.Metadata[crc32MetadataKey]
	if !ok {
		return "", fmt.Errorf("storage: object %s has no %s metadata: %w", storagePath, crc32MetadataKey, ErrNotFound)
	}
	return sum, nil
}

func (s *S3Storage) Download(storagePath, cachePath string) error {
	ctx := context.Background()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(storagePath)),
	})
	if isS3NotFound(err) {
		return fmt.Errorf("storage: %s: %w", storagePath, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage: get %s: %w", storagePath, err)
	}
	defer out.Body.Close()

	f, err := os.Create(cachePath)
	if err != nil {
		return fmt.Errorf("storage: create cache file %s: %w", cachePath, err)
	}
	defer f.Close()

	if _, err := f.ReadFrom(out.Body); err != nil {
		return fmt.Errorf("storage: download %s: %w", storagePath, err)
	}
	return nil
}

func (s *S3Storage) Upload(cachePath, storagePath, checksum string) error {
	f, err := os.Open(cachePath)
	if err != nil {
		return fmt.Errorf("storage: open cache file %s: %w", cachePath, err)
	}
	defer f.Close()

	ctx := context.Background()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key(storagePath)),
		Body:     f,
		Metadata: map[string]string{crc32MetadataKey: checksum},
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", storagePath, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NoSuchKey
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchBucket *types.NotFound
	return errors.As(err, &noSuchBucket)
}
