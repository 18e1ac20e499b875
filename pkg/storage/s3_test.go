package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

// fakeS3Client is a minimal in-memory stand-in for S3Client, letting
// S3Storage's checksum-as-metadata and not-found mapping be exercised
// without a real bucket.
type fakeS3Client struct {
	objects map[string][]byte
	meta    map[string]map[string]string
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (c *fakeS3Client) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	src := aws.ToString(in.CopySource)
	// CopySource is "bucket/key"; strip the bucket prefix this test never varies.
	idx := len(aws.ToString(in.Bucket)) + 1
	if len(src) < idx {
		return nil, &types.NoSuchKey{}
	}
	key := src[idx:]
	body, ok := c.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	dst := aws.ToString(in.Key)
	c.objects[dst] = append([]byte(nil), body...)
	c.meta[dst] = c.meta[key]
	return &s3.CopyObjectOutput{}, nil
}

func (c *fakeS3Client) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(c.objects, aws.ToString(in.Key))
	delete(c.meta, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (c *fakeS3Client) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := c.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: &readCloser{body}}, nil
}

func (c *fakeS3Client) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := c.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: c.meta[aws.ToString(in.Key)]}, nil
}

func (c *fakeS3Client) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body := make([]byte, 0)
	buf := make([]byte, 4096)
	for {
		n, err := in.Body.Read(buf)
		body = append(body, buf[:n]...)
		if err != nil {
			break
		}
	}
	key := aws.ToString(in.Key)
	c.objects[key] = body
	c.meta[key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

type readCloser struct{ b []byte }

func (r *readCloser) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}

func (r *readCloser) Close() error { return nil }

func TestS3UploadThenDownloadRoundTrips(t *testing.T) {
	client := newFakeS3Client()
	s := NewS3Storage("s3", client, "bucket", "")

	cacheFile := t.TempDir() + "/data"
	require.NoError(t, os.WriteFile(cacheFile, []byte("hi!"), 0o644))

	require.NoError(t, s.Upload(cacheFile, "sp1", "41D3833A"))

	sum, err := s.CRC32("sp1")
	require.NoError(t, err)
	require.Equal(t, "41D3833A", sum)

	downloaded := t.TempDir() + "/data"
	require.NoError(t, s.Download("sp1", downloaded))

	got, err := os.ReadFile(downloaded)
	require.NoError(t, err)
	require.Equal(t, "hi!", string(got))
}

func TestS3CRC32MissingObjectReturnsNotFound(t *testing.T) {
	s := NewS3Storage("s3", newFakeS3Client(), "bucket", "")

	_, err := s.CRC32("missing")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestS3CopyDuplicatesObjectAndMetadata(t *testing.T) {
	client := newFakeS3Client()
	s := NewS3Storage("s3", client, "bucket", "")
	cacheFile := t.TempDir() + "/data"
	require.NoError(t, os.WriteFile(cacheFile, []byte("hi!"), 0o644))
	require.NoError(t, s.Upload(cacheFile, "sp1", "41D3833A"))

	require.NoError(t, s.Copy("sp1", "sp2"))

	sum, err := s.CRC32("sp2")
	require.NoError(t, err)
	require.Equal(t, "41D3833A", sum)
}

func TestS3DeleteIsIdempotent(t *testing.T) {
	s := NewS3Storage("s3", newFakeS3Client(), "bucket", "")
	require.NoError(t, s.Delete("never-existed"))
}

func TestS3CRC32MissingMetadataReturnsNotFound(t *testing.T) {
	client := newFakeS3Client()
	client.objects["sp1"] = []byte("hi!")
	client.meta["sp1"] = map[string]string{}

	s := NewS3Storage("s3", client, "bucket", "")
	_, err := s.CRC32("sp1")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))
}
