package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory S3API keyed by bucket/key
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	out := &s3.ListObjectsV2Output{}
	for k := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func TestS3Storage(t *testing.T) {
	ctx := context.Background()

	t.Run("Write Then Read Under Prefix", func(t *testing.T) {
		fake := newFakeS3()
		s := NewS3StorageWithClient(fake, "bucket", "/team-a/")

		require.NoError(t, WriteBytes(ctx, s, "notes.json", []byte(`{"notes": []}`)))
		assert.Contains(t, fake.objects, "team-a/notes.json")

		got, err := ReadBytes(ctx, s, "notes.json")
		require.NoError(t, err)
		assert.Equal(t, `{"notes": []}`, string(got))
	})

	t.Run("Missing Object", func(t *testing.T) {
		s := NewS3StorageWithClient(newFakeS3(), "bucket", "")

		_, err := s.Read(ctx, "missing.json")
		assert.True(t, errors.Is(err, ErrNotFound))

		ok, err := s.Exists(ctx, "missing.json")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Exists And Delete", func(t *testing.T) {
		s := NewS3StorageWithClient(newFakeS3(), "bucket", "")
		require.NoError(t, WriteBytes(ctx, s, "notes.json", []byte("{}")))

		ok, err := s.Exists(ctx, "notes.json")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, s.Delete(ctx, "notes.json"))
		ok, err = s.Exists(ctx, "notes.json")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("List", func(t *testing.T) {
		fake := newFakeS3()
		s := NewS3StorageWithClient(fake, "bucket", "team-a")
		require.NoError(t, WriteBytes(ctx, s, "b.json", []byte("{}")))
		require.NoError(t, WriteBytes(ctx, s, "a.json", []byte("{}")))
		require.NoError(t, WriteBytes(ctx, s, "notes.txt", []byte("{}")))
		fake.objects["team-b/c.json"] = []byte("{}")

		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.json", "b.json"}, names)
	})
}
