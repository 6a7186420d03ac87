package storage

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fake
// =============================================================================

type fakeS3 struct {
	buckets   map[string]bool
	objects   map[string][]byte
	headErr   error
	createErr error
	creates   int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if !f.buckets[*in.Bucket] {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.buckets[*in.Bucket] = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

// =============================================================================
// Bucket Tests
// =============================================================================

func TestEnsureBucket_CreatesOnce(t *testing.T) {
	fake := newFakeS3()
	s := NewWithAPI(fake, nil)

	created, err := s.EnsureBucket(context.Background(), "agentkit-abc")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureBucket(context.Background(), "agentkit-abc")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, fake.creates)
}

func TestEnsureBucket_OwnedByYou(t *testing.T) {
	fake := newFakeS3()
	fake.createErr = &smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"}

	created, err := NewWithAPI(fake, nil).EnsureBucket(context.Background(), "b")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureBucket_Errors(t *testing.T) {
	fake := newFakeS3()
	fake.headErr = &smithy.GenericAPIError{Code: "Forbidden"}
	_, err := NewWithAPI(fake, nil).EnsureBucket(context.Background(), "b")
	assert.Error(t, err)

	fake = newFakeS3()
	fake.createErr = errors.New("network down")
	_, err = NewWithAPI(fake, nil).EnsureBucket(context.Background(), "b")
	assert.ErrorContains(t, err, "network down")
}

// =============================================================================
// Upload Tests
// =============================================================================

func TestUpload(t *testing.T) {
	fake := newFakeS3()
	s := NewWithAPI(fake, nil)

	require.NoError(t, s.Upload(context.Background(), "b", "builds/a.tar.gz", []byte("data")))
	assert.Equal(t, []byte("data"), fake.objects["b/builds/a.tar.gz"])
}

func TestPackSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print(1)"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref"), 0o644))

	data, err := PackSource(dir, []string{".git"})
	require.NoError(t, err)

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	var names []string
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, h.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"main.py"}, names)
}

func TestDefaultEndpoint(t *testing.T) {
	assert.Equal(t, "https://tos-s3-cn-beijing.volces.com", DefaultEndpoint("cn-beijing"))
}
