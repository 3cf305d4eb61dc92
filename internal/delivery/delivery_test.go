package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/mediaforge/internal/fault"
	"github.com/your-org/mediaforge/pkg/storage/objectstore"
)

type putCall struct {
	bucket, key string
	size        int64
	opts        objectstore.PutOptions
	body        []byte
}

type fakeStore struct {
	puts        []putCall
	putErr      error
	beginCalls  int
	uploadID    string
	partBodies  [][]byte
	partErrAt   int
	completed   bool
	aborted     bool
	missingETag bool
}

func (f *fakeStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, opts objectstore.PutOptions) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	body, _ := io.ReadAll(r)
	f.puts = append(f.puts, putCall{bucket: bucket, key: key, size: size, opts: opts, body: body})
	return "etag", nil
}

func (f *fakeStore) BeginMultipart(ctx context.Context, bucket, key string, opts objectstore.PutOptions) (string, error) {
	f.beginCalls++
	return f.uploadID, nil
}

func (f *fakeStore) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, r io.Reader, size int64) (objectstore.Part, error) {
	if f.partErrAt > 0 && partNumber == f.partErrAt {
		return objectstore.Part{}, errors.New("part upload refused")
	}
	body, _ := io.ReadAll(r)
	f.partBodies = append(f.partBodies, body)
	if f.missingETag {
		return objectstore.Part{Number: partNumber}, nil
	}
	return objectstore.Part{Number: partNumber, ETag: fmt.Sprintf("etag-%d", partNumber)}, nil
}

func (f *fakeStore) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []objectstore.Part) (string, error) {
	f.completed = true
	return "etag", nil
}

func (f *fakeStore) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	f.aborted = true
	return nil
}

func (f *fakeStore) Close() error { return nil }

func newTestUploader(store objectstore.Client) *Uploader {
	return NewUploader(store, Config{
		PublicDomain:   "s3.amazonaws.com",
		DefaultRegion:  "us-east-1",
		DirectMaxBytes: 16,
		PartSizeBytes:  8,
	}, zap.NewNop())
}

func stageFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	data := bytes.Repeat([]byte{0xAB}, size)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDeliverSmallFileUsesSinglePut(t *testing.T) {
	store := &fakeStore{uploadID: "u1"}
	u := newTestUploader(store)

	path := stageFile(t, "small.jpg", 10)
	urls, err := u.Deliver(context.Background(), Target{Bucket: "media"}, []File{
		{LocalPath: path, Key: "uploads/small.jpg", ContentType: "image/jpeg"},
	})
	require.NoError(t, err)

	require.Len(t, store.puts, 1)
	assert.Zero(t, store.beginCalls)
	assert.Equal(t, int64(10), store.puts[0].size)
	assert.Equal(t, "image/jpeg", store.puts[0].opts.ContentType)
	assert.Equal(t, "max-age=31536000", store.puts[0].opts.CacheControl)

	require.Len(t, urls, 1)
	assert.Equal(t, "https://media.s3.amazonaws.com/uploads/small.jpg", urls[0])

	// Ownership transferred: local copy is gone after delivery.
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDeliverLargeFileUsesMultipart(t *testing.T) {
	store := &fakeStore{uploadID: "u1"}
	u := newTestUploader(store)

	path := stageFile(t, "big.bin", 20) // over the 16-byte direct ceiling
	_, err := u.Deliver(context.Background(), Target{Bucket: "media"}, []File{
		{LocalPath: path, Key: "uploads/big.bin", ContentType: "application/octet-stream"},
	})
	require.NoError(t, err)

	assert.Empty(t, store.puts)
	assert.Equal(t, 1, store.beginCalls)
	assert.True(t, store.completed)
	assert.False(t, store.aborted)

	// Chunks concatenate back to the original byte stream.
	total := 0
	for _, body := range store.partBodies {
		total += len(body)
	}
	assert.Equal(t, 20, total)
	require.Len(t, store.partBodies, 3)
	assert.Len(t, store.partBodies[0], 8)
	assert.Len(t, store.partBodies[2], 4)
}

func TestDeliverMultipartAbortsOnPartFailure(t *testing.T) {
	store := &fakeStore{uploadID: "u1", partErrAt: 2}
	u := newTestUploader(store)

	path := stageFile(t, "big.bin", 20)
	_, err := u.Deliver(context.Background(), Target{Bucket: "media"}, []File{
		{LocalPath: path, Key: "uploads/big.bin"},
	})
	require.Error(t, err)
	assert.Equal(t, fault.KindStorage, fault.KindOf(err))
	assert.True(t, store.aborted)
	assert.False(t, store.completed)
}

func TestDeliverMultipartMissingETagIsProtocolError(t *testing.T) {
	store := &fakeStore{uploadID: "u1", missingETag: true}
	u := newTestUploader(store)

	path := stageFile(t, "big.bin", 20)
	_, err := u.Deliver(context.Background(), Target{Bucket: "media"}, []File{
		{LocalPath: path, Key: "uploads/big.bin"},
	})
	require.Error(t, err)
	assert.Equal(t, fault.KindMultipartProtocol, fault.KindOf(err))
	assert.True(t, store.aborted)
}

func TestDeliverMultipartEmptyUploadID(t *testing.T) {
	store := &fakeStore{uploadID: ""}
	u := newTestUploader(store)

	path := stageFile(t, "big.bin", 20)
	_, err := u.Deliver(context.Background(), Target{Bucket: "media"}, []File{
		{LocalPath: path, Key: "uploads/big.bin"},
	})
	require.Error(t, err)
	assert.Equal(t, fault.KindMultipartProtocol, fault.KindOf(err))
}

func TestDeliverAppliesACLAndMaxAge(t *testing.T) {
	store := &fakeStore{}
	u := newTestUploader(store)

	path := stageFile(t, "small.jpg", 4)
	_, err := u.Deliver(context.Background(), Target{Bucket: "media", MaxAge: 600, ACL: "public-read"}, []File{
		{LocalPath: path, Key: "a.jpg", ContentType: "image/jpeg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "max-age=600", store.puts[0].opts.CacheControl)
	assert.Equal(t, "public-read", store.puts[0].opts.ACL)
}

func TestDeliverRewritesToCDN(t *testing.T) {
	store := &fakeStore{}
	u := newTestUploader(store)

	path := stageFile(t, "small.jpg", 4)
	urls, err := u.Deliver(context.Background(), Target{
		Bucket: "media",
		CDNURL: "https://cdn.example.com",
	}, []File{{LocalPath: path, Key: "uploads/small.jpg", ContentType: "image/jpeg"}})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/uploads/small.jpg", urls[0])
}

func TestDeliverMissingLocalFile(t *testing.T) {
	u := newTestUploader(&fakeStore{})
	_, err := u.Deliver(context.Background(), Target{Bucket: "media"}, []File{
		{LocalPath: filepath.Join(t.TempDir(), "missing.bin"), Key: "k"},
	})
	require.Error(t, err)
	assert.Equal(t, fault.KindStorage, fault.KindOf(err))
}
