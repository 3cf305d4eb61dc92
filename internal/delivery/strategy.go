package delivery

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/your-org/mediaforge/internal/fault"
	"github.com/your-org/mediaforge/pkg/storage/objectstore"
)

// uploadStrategy is the size-based dispatch seam: one implementation per
// delivery mode, selected by Uploader.strategyFor.
type uploadStrategy interface {
	upload(ctx context.Context, bucket, key string, r io.Reader, size int64, opts objectstore.PutOptions) error
	name() string
}

type directPut struct {
	store objectstore.Client
}

func (d *directPut) name() string { return "direct" }

func (d *directPut) upload(ctx context.Context, bucket, key string, r io.Reader, size int64, opts objectstore.PutOptions) error {
	if _, err := d.store.Put(ctx, bucket, key, r, size, opts); err != nil {
		return fault.Wrap(fault.KindStorage, err, "put %s/%s", bucket, key)
	}
	return nil
}

// chunkedMultipart streams the source in fixed-size chunks, holding one chunk
// buffer in memory at a time. A failed session is always aborted before the
// error propagates.
type chunkedMultipart struct {
	store    objectstore.Client
	partSize int64
}

func (c *chunkedMultipart) name() string { return "multipart" }

func (c *chunkedMultipart) upload(ctx context.Context, bucket, key string, r io.Reader, size int64, opts objectstore.PutOptions) error {
	uploadID, err := c.store.BeginMultipart(ctx, bucket, key, opts)
	if err != nil {
		return fault.Wrap(fault.KindStorage, err, "begin multipart %s/%s", bucket, key)
	}
	if uploadID == "" {
		return fault.New(fault.KindMultipartProtocol, "empty upload id for %s/%s", bucket, key)
	}

	var parts []objectstore.Part
	buf := make([]byte, c.partSize)
	for partNumber := 1; ; partNumber++ {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			part, err := c.store.UploadPart(ctx, bucket, key, uploadID, partNumber, bytes.NewReader(buf[:n]), int64(n))
			if err != nil {
				return c.abort(ctx, bucket, key, uploadID,
					fault.Wrap(fault.KindStorage, err, "upload part %d of %s/%s", partNumber, bucket, key))
			}
			if part.ETag == "" {
				return c.abort(ctx, bucket, key, uploadID,
					fault.New(fault.KindMultipartProtocol, "missing etag for part %d of %s/%s", partNumber, bucket, key))
			}
			parts = append(parts, part)
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return c.abort(ctx, bucket, key, uploadID,
				fault.Wrap(fault.KindStorage, readErr, "read chunk %d of %s/%s", partNumber, bucket, key))
		}
	}

	if _, err := c.store.CompleteMultipart(ctx, bucket, key, uploadID, parts); err != nil {
		return c.abort(ctx, bucket, key, uploadID,
			fault.Wrap(fault.KindStorage, err, "complete multipart %s/%s", bucket, key))
	}
	return nil
}

// abort discards the open session and returns cause; an abort failure is
// secondary and folded into the message.
func (c *chunkedMultipart) abort(ctx context.Context, bucket, key, uploadID string, cause error) error {
	if err := c.store.AbortMultipart(ctx, bucket, key, uploadID); err != nil {
		return fault.Wrap(fault.KindStorage, cause, "abort multipart after failure (%v)", err)
	}
	return cause
}
