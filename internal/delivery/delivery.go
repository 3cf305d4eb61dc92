// Package delivery moves staged files into object storage, choosing a direct
// PUT or a chunked multipart session per file by size, and turns the results
// into public URLs.
package delivery

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/your-org/mediaforge/internal/fault"
	"github.com/your-org/mediaforge/pkg/storage/objectstore"
)

// Target describes where a batch of files lands. It is serialized into async
// job documents, so it carries everything needed to retry delivery later.
type Target struct {
	Bucket           string `json:"bucket"`
	Region           string `json:"region,omitempty"`
	MaxAge           int    `json:"max_age,omitempty"`
	ACL              string `json:"acl,omitempty"`
	CDNURL           string `json:"cdn_url,omitempty"`
	CDNExcludePrefix string `json:"cdn_exclude_prefix,omitempty"`
}

// File is one staged upload: a local path bound to its object key.
type File struct {
	LocalPath   string `json:"local_path"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
}

// DefaultMaxAgeSeconds is applied when a target carries no max-age (one year).
const DefaultMaxAgeSeconds = 31536000

// Config tunes the uploader.
type Config struct {
	// PublicDomain is the store's public hostname, e.g. "s3.amazonaws.com".
	PublicDomain string
	// DefaultRegion is omitted from generated URLs.
	DefaultRegion string
	// DirectMaxBytes is the single-PUT ceiling; larger files go multipart.
	DirectMaxBytes int64
	// PartSizeBytes is the multipart chunk size.
	PartSizeBytes int64
}

// Uploader delivers staged files and owns them from the moment Deliver is
// called: each file is removed from disk after its successful upload.
type Uploader struct {
	store  objectstore.Client
	cfg    Config
	logger *zap.Logger
}

func NewUploader(store objectstore.Client, cfg Config, logger *zap.Logger) *Uploader {
	return &Uploader{store: store, cfg: cfg, logger: logger}
}

// Deliver uploads every file in order and returns one URL per file. Any
// failure aborts the batch; files already delivered stay in the store but
// their local copies are already gone.
func (u *Uploader) Deliver(ctx context.Context, target Target, files []File) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := u.deliverOne(ctx, target, f)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (u *Uploader) deliverOne(ctx context.Context, target Target, f File) (string, error) {
	info, err := os.Stat(f.LocalPath)
	if err != nil {
		return "", fault.Wrap(fault.KindStorage, err, "stat %s", f.LocalPath)
	}
	size := info.Size()

	opts := objectstore.PutOptions{
		ContentType:  f.ContentType,
		CacheControl: cacheControl(target.MaxAge),
		ACL:          target.ACL,
	}

	src, err := os.Open(f.LocalPath)
	if err != nil {
		return "", fault.Wrap(fault.KindStorage, err, "open %s", f.LocalPath)
	}

	strat := u.strategyFor(size)
	err = strat.upload(ctx, target.Bucket, f.Key, src, size, opts)
	src.Close()
	if err != nil {
		return "", err
	}

	u.logger.Info("object delivered",
		zap.String("bucket", target.Bucket),
		zap.String("key", f.Key),
		zap.Int64("size_bytes", size),
		zap.String("strategy", strat.name()))

	if err := os.Remove(f.LocalPath); err != nil && !os.IsNotExist(err) {
		u.logger.Warn("remove delivered file", zap.String("path", f.LocalPath), zap.Error(err))
	}

	url := objectURL(u.cfg.PublicDomain, target.Bucket, target.Region, u.cfg.DefaultRegion, f.Key)
	return rewriteCDN(url, target.CDNURL, target.CDNExcludePrefix), nil
}

// strategyFor keeps the size threshold policy in one place.
func (u *Uploader) strategyFor(size int64) uploadStrategy {
	if size > u.cfg.DirectMaxBytes {
		return &chunkedMultipart{store: u.store, partSize: u.cfg.PartSizeBytes}
	}
	return &directPut{store: u.store}
}

func cacheControl(maxAge int) string {
	if maxAge <= 0 {
		maxAge = DefaultMaxAgeSeconds
	}
	return fmt.Sprintf("max-age=%d", maxAge)
}
