// Package ingest is the pipeline orchestrator: per incoming file it resolves
// the object's profile, validates, transforms, and either delivers to object
// storage synchronously or parks the upload as an async job.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/your-org/mediaforge/internal/delivery"
	"github.com/your-org/mediaforge/internal/fault"
	"github.com/your-org/mediaforge/internal/img"
	"github.com/your-org/mediaforge/internal/jobs"
	"github.com/your-org/mediaforge/internal/profile"
)

// IncomingFile is one staged upload owned by the orchestrator for the
// duration of the request. Ownership passes to the uploader on delivery; on
// failure every path produced for the request is deleted before returning.
type IncomingFile struct {
	LocalPath        string
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
}

// Result is returned to the caller. Sync requests carry URLs (one per
// delivered file) and the display ratio; async requests carry the job ID and
// the would-be object key of the source.
type Result struct {
	Async bool
	URLs  []string
	Ratio string
	JobID string
	Key   string
}

// Deliverer is the storage uploader as the orchestrator sees it.
type Deliverer interface {
	Deliver(ctx context.Context, target delivery.Target, files []delivery.File) ([]string, error)
}

// Waker starts the async worker when a job lands in the queue.
type Waker interface {
	EnsureRunning()
}

// Publisher emits media lifecycle events; nil disables eventing.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

// Service wires resolver, transform engine, uploader, and job queue together.
type Service struct {
	resolver   *profile.Resolver
	engine     *img.Engine
	deliverer  Deliverer
	jobs       jobs.Store
	waker      Waker
	publisher  Publisher
	logger     *zap.Logger
	aspectMaxW int
	aspectMaxH int
}

type Params struct {
	Resolver  *profile.Resolver
	Engine    *img.Engine
	Deliverer Deliverer
	Jobs      jobs.Store
	Waker     Waker
	Publisher Publisher
	Logger    *zap.Logger
	// AspectMaxW/H bound the nearest-ratio search; zero selects the defaults.
	AspectMaxW int
	AspectMaxH int
}

func NewService(p Params) *Service {
	if p.AspectMaxW <= 0 {
		p.AspectMaxW = img.DefaultAspectMaxW
	}
	if p.AspectMaxH <= 0 {
		p.AspectMaxH = img.DefaultAspectMaxH
	}
	return &Service{
		resolver:   p.Resolver,
		engine:     p.Engine,
		deliverer:  p.Deliverer,
		jobs:       p.Jobs,
		waker:      p.Waker,
		publisher:  p.Publisher,
		logger:     p.Logger,
		aspectMaxW: p.AspectMaxW,
		aspectMaxH: p.AspectMaxH,
	}
}

// Ingest runs the pipeline for one file. Stages are strictly sequential:
// resolve → mime check → tag rename → validate → transform → deliver/queue.
func (s *Service) Ingest(ctx context.Context, file IncomingFile, profileName, objectKey, tag string) (*Result, error) {
	ctx, span := otel.Tracer("ingest").Start(ctx, "ingest.pipeline")
	defer span.End()
	span.SetAttributes(
		attribute.String("media.profile", profileName),
		attribute.String("media.object", objectKey),
	)

	if file.LocalPath == "" {
		return nil, fault.New(fault.KindMissingFile, "no file provided")
	}

	// Tracked cleanup list: every path produced for this request, deleted on
	// any failure.
	produced := []string{file.LocalPath}
	fail := func(err error) (*Result, error) {
		s.removeAll(produced)
		return nil, err
	}

	prof, spec, err := s.resolver.Resolve(ctx, profileName, objectKey)
	if err != nil {
		return fail(err)
	}

	if !spec.AcceptsMime(file.MimeType) {
		return fail(fault.New(fault.KindFileNotSupported, "mime type %q not allowed for object %q", file.MimeType, objectKey))
	}

	// A non-zero tag renames the source before any transform, so derived
	// filenames inherit the new base name.
	if tag != "" && tag != "0" {
		renamed := filepath.Join(filepath.Dir(file.LocalPath), tag+filepath.Ext(file.LocalPath))
		if err := os.Rename(file.LocalPath, renamed); err != nil {
			return fail(fmt.Errorf("rename source to tag %q: %w", tag, err))
		}
		file.LocalPath = renamed
		produced[0] = renamed
	}

	isImage := strings.HasPrefix(file.MimeType, "image/")

	var ratio string
	if isImage {
		if err := img.Validate(file.LocalPath, spec.Constraints); err != nil {
			return fail(err)
		}
		ratio, err = img.NearestAspectRatio(file.LocalPath, s.aspectMaxW, s.aspectMaxH)
		if err != nil {
			return fail(fault.Wrap(fault.KindTransform, err, "compute aspect ratio"))
		}
	}

	files := []delivery.File{{
		LocalPath:   file.LocalPath,
		Key:         objectStorageKey(prof.Bucket.BasePath, spec.BucketPath, filepath.Base(file.LocalPath)),
		ContentType: file.MimeType,
	}}

	if isImage && (len(spec.Transforms) > 0 || spec.OutputFormat != "") {
		res, err := s.engine.Process(file.LocalPath, spec.Transforms, spec.OutputFormat)
		if res != nil {
			for _, d := range res.Derived {
				produced = append(produced, d.LocalPath)
			}
		}
		if err != nil {
			return fail(err)
		}
		files[0].ContentType = res.SourceMime
		for _, d := range res.Derived {
			files = append(files, delivery.File{
				LocalPath:   d.LocalPath,
				Key:         objectStorageKey(prof.Bucket.BasePath, spec.BucketPath, filepath.Base(d.LocalPath)),
				ContentType: d.MimeType,
			})
		}
	}

	target := delivery.Target{
		Bucket:           prof.Bucket.Name,
		Region:           prof.Bucket.Region,
		MaxAge:           spec.MaxAge,
		ACL:              spec.ACL,
		CDNURL:           prof.Bucket.CDNURL,
		CDNExcludePrefix: prof.Bucket.CDNExcludePrefix,
	}

	if spec.Async {
		job := &jobs.Job{
			Options:   target,
			Files:     files,
			Status:    jobs.StatusPending,
			CreatedAt: time.Now().UTC(),
		}
		jobID, err := s.jobs.Enqueue(ctx, job)
		if err != nil {
			return fail(fmt.Errorf("enqueue async job: %w", err))
		}
		s.waker.EnsureRunning()

		s.logger.Info("upload queued",
			zap.String("profile", profileName),
			zap.String("object", objectKey),
			zap.String("job_id", jobID))
		s.publishEvent(ctx, MediaEvent{
			Profile:   profileName,
			Object:    objectKey,
			JobID:     jobID,
			Key:       files[0].Key,
			CreatedAt: time.Now().UTC(),
		}, EventMediaQueued)

		return &Result{Async: true, JobID: jobID, Key: files[0].Key}, nil
	}

	urls, err := s.deliverer.Deliver(ctx, target, files)
	if err != nil {
		return fail(err)
	}

	s.logger.Info("upload delivered",
		zap.String("profile", profileName),
		zap.String("object", objectKey),
		zap.Int("files", len(files)))
	s.publishEvent(ctx, MediaEvent{
		Profile:   profileName,
		Object:    objectKey,
		URLs:      urls,
		CreatedAt: time.Now().UTC(),
	}, EventMediaDelivered)

	return &Result{URLs: urls, Ratio: ratio}, nil
}

// Job exposes job lookups for the status endpoint.
func (s *Service) Job(ctx context.Context, id string) (*jobs.Job, error) {
	return s.jobs.Get(ctx, id)
}

func (s *Service) removeAll(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("cleanup staged file", zap.String("path", p), zap.Error(err))
		}
	}
}

// objectStorageKey joins key segments, dropping empties and duplicate slashes.
func objectStorageKey(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.Trim(seg, "/")
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/")
}
