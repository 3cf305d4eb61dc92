// Package jobs implements the deferred-upload queue: job documents persisted
// in the metadata store, a polling worker that drains them, the self-stopping
// scheduler underneath it, and the orphaned-file janitor.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/your-org/mediaforge/internal/delivery"
)

// Status is the job lifecycle state. Transitions are strictly
// pending → uploading → success|failed; failed is terminal and is never
// retried automatically (operator reprocessing only).
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

// Job is a persisted deferred upload. Created pending by the orchestrator and
// mutated only by the worker afterwards; never deleted by this subsystem.
type Job struct {
	ID        string          `json:"id"`
	Options   delivery.Target `json:"options"`
	Files     []delivery.File `json:"files"`
	Status    Status          `json:"status"`
	URLs      []string        `json:"urls,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Patch carries partial job updates; nil fields are left untouched.
type Patch struct {
	Status *Status
	URLs   []string
	Error  *string
}

// ErrNotFound is returned by Store implementations for unknown job IDs.
var ErrNotFound = errors.New("job not found")

// Store is the job-queue face of the metadata store.
type Store interface {
	Enqueue(ctx context.Context, job *Job) (string, error)
	Get(ctx context.Context, id string) (*Job, error)
	ListByStatus(ctx context.Context, status Status) ([]Job, error)
	Update(ctx context.Context, id string, patch Patch) error
	CountByStatus(ctx context.Context, status Status) (int, error)
}

func statusPtr(s Status) *Status { return &s }
func strPtr(s string) *string    { return &s }
