package jobs

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/mediaforge/internal/delivery"
)

// Deliverer re-enters the storage uploader for deferred jobs.
type Deliverer interface {
	Deliver(ctx context.Context, target delivery.Target, files []delivery.File) ([]string, error)
}

// Publisher emits job lifecycle events; nil disables eventing.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

// Worker drains pending upload jobs on a fixed tick. It is woken by the
// orchestrator when a job is enqueued and stops its own scheduler once a
// drain pass finds no pending jobs left.
//
// The pending → uploading claim is a plain read-then-write: running more than
// one worker process against the same store can claim a job twice. The
// contract assumes a single worker per store; horizontal scaling needs an
// external lease.
type Worker struct {
	store     Store
	deliverer Deliverer
	publisher Publisher
	sched     *Scheduler
	logger    *zap.Logger
}

func NewWorker(store Store, deliverer Deliverer, publisher Publisher, tick time.Duration, logger *zap.Logger) *Worker {
	w := &Worker{
		store:     store,
		deliverer: deliverer,
		publisher: publisher,
		logger:    logger,
	}
	w.sched = NewScheduler(tick, func() {
		w.Drain(context.Background())
	})
	return w
}

// EnsureRunning starts the drain scheduler if it is idle.
func (w *Worker) EnsureRunning() {
	if err := w.sched.Start(); err != nil {
		w.logger.Error("start job worker", zap.Error(err))
	}
}

// Shutdown stops the scheduler permanently.
func (w *Worker) Shutdown() {
	w.sched.Shutdown()
}

// Drain processes every pending job independently, continuing past per-job
// failures, then stops the scheduler if nothing is left.
func (w *Worker) Drain(ctx context.Context) {
	pending, err := w.store.ListByStatus(ctx, StatusPending)
	if err != nil {
		w.logger.Error("list pending jobs", zap.Error(err))
		return
	}

	for i := range pending {
		w.process(ctx, &pending[i])
	}

	remaining, err := w.store.CountByStatus(ctx, StatusPending)
	if err != nil {
		w.logger.Error("count pending jobs", zap.Error(err))
		return
	}
	if remaining == 0 {
		w.sched.Stop()
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	if err := w.store.Update(ctx, job.ID, Patch{Status: statusPtr(StatusUploading)}); err != nil {
		w.logger.Error("mark job uploading", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	urls, err := w.deliverer.Deliver(ctx, job.Options, job.Files)
	if err != nil {
		w.logger.Error("async delivery failed", zap.String("job_id", job.ID), zap.Error(err))
		if uerr := w.store.Update(ctx, job.ID, Patch{
			Status: statusPtr(StatusFailed),
			Error:  strPtr(err.Error()),
		}); uerr != nil {
			w.logger.Error("mark job failed", zap.String("job_id", job.ID), zap.Error(uerr))
		}
		w.publish(ctx, job.ID, "job.failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		return
	}

	if err := w.store.Update(ctx, job.ID, Patch{
		Status: statusPtr(StatusSuccess),
		URLs:   urls,
	}); err != nil {
		w.logger.Error("mark job succeeded", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	w.logger.Info("async job delivered", zap.String("job_id", job.ID), zap.Int("files", len(job.Files)))
	w.publish(ctx, job.ID, "job.succeeded", map[string]any{"job_id": job.ID, "urls": urls})
}

func (w *Worker) publish(ctx context.Context, jobID, eventType string, payload map[string]any) {
	if w.publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	headers := map[string]string{"event_type": eventType}
	if err := w.publisher.Publish(ctx, []byte(jobID), body, headers); err != nil {
		w.logger.Warn("publish job event", zap.String("job_id", jobID), zap.Error(err))
	}
}
