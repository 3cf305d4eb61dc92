package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/mediaforge/internal/delivery"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	// transitions records every status write per job, in order.
	transitions map[string][]Status
}

func newMemStore() *memStore {
	return &memStore{jobs: map[string]*Job{}, transitions: map[string][]Status{}}
}

func (m *memStore) Enqueue(ctx context.Context, job *Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return job.ID, nil
}

func (m *memStore) Get(ctx context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) ListByStatus(ctx context.Context, status Status) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Job
	for _, job := range m.jobs {
		if job.Status == status {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *memStore) Update(ctx context.Context, id string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Status != nil {
		job.Status = *patch.Status
		m.transitions[id] = append(m.transitions[id], *patch.Status)
	}
	if patch.URLs != nil {
		job.URLs = patch.URLs
	}
	if patch.Error != nil {
		job.Error = *patch.Error
	}
	return nil
}

func (m *memStore) CountByStatus(ctx context.Context, status Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, job := range m.jobs {
		if job.Status == status {
			n++
		}
	}
	return n, nil
}

type fakeDeliverer struct {
	mu    sync.Mutex
	calls int
	err   error
	urls  []string
}

func (f *fakeDeliverer) Deliver(ctx context.Context, target delivery.Target, files []delivery.File) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.urls, nil
}

func pendingJob(t *testing.T, store *memStore) string {
	t.Helper()
	id, err := store.Enqueue(context.Background(), &Job{
		Options:   delivery.Target{Bucket: "media"},
		Files:     []delivery.File{{LocalPath: "/tmp/x", Key: "x"}},
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func TestDrainMarksSuccess(t *testing.T) {
	store := newMemStore()
	id := pendingJob(t, store)

	deliverer := &fakeDeliverer{urls: []string{"https://media.example.com/x"}}
	w := NewWorker(store, deliverer, nil, time.Minute, zap.NewNop())
	defer w.Shutdown()

	w.Drain(context.Background())

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, job.Status)
	assert.Equal(t, []string{"https://media.example.com/x"}, job.URLs)
	assert.Equal(t, []Status{StatusUploading, StatusSuccess}, store.transitions[id])
}

func TestDrainMarksFailedTerminally(t *testing.T) {
	store := newMemStore()
	id := pendingJob(t, store)

	deliverer := &fakeDeliverer{err: errors.New("bucket gone")}
	w := NewWorker(store, deliverer, nil, time.Minute, zap.NewNop())
	defer w.Shutdown()

	w.Drain(context.Background())

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Error, "bucket gone")

	// A second pass must not retry the failed job.
	w.Drain(context.Background())
	assert.Equal(t, 1, deliverer.calls)
}

func TestDrainContinuesPastPerJobFailures(t *testing.T) {
	store := newMemStore()
	pendingJob(t, store)
	pendingJob(t, store)

	deliverer := &fakeDeliverer{err: errors.New("down")}
	w := NewWorker(store, deliverer, nil, time.Minute, zap.NewNop())
	defer w.Shutdown()

	w.Drain(context.Background())
	assert.Equal(t, 2, deliverer.calls)

	n, err := store.CountByStatus(context.Background(), StatusPending)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkerStopsItselfWhenDrained(t *testing.T) {
	store := newMemStore()
	pendingJob(t, store)

	deliverer := &fakeDeliverer{urls: []string{"u"}}
	w := NewWorker(store, deliverer, nil, time.Minute, zap.NewNop())
	defer w.Shutdown()

	w.EnsureRunning()
	assert.True(t, w.sched.IsRunning())

	w.Drain(context.Background())
	assert.False(t, w.sched.IsRunning())

	// Waking again with an empty queue is harmless.
	w.EnsureRunning()
	w.Drain(context.Background())
	assert.False(t, w.sched.IsRunning())
}
