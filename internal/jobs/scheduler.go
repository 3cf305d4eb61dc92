package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs one task on a fixed interval and owns its own start/stop
// state, so callers can wake it on demand and the task can stop it once there
// is nothing left to do.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	running bool
	spec    string
	task    func()
}

func NewScheduler(interval time.Duration, task func()) *Scheduler {
	c := cron.New()
	c.Start()
	return &Scheduler{
		cron: c,
		spec: fmt.Sprintf("@every %s", interval),
		task: task,
	}
}

// Start schedules the task. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	id, err := s.cron.AddFunc(s.spec, s.task)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", s.spec, err)
	}
	s.entry = id
	s.running = true
	return nil
}

// Stop unschedules the task. Safe to call from within the task itself.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cron.Remove(s.entry)
	s.running = false
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Shutdown stops the underlying cron runner. The scheduler cannot be started
// again afterwards.
func (s *Scheduler) Shutdown() {
	s.Stop()
	s.cron.Stop()
}
