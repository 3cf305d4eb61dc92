package jobs

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically removes staging files that outlived their request: a
// backstop against crashes that skipped the normal cleanup path. Deletion
// races with live requests are tolerated (delete-if-exists).
type Janitor struct {
	dir    string
	maxAge time.Duration
	sched  *Scheduler
	logger *zap.Logger
}

func NewJanitor(dir string, maxAge, interval time.Duration, logger *zap.Logger) *Janitor {
	j := &Janitor{dir: dir, maxAge: maxAge, logger: logger}
	j.sched = NewScheduler(interval, func() {
		j.Sweep()
	})
	return j
}

func (j *Janitor) Start() error {
	return j.sched.Start()
}

func (j *Janitor) Shutdown() {
	j.sched.Shutdown()
}

// Sweep removes every file under the staging dir older than the age
// threshold, then prunes directories emptied by the pass. Returns the number
// of files removed.
func (j *Janitor) Sweep() int {
	cutoff := time.Now().Add(-j.maxAge)
	removed := 0
	var emptied []string

	err := filepath.WalkDir(j.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != j.dir {
				emptied = append(emptied, path)
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil || os.IsNotExist(err) {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		j.logger.Error("janitor sweep", zap.Error(err))
		return removed
	}

	// Deepest first so nested empty dirs collapse; Remove fails on non-empty
	// dirs, which is exactly what we want.
	for i := len(emptied) - 1; i >= 0; i-- {
		_ = os.Remove(emptied[i])
	}

	if removed > 0 {
		j.logger.Info("janitor removed orphaned files", zap.Int("count", removed))
	}
	return removed
}
