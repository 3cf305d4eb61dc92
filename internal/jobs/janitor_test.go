package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweepRemovesOnlyOldFiles(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "req1", "orphan.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(old), 0o755))
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	stale := time.Now().Add(-24 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	fresh := filepath.Join(dir, "req2", "live.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(fresh), 0o755))
	require.NoError(t, os.WriteFile(fresh, []byte("y"), 0o644))

	j := NewJanitor(dir, 12*time.Hour, time.Hour, zap.NewNop())
	defer j.Shutdown()

	removed := j.Sweep()
	assert.Equal(t, 1, removed)

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)

	// The emptied per-request dir is pruned, the live one kept.
	_, err = os.Stat(filepath.Dir(old))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Dir(fresh))
	assert.NoError(t, err)
}

func TestSweepMissingDir(t *testing.T) {
	j := NewJanitor(filepath.Join(t.TempDir(), "nope"), time.Hour, time.Hour, zap.NewNop())
	defer j.Shutdown()
	assert.Zero(t, j.Sweep())
}
