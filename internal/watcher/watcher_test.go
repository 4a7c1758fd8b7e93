package watcher

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, t.TempDir(), time.Hour, nil)
	assert.Error(t, err, "nil pipeline rejected")
}

func TestIsDaemonRunning_NoPIDFile(t *testing.T) {
	running, err := IsDaemonRunning(filepath.Join(t.TempDir(), "watch.pid"))
	require.NoError(t, err)
	assert.False(t, running)
}

func TestIsDaemonRunning_StalePIDRemoved(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "watch.pid")
	// A PID that certainly refers to no live process.
	require.NoError(t, os.WriteFile(pidFile, []byte("999999999\n"), 0o644))

	running, err := IsDaemonRunning(pidFile)
	require.NoError(t, err)
	assert.False(t, running)
	assert.NoFileExists(t, pidFile, "stale PID file should be cleaned up")
}

func TestIsDaemonRunning_GarbagePIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "watch.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid"), 0o644))

	running, err := IsDaemonRunning(pidFile)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestIsDaemonRunning_LiveProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "watch.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644))

	running, err := IsDaemonRunning(pidFile)
	require.NoError(t, err)
	assert.True(t, running)
}

func TestStopDaemon_NotRunning(t *testing.T) {
	err := StopDaemon(filepath.Join(t.TempDir(), "watch.pid"))
	assert.Error(t, err)
}
