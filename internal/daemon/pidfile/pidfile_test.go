package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "dash.pid")
}

func TestAcquireAndRelease(t *testing.T) {
	path := testPath(t)

	require.NoError(t, Acquire(path))
	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	running, pid, err := IsRunning(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, Release(path))
	running, _, err = IsRunning(path)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestAcquireRefusesWhileAlive(t *testing.T) {
	path := testPath(t)
	require.NoError(t, Acquire(path))
	assert.Error(t, Acquire(path))
}

func TestAcquireReplacesStalePidfile(t *testing.T) {
	path := testPath(t)
	// PID 1 exists but is not signalable from an unprivileged test; very
	// large PIDs do not exist at all.
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0644))

	require.NoError(t, Acquire(path))
	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireIgnoresGarbageContent(t *testing.T) {
	path := testPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))
	require.NoError(t, Acquire(path))
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(testPath(t))
	assert.Error(t, err)

	running, pid, err := IsRunning(testPath(t))
	require.NoError(t, err)
	assert.False(t, running)
	assert.Equal(t, 0, pid)
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, processAlive(0))
	assert.False(t, processAlive(-1))

	bogus, _ := strconv.Atoi("999999999")
	assert.False(t, processAlive(bogus))
}
