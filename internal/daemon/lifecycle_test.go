package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecyclePIDFile(t *testing.T) {
	d, err := New(testConfig(t), testLogger(t))
	require.NoError(t, err)

	l := NewLifecycleManager(d)
	require.NoError(t, l.Start())

	pid, err := l.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, l.IsRunning())

	require.NoError(t, l.Stop())
	assert.False(t, l.IsRunning())
	_, err = l.GetPID()
	assert.Error(t, err)
}

func TestLifecycleStopWithoutStartIsNoop(t *testing.T) {
	d, err := New(testConfig(t), testLogger(t))
	require.NoError(t, err)

	l := NewLifecycleManager(d)
	assert.NoError(t, l.Stop())
}

func TestLifecycleInvalidPIDFile(t *testing.T) {
	d, err := New(testConfig(t), testLogger(t))
	require.NoError(t, err)

	l := NewLifecycleManager(d)
	require.NoError(t, os.WriteFile(filepath.Join(d.config.DataDir, "toolmux.pid"), []byte("not-a-pid"), 0644))

	_, err = l.GetPID()
	assert.Error(t, err)
	assert.False(t, l.IsRunning())
}
