package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okafor/toolmux/internal/config"
)

func TestStartCommandHelp(t *testing.T) {
	cmd := GetRootCmd()
	cmd.SetArgs([]string{"start", "--help"})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, output.String(), "Start the toolmux daemon")
}

func TestGetPIDFilePath(t *testing.T) {
	cfg := &config.Config{DataDir: "/var/lib/toolmux"}
	assert.Equal(t, "/var/lib/toolmux/toolmux.pid", getPIDFilePath(cfg))

	path := getPIDFilePath(nil)
	assert.Contains(t, path, "toolmux.pid")
}

func TestIsRunning(t *testing.T) {
	t.Run("no pid file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "nonexistent.pid")
		assert.False(t, isRunning(pidFile))
	})

	t.Run("invalid pid file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "invalid.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte("invalid"), 0644))
		assert.False(t, isRunning(pidFile))
	})

	t.Run("own pid", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "own.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))
		assert.True(t, isRunning(pidFile))
	})
}
