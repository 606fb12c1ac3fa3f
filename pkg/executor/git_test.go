package executor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo builds a throwaway repository with one commit.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644))
	run("add", "a.txt")
	run("commit", "-m", "first")
	return dir
}

func TestGitUnsupportedCommand(t *testing.T) {
	g := NewGit(t.TempDir())

	res := g.Execute(context.Background(), "push", nil, nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not supported")
	assert.Contains(t, res.Error, "push")
	assert.Equal(t, KindNativeGit, res.ExecutorKind)
	assert.Nil(t, res.ReturnCode)
}

func TestGitSupportedCommandsSorted(t *testing.T) {
	assert.Equal(t, []string{"branch", "diff", "log", "show", "status"}, NewGit(".").SupportedCommands())
}

func TestGitStatus(t *testing.T) {
	dir := initRepo(t)
	g := NewGit(dir)

	res := g.Execute(context.Background(), "status", []string{"--porcelain"}, nil)

	require.True(t, res.Success, "error: %s", res.Error)
	assert.Empty(t, res.Output, "clean tree")
	require.NotNil(t, res.ReturnCode)
	assert.Equal(t, 0, *res.ReturnCode)
}

func TestGitLog(t *testing.T) {
	dir := initRepo(t)
	g := NewGit(dir)

	res := g.Execute(context.Background(), "log", []string{"--oneline"}, nil)

	require.True(t, res.Success, "error: %s", res.Error)
	assert.Contains(t, res.Output, "first")
}

func TestGitDiffDirtyTree(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("two\n"), 0o644))
	g := NewGit(dir)

	res := g.Execute(context.Background(), "diff", nil, nil)

	require.True(t, res.Success, "error: %s", res.Error)
	assert.Contains(t, res.Output, "-one")
	assert.Contains(t, res.Output, "+two")
}

func TestGitFailureOutsideRepo(t *testing.T) {
	g := NewGit(t.TempDir())

	res := g.Execute(context.Background(), "log", nil, nil)

	assert.False(t, res.Success)
	require.NotNil(t, res.ReturnCode)
	assert.NotZero(t, *res.ReturnCode)
	assert.NotEmpty(t, res.Error)
}

func TestGitCleanupNoop(t *testing.T) {
	assert.NoError(t, NewGit(".").Cleanup(context.Background()))
}
