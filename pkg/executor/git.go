package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okafor/toolmux/internal/observability"
)

// gitVocabulary is the fixed set of subcommands the native git executor
// maps onto direct one-shot calls. Anything else is rejected.
var gitVocabulary = map[string]bool{
	"status": true,
	"log":    true,
	"diff":   true,
	"branch": true,
	"show":   true,
}

// GitExecutor is a native ToolExecutor variant that wraps the git CLI
// directly, without the sentinel protocol. Each supported subcommand is
// a one-shot subprocess call against a fixed working directory.
type GitExecutor struct {
	workDir string
	timeout time.Duration
}

// NewGit creates a git executor rooted at workDir.
func NewGit(workDir string) *GitExecutor {
	return &GitExecutor{
		workDir: workDir,
		timeout: DefaultCommandTimeout,
	}
}

// SupportedCommands lists the subcommand vocabulary, sorted.
func (g *GitExecutor) SupportedCommands() []string {
	cmds := make([]string, 0, len(gitVocabulary))
	for c := range gitVocabulary {
		cmds = append(cmds, c)
	}
	sort.Strings(cmds)
	return cmds
}

// Execute runs a git subcommand. Commands outside the fixed vocabulary
// yield a result-level failure, never an error return.
func (g *GitExecutor) Execute(ctx context.Context, command string, args []string, env map[string]string) ExecutionResult {
	start := time.Now()
	res := g.execute(ctx, command, args, env)
	observability.RecordExecution("git", string(KindNativeGit), time.Since(start), res.Success, res.TimedOut)
	return res
}

func (g *GitExecutor) execute(ctx context.Context, command string, args []string, env map[string]string) ExecutionResult {
	if !gitVocabulary[command] {
		return ExecutionResult{
			Success:      false,
			Error:        fmt.Sprintf("git command not supported: %q (supported: %s)", command, strings.Join(g.SupportedCommands(), ", ")),
			ExecutorKind: KindNativeGit,
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	gitArgs := append([]string{"-C", g.workDir, command}, args...)
	cmd := exec.CommandContext(execCtx, "git", gitArgs...)
	cmd.Env = buildEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		return ExecutionResult{
			Success:      false,
			Output:       strings.TrimSpace(stdout.String()),
			Error:        fmt.Sprintf("git %s timed out after %s", command, g.timeout),
			TimedOut:     true,
			ExecutorKind: KindNativeGit,
		}
	}

	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			log.Error().Str("command", command).Err(err).Msg("Git execution failed")
			return ExecutionResult{
				Success:      false,
				Error:        err.Error(),
				ExecutorKind: KindNativeGit,
			}
		}
		code := exitErr.ExitCode()
		return ExecutionResult{
			Success:      false,
			Output:       strings.TrimSpace(stdout.String()),
			Error:        stderrText(stderr.String(), fmt.Sprintf("exit status %d", code)),
			ReturnCode:   intPtr(code),
			ExecutorKind: KindNativeGit,
		}
	}

	return ExecutionResult{
		Success:      true,
		Output:       strings.TrimSpace(stdout.String()),
		ReturnCode:   intPtr(0),
		ExecutorKind: KindNativeGit,
	}
}

// Cleanup is a no-op: the git executor holds no long-lived resources.
func (g *GitExecutor) Cleanup(ctx context.Context) error {
	return nil
}
