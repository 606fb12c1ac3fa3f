package executor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/okafor/toolmux/internal/observability"
)

const (
	// terminateGrace is how long Cleanup waits between the polite
	// interrupt and the forced kill.
	terminateGrace = 5 * time.Second

	// killWait bounds the wait for process reaping after a kill so a
	// wedged child cannot hang the caller.
	killWait = 2 * time.Second

	lineBufferSize = 256
	maxLineBytes   = 1024 * 1024
)

// SubprocessExecutor drives an OS process either once-and-done
// (stateless) or as a persistent interactive session (stateful). The
// mode is selected by the Spec: any prompt pattern makes it stateful.
//
// A stateful executor owns exactly one child process at a time. All
// stateful calls are serialized internally; only one command frame can
// be in flight on the session's pipe.
type SubprocessExecutor struct {
	spec Spec

	// sessionMode forces the sentinel protocol even when the spec has
	// no prompt patterns, for executors owned by the session manager.
	sessionMode bool

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	lines     chan string
	exited    chan struct{}
	sessionID string

	ready           bool
	promptConfirmed bool
}

// NewSubprocess creates an executor for the given spec. No process is
// started until the first Execute call.
func NewSubprocess(spec Spec) *SubprocessExecutor {
	return &SubprocessExecutor{spec: spec}
}

// NewSession creates an executor that is always driven through the
// stateful sentinel protocol, even when the spec declares no prompt
// patterns. Used by the session manager, whose sessions are persistent
// by definition.
func NewSession(spec Spec) *SubprocessExecutor {
	return &SubprocessExecutor{spec: spec, sessionMode: true}
}

// Start spawns the session process if none is live, without waiting
// for the startup prompt. It is a no-op on a live session.
func (ex *SubprocessExecutor) Start(ctx context.Context, env map[string]string) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.ensureSessionLocked(env)
}

// WaitReady blocks until the startup prompt is observed or the init
// timeout elapses. Idempotent per spawn.
func (ex *SubprocessExecutor) WaitReady(ctx context.Context) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.cmd == nil {
		return
	}
	ex.awaitReadyLocked(ctx)
}

// Spec returns the executor's configuration.
func (ex *SubprocessExecutor) Spec() Spec {
	return ex.spec
}

// Execute runs a command and reports the outcome as data. It never
// returns a Go error; see ExecutionResult for the failure taxonomy.
func (ex *SubprocessExecutor) Execute(ctx context.Context, command string, args []string, env map[string]string) ExecutionResult {
	start := time.Now()
	var res ExecutionResult
	if ex.sessionMode || ex.spec.Stateful() {
		res = ex.executeStateful(ctx, command, env)
	} else {
		res = ex.executeStateless(ctx, command, args, env)
	}
	observability.RecordExecution(ex.spec.Name, string(res.ExecutorKind), time.Since(start), res.Success, res.TimedOut)
	return res
}

// executeStateless spawns a brand-new process per call, captures stdout
// and stderr separately, and waits for exit bounded by the command
// timeout.
func (ex *SubprocessExecutor) executeStateless(ctx context.Context, command string, args []string, env map[string]string) ExecutionResult {
	timeout := ex.spec.commandTimeout()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, command, args...)
	cmd.Env = buildEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	// CommandContext already killed and reaped the child on deadline.
	if execCtx.Err() == context.DeadlineExceeded {
		log.Warn().
			Str("tool", ex.spec.Name).
			Str("command", command).
			Dur("timeout", timeout).
			Msg("Stateless command timed out")
		return ExecutionResult{
			Success:      false,
			Output:       strings.TrimSpace(stdout.String()),
			Error:        fmt.Sprintf("command timed out after %s", timeout),
			TimedOut:     true,
			ExecutorKind: KindStateless,
		}
	}

	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			// Spawn or communication failure: no exit status to report.
			log.Error().
				Str("tool", ex.spec.Name).
				Str("command", command).
				Err(err).
				Msg("Stateless execution failed")
			return ExecutionResult{
				Success:      false,
				Error:        err.Error(),
				ExecutorKind: KindStateless,
			}
		}
		code := exitErr.ExitCode()
		return ExecutionResult{
			Success:      false,
			Output:       strings.TrimSpace(stdout.String()),
			Error:        stderrText(stderr.String(), fmt.Sprintf("exit status %d", code)),
			ReturnCode:   intPtr(code),
			ExecutorKind: KindStateless,
		}
	}

	return ExecutionResult{
		Success:      true,
		Output:       strings.TrimSpace(stdout.String()),
		Error:        strings.TrimSpace(stderr.String()),
		ReturnCode:   intPtr(0),
		ExecutorKind: KindStateless,
	}
}

// executeStateful writes the command plus a sentinel-printing statement
// into the live session and collects output lines until the sentinel
// appears. The args parameter is unused in session mode: the command
// text is the whole frame.
func (ex *SubprocessExecutor) executeStateful(ctx context.Context, command string, env map[string]string) ExecutionResult {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	// Transparent respawn: callers never need to detect session death.
	if err := ex.ensureSessionLocked(env); err != nil {
		return ExecutionResult{
			Success:      false,
			Error:        err.Error(),
			ExecutorKind: KindStateful,
		}
	}
	ex.awaitReadyLocked(ctx)

	sentinel := newSentinel()
	payload := sentinelPayload(command, sentinel, ClassifyRuntime(ex.spec.Command))

	if _, err := io.WriteString(ex.stdin, payload); err != nil {
		// Broken pipe: unlike a timeout this requires a respawn before
		// retry, so the session state is reset unconditionally.
		log.Warn().
			Str("tool", ex.spec.Name).
			Str("session_id", ex.sessionID).
			Err(err).
			Msg("Session pipe broken while writing command")
		ex.resetLocked()
		observability.RecordSessionReset(ex.spec.Name, "broken-pipe")
		return ExecutionResult{
			Success:      false,
			Error:        "process terminated unexpectedly: " + err.Error(),
			ExecutorKind: KindStateful,
		}
	}

	timeout := ex.spec.commandTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var collected []string
	for {
		// Each line read is bounded individually by the command timeout.
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(timeout)

		select {
		case line, ok := <-ex.lines:
			if !ok {
				// End-of-stream is terminal: the process died.
				ex.resetLocked()
				observability.RecordSessionReset(ex.spec.Name, "process-died")
				return ExecutionResult{
					Success:      false,
					Output:       strings.Join(collected, "\n"),
					Error:        "process exited before completing command",
					ExecutorKind: KindStateful,
				}
			}
			if strings.Contains(line, sentinel) {
				return ExecutionResult{
					Success:      true,
					Output:       strings.Join(collected, "\n"),
					ExecutorKind: KindStateful,
				}
			}
			line = stripPromptPrefix(line, ex.spec.PromptPatterns)
			if line == "" || line == command || strings.Contains(line, sentinel) {
				continue
			}
			collected = append(collected, line)

		case <-timer.C:
			log.Warn().
				Str("tool", ex.spec.Name).
				Str("session_id", ex.sessionID).
				Dur("timeout", timeout).
				Msg("Stateful command timed out, killing session")
			ex.resetLocked()
			observability.RecordSessionReset(ex.spec.Name, "timeout")
			// Partial output is preserved for diagnosis.
			return ExecutionResult{
				Success:      false,
				Output:       strings.Join(collected, "\n"),
				Error:        fmt.Sprintf("timeout after %s", timeout),
				TimedOut:     true,
				ExecutorKind: KindStateful,
			}

		case <-ctx.Done():
			ex.resetLocked()
			observability.RecordSessionReset(ex.spec.Name, "canceled")
			return ExecutionResult{
				Success:      false,
				Output:       strings.Join(collected, "\n"),
				Error:        "command canceled: " + ctx.Err().Error(),
				ExecutorKind: KindStateful,
			}
		}
	}
}

// ensureSessionLocked spawns the configured command as a long-lived
// child if none is live. Stdout and stderr are merged into one stream:
// interactive tools interleave diagnostics with output and there is no
// separate channel to frame them on.
func (ex *SubprocessExecutor) ensureSessionLocked(env map[string]string) error {
	if ex.cmd != nil {
		select {
		case <-ex.exited:
			ex.resetLocked()
			observability.RecordSessionRespawn(ex.spec.Name)
		default:
			return nil
		}
	}

	args := ex.spec.Args
	if ClassifyRuntime(ex.spec.Command) == FamilyPython && !containsArg(args, "-u") {
		// Unbuffered output, otherwise the REPL's prints sit in a libc
		// buffer and the sentinel never arrives.
		args = append([]string{"-u"}, args...)
	}

	cmd := exec.Command(ex.spec.Command, args...)
	cmd.Env = buildEnv(env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("failed to open output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		stdin.Close()
		pr.Close()
		pw.Close()
		return fmt.Errorf("failed to spawn %s: %w", ex.spec.Command, err)
	}
	// The child holds its own copies of the write end.
	pw.Close()

	lines := make(chan string, lineBufferSize)
	go func() {
		defer pr.Close()
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	ex.cmd = cmd
	ex.stdin = stdin
	ex.lines = lines
	ex.exited = exited
	ex.sessionID = uuid.New().String()
	ex.ready = false
	ex.promptConfirmed = false

	log.Info().
		Str("tool", ex.spec.Name).
		Str("session_id", ex.sessionID).
		Int("pid", cmd.Process.Pid).
		Msg("Session spawned")

	return nil
}

// awaitReadyLocked reads lines until a configured prompt pattern shows
// up or the init timeout elapses. The timeout is non-fatal: some tools
// never print a recognizable startup prompt, so execution proceeds
// optimistically and PromptConfirmed stays false.
func (ex *SubprocessExecutor) awaitReadyLocked(ctx context.Context) {
	if ex.ready {
		return
	}
	if len(ex.spec.PromptPatterns) == 0 {
		// Nothing to wait for.
		ex.ready = true
		return
	}

	deadline := time.NewTimer(ex.spec.initTimeout())
	defer deadline.Stop()

	for {
		select {
		case line, ok := <-ex.lines:
			if !ok {
				// EOF during startup; the read loop will surface it.
				ex.ready = true
				return
			}
			for _, pattern := range ex.spec.PromptPatterns {
				if pattern != "" && strings.Contains(line, pattern) {
					ex.ready = true
					ex.promptConfirmed = true
					log.Debug().
						Str("tool", ex.spec.Name).
						Str("session_id", ex.sessionID).
						Msg("Startup prompt observed")
					return
				}
			}
		case <-deadline.C:
			log.Warn().
				Str("tool", ex.spec.Name).
				Str("session_id", ex.sessionID).
				Msg("Timeout waiting for startup prompt, proceeding anyway")
			ex.ready = true
			return
		case <-ctx.Done():
			ex.ready = true
			return
		}
	}
}

// resetLocked kills the child, waits for it to be reaped, and clears
// all session state. Safe to call with no live session.
func (ex *SubprocessExecutor) resetLocked() {
	if ex.cmd != nil && ex.cmd.Process != nil {
		select {
		case <-ex.exited:
		default:
			_ = ex.cmd.Process.Kill()
			select {
			case <-ex.exited:
			case <-time.After(killWait):
			}
		}
	}
	if ex.stdin != nil {
		ex.stdin.Close()
	}
	ex.cmd = nil
	ex.stdin = nil
	ex.lines = nil
	ex.exited = nil
	ex.sessionID = ""
	ex.ready = false
	ex.promptConfirmed = false
}

// Cleanup terminates any live session: interrupt first, escalating to a
// kill after a grace period. Idempotent.
func (ex *SubprocessExecutor) Cleanup(ctx context.Context) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if ex.cmd == nil {
		return nil
	}

	if ex.cmd.Process != nil {
		select {
		case <-ex.exited:
		default:
			_ = ex.cmd.Process.Signal(os.Interrupt)
			grace := time.NewTimer(terminateGrace)
			select {
			case <-ex.exited:
				grace.Stop()
			case <-grace.C:
				_ = ex.cmd.Process.Kill()
				select {
				case <-ex.exited:
				case <-time.After(killWait):
				}
			case <-ctx.Done():
				grace.Stop()
				_ = ex.cmd.Process.Kill()
				select {
				case <-ex.exited:
				case <-time.After(killWait):
				}
			}
		}
	}

	if ex.stdin != nil {
		ex.stdin.Close()
	}
	pid := 0
	if ex.cmd.Process != nil {
		pid = ex.cmd.Process.Pid
	}
	ex.cmd = nil
	ex.stdin = nil
	ex.lines = nil
	ex.exited = nil
	ex.sessionID = ""
	ex.ready = false
	ex.promptConfirmed = false

	log.Info().
		Str("tool", ex.spec.Name).
		Int("pid", pid).
		Msg("Session cleaned up")

	return nil
}

// Pid returns the live session's process ID, or 0 if none.
func (ex *SubprocessExecutor) Pid() int {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.cmd == nil || ex.cmd.Process == nil {
		return 0
	}
	return ex.cmd.Process.Pid
}

// Running reports whether a session process is live.
func (ex *SubprocessExecutor) Running() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.cmd == nil {
		return false
	}
	select {
	case <-ex.exited:
		return false
	default:
		return true
	}
}

// PromptConfirmed reports whether the current session's startup prompt
// was actually observed, as opposed to the optimistic init-timeout path.
func (ex *SubprocessExecutor) PromptConfirmed() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.promptConfirmed
}

// SessionID returns the identifier of the live session, or "".
func (ex *SubprocessExecutor) SessionID() string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.sessionID
}

// stripPromptPrefix removes exactly one leading prompt pattern from the
// line. First matching pattern wins, in configured order.
func stripPromptPrefix(line string, patterns []string) string {
	for _, p := range patterns {
		if p != "" && strings.HasPrefix(line, p) {
			return line[len(p):]
		}
	}
	return line
}

// buildEnv returns the environment for a spawned process: nil inherits
// the parent environment untouched; a non-nil map is applied on top of
// the inherited environment.
func buildEnv(env map[string]string) []string {
	if env == nil {
		return nil
	}
	out := os.Environ()
	for key, value := range env {
		out = append(out, fmt.Sprintf("%s=%s", key, value))
	}
	return out
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func stderrText(stderr, fallback string) string {
	if s := strings.TrimSpace(stderr); s != "" {
		return s
	}
	return fallback
}
