package procman

import (
	"context"
	"time"

	"github.com/okafor/toolmux/pkg/executor"
)

// State is a session's lifecycle state.
type State string

const (
	StateInitializing State = "INITIALIZING"
	StateReady        State = "READY"
	StateTerminated   State = "TERMINATED"
)

// SessionInfo is the externally visible view of one session. A status
// query for a name with no live session reports nothing at all, which
// callers must treat as equivalent to TERMINATED.
type SessionInfo struct {
	Tool            string    `json:"tool"`
	PID             int       `json:"pid"`
	State           State     `json:"state"`
	PromptConfirmed bool      `json:"prompt_confirmed"`
	StartedAt       time.Time `json:"started_at"`
	LastUsed        time.Time `json:"last_used"`
}

// driver is the session-side surface of a stateful executor. It exists
// so manager tests can substitute a scripted implementation for a real
// child process.
type driver interface {
	Start(ctx context.Context, env map[string]string) error
	WaitReady(ctx context.Context)
	Execute(ctx context.Context, command string, args []string, env map[string]string) executor.ExecutionResult
	Cleanup(ctx context.Context) error
	Pid() int
	Running() bool
	PromptConfirmed() bool
}

// session pairs a driver with its bookkeeping. Fields are guarded by
// the manager's per-name lock, not by the session itself.
type session struct {
	tool      string
	drv       driver
	state     State
	startedAt time.Time
	lastUsed  time.Time
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		Tool:            s.tool,
		PID:             s.drv.Pid(),
		State:           s.state,
		PromptConfirmed: s.drv.PromptConfirmed(),
		StartedAt:       s.startedAt,
		LastUsed:        s.lastUsed,
	}
}
