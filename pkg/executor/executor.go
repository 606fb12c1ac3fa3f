package executor

import (
	"context"
	"time"
)

// Default timeouts applied when a Spec leaves them unset. Callers must
// treat zero as "use the configured default", never as "no timeout".
const (
	DefaultInitTimeout    = 10 * time.Second
	DefaultCommandTimeout = 30 * time.Second
)

// ToolExecutor is the capability interface implemented by every
// execution strategy. Execute never returns a Go error: all failure
// modes are encoded in the ExecutionResult. Cleanup releases any OS
// resources the executor holds; it is idempotent and safe to call on an
// executor that never started anything.
type ToolExecutor interface {
	Execute(ctx context.Context, command string, args []string, env map[string]string) ExecutionResult
	Cleanup(ctx context.Context) error
}

// Spec is the execution-relevant slice of a tool's configuration. A
// non-empty PromptPatterns list selects stateful (interactive session)
// mode; an empty list selects stateless mode.
type Spec struct {
	Name           string
	Command        string
	Args           []string
	PromptPatterns []string
	InitTimeout    time.Duration
	CommandTimeout time.Duration
}

// Stateful reports whether the spec selects session mode.
func (s Spec) Stateful() bool {
	return len(s.PromptPatterns) > 0
}

func (s Spec) initTimeout() time.Duration {
	if s.InitTimeout <= 0 {
		return DefaultInitTimeout
	}
	return s.InitTimeout
}

func (s Spec) commandTimeout() time.Duration {
	if s.CommandTimeout <= 0 {
		return DefaultCommandTimeout
	}
	return s.CommandTimeout
}
