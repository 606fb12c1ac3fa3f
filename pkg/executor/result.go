package executor

// Kind identifies which execution strategy produced a result.
type Kind string

const (
	KindStateless Kind = "subprocess-stateless"
	KindStateful  Kind = "subprocess-stateful"
	KindNativeGit Kind = "native-git"
)

// ExecutionResult describes the outcome of one command execution.
// It is a value type; executors return it by value and never mutate a
// result after handing it out.
//
// Invariants: TimedOut implies !Success. ReturnCode is set only for
// one-shot runs: a stateful session has no single exit code per
// command.
type ExecutionResult struct {
	Success      bool   `json:"success"`
	Output       string `json:"output"`
	Error        string `json:"error,omitempty"`
	ReturnCode   *int   `json:"return_code,omitempty"`
	TimedOut     bool   `json:"timed_out"`
	ExecutorKind Kind   `json:"executor_kind"`
}

// Failed reports whether the result carries an error message.
func (r ExecutionResult) Failed() bool {
	return !r.Success
}

func intPtr(v int) *int {
	return &v
}
