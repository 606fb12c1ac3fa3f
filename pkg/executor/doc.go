// Package executor drives external command-line tools and reports every
// outcome as data. It provides two subprocess strategies, stateless
// (one process per command, exit code observed) and stateful (a
// long-lived interactive process whose output is framed with per-call
// sentinel tokens), plus native executors that wrap a specific tool's
// CLI with a fixed command vocabulary.
//
// No method on an executor panics or returns a transport error for a
// failed command; failure modes (timeout, process death, spawn error,
// unsupported command) are all encoded in ExecutionResult.
package executor
