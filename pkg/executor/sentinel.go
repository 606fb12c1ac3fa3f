package executor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// RuntimeFamily is a coarse classification of the driven runtime, used
// to pick the statement that makes it print a sentinel token.
type RuntimeFamily string

const (
	FamilyPython RuntimeFamily = "python"
	FamilyNode   RuntimeFamily = "node"
	FamilyShell  RuntimeFamily = "shell"
)

// SentinelBuilder composes the payload written to a session's stdin:
// the caller's command followed by a statement that prints the sentinel.
type SentinelBuilder func(command, sentinel string) string

var (
	builderMu sync.RWMutex
	builders  = map[RuntimeFamily]SentinelBuilder{
		FamilyPython: func(command, sentinel string) string {
			return fmt.Sprintf("%s\nprint('%s')\n", command, sentinel)
		},
		FamilyNode: func(command, sentinel string) string {
			return fmt.Sprintf("%s\nconsole.log('%s')\n", command, sentinel)
		},
		FamilyShell: func(command, sentinel string) string {
			return fmt.Sprintf("%s\necho %s\n", command, sentinel)
		},
	}
)

// RegisterSentinelBuilder installs or replaces the payload builder for a
// runtime family. The table is extensible so new REPL families can be
// supported without touching the executor.
func RegisterSentinelBuilder(family RuntimeFamily, fn SentinelBuilder) {
	builderMu.Lock()
	defer builderMu.Unlock()
	builders[family] = fn
}

// ClassifyRuntime maps a configured command name onto a runtime family.
// Unrecognized commands default to the generic shell form.
func ClassifyRuntime(command string) RuntimeFamily {
	base := strings.ToLower(filepath.Base(command))
	switch {
	case strings.Contains(base, "python"):
		return FamilyPython
	case strings.Contains(base, "node"):
		return FamilyNode
	default:
		return FamilyShell
	}
}

func sentinelPayload(command, sentinel string, family RuntimeFamily) string {
	builderMu.RLock()
	fn, ok := builders[family]
	if !ok {
		fn = builders[FamilyShell]
	}
	builderMu.RUnlock()
	return fn(command, sentinel)
}

const sentinelAlphabet = "0123456789abcdef"

// newSentinel returns a fresh random end-of-output marker. The token is
// unique per call so command output that happens to contain an old
// marker can never terminate a later frame.
func newSentinel() string {
	tok, err := gonanoid.Generate(sentinelAlphabet, 8)
	if err != nil {
		// gonanoid only fails if the OS entropy source does; fall back
		// to a counter-free but still process-unique marker.
		tok = fmt.Sprintf("%08x", sentinelFallback())
	}
	return "__TOOLMUX_END_" + tok + "__"
}

var (
	fallbackMu  sync.Mutex
	fallbackSeq uint32
)

func sentinelFallback() uint32 {
	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	fallbackSeq++
	return fallbackSeq
}
