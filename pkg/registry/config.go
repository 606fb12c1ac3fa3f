package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/okafor/toolmux/pkg/executor"
)

// StatefulConfig is the session-mode sub-configuration of a tool. A
// non-empty PromptPatterns list makes the tool stateful. Timeouts are
// milliseconds at this boundary; zero means "use the configured
// default".
type StatefulConfig struct {
	PromptPatterns   []string `json:"prompt_patterns" toml:"prompt_patterns" yaml:"prompt_patterns"`
	InitTimeoutMS    int      `json:"init_timeout" toml:"init_timeout" yaml:"init_timeout"`
	CommandTimeoutMS int      `json:"command_timeout" toml:"command_timeout" yaml:"command_timeout"`
}

// ToolConfig is one catalog entry: a named external CLI tool and how to
// drive it.
type ToolConfig struct {
	Name         string         `json:"name"`
	DisplayName  string         `json:"display_name"`
	Command      string         `json:"command"`
	Args         []string       `json:"args"`
	Capabilities []Capability   `json:"capabilities"`
	Enabled      bool           `json:"enabled"`
	Config       StatefulConfig `json:"config"`
}

// Stateful reports whether the tool is driven as a persistent session.
func (tc ToolConfig) Stateful() bool {
	return len(tc.Config.PromptPatterns) > 0
}

// Spec converts the catalog entry into an execution spec, converting
// millisecond timeouts to native durations.
func (tc ToolConfig) Spec() executor.Spec {
	return executor.Spec{
		Name:           tc.Name,
		Command:        tc.Command,
		Args:           tc.Args,
		PromptPatterns: tc.Config.PromptPatterns,
		InitTimeout:    time.Duration(tc.Config.InitTimeoutMS) * time.Millisecond,
		CommandTimeout: time.Duration(tc.Config.CommandTimeoutMS) * time.Millisecond,
	}
}

// Validate checks the structural invariants of a catalog entry.
func (tc ToolConfig) Validate() error {
	if strings.TrimSpace(tc.Name) == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if strings.ContainsAny(tc.Name, " \t\n") {
		return fmt.Errorf("tool name cannot contain whitespace: %q", tc.Name)
	}
	if strings.TrimSpace(tc.Command) == "" {
		return fmt.Errorf("tool %s: command cannot be empty", tc.Name)
	}
	if tc.Config.InitTimeoutMS < 0 {
		return fmt.Errorf("tool %s: init_timeout cannot be negative", tc.Name)
	}
	if tc.Config.CommandTimeoutMS < 0 {
		return fmt.Errorf("tool %s: command_timeout cannot be negative", tc.Name)
	}
	return nil
}
