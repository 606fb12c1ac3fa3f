package registry

import (
	"fmt"
	"strings"
)

// Capability is a routing tag describing what kind of work a tool is
// suited for. Callers select tools by capability instead of by fixed
// identity. The set is closed but extensible: unknown tags are rejected
// at registration time unless added here.
type Capability string

const (
	CapTesting             Capability = "testing"
	CapDevOps              Capability = "dev-ops"
	CapImplementation      Capability = "implementation"
	CapArchitecture        Capability = "architecture"
	CapBackendDev          Capability = "backend-implementation"
	CapAPIImplementation   Capability = "api-implementation"
	CapSecondaryDev        Capability = "secondary-development"
	CapTechnicalExecution  Capability = "technical-execution"
	CapOrchestration       Capability = "orchestration"
	CapCodebaseAnalysis    Capability = "codebase-analysis"
	CapUIDesign            Capability = "ui-design"
	CapVersionControl      Capability = "version-control"
	CapBrowserAutomation   Capability = "browser-automation"
)

var allCapabilities = map[Capability]bool{
	CapTesting:            true,
	CapDevOps:             true,
	CapImplementation:     true,
	CapArchitecture:       true,
	CapBackendDev:         true,
	CapAPIImplementation:  true,
	CapSecondaryDev:       true,
	CapTechnicalExecution: true,
	CapOrchestration:      true,
	CapCodebaseAnalysis:   true,
	CapUIDesign:           true,
	CapVersionControl:     true,
	CapBrowserAutomation:  true,
}

// legacy catalog spellings kept for older tools.toml files
var capabilityAliases = map[string]Capability{
	"architect":                CapArchitecture,
	"backend-developer":        CapBackendDev,
	"secondary-developer":      CapSecondaryDev,
	"technical-task-performer": CapTechnicalExecution,
	"orchestrator":             CapOrchestration,
	"ui-designer":              CapUIDesign,
}

// ParseCapability normalizes and validates a capability tag. Underscores
// are accepted and canonicalized to dashes.
func ParseCapability(s string) (Capability, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "_", "-")

	if alias, ok := capabilityAliases[norm]; ok {
		return alias, nil
	}

	c := Capability(norm)
	if !allCapabilities[c] {
		return "", fmt.Errorf("unknown capability: %q", s)
	}
	return c, nil
}

// ParseCapabilities parses a list of tags, failing on the first unknown.
func ParseCapabilities(tags []string) ([]Capability, error) {
	caps := make([]Capability, 0, len(tags))
	for _, tag := range tags {
		c, err := ParseCapability(tag)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// HasCapability reports whether the set contains the given tag.
func HasCapability(set []Capability, want Capability) bool {
	for _, c := range set {
		if c == want {
			return true
		}
	}
	return false
}
