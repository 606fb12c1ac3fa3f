// Package doctor verifies that the external CLI tools named in the
// catalog are actually installed and recent enough to drive.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/okafor/toolmux/pkg/registry"
)

// Status classifies the outcome of a single tool check.
type Status string

const (
	StatusOK             Status = "ok"
	StatusMissing        Status = "missing"
	StatusOutdated       Status = "outdated"
	StatusVersionUnknown Status = "version-unknown"
)

// CheckResult is the outcome of probing one tool binary.
type CheckResult struct {
	Tool       string `json:"tool"`
	Command    string `json:"command"`
	Path       string `json:"path,omitempty"`
	Version    string `json:"version,omitempty"`
	MinVersion string `json:"min_version,omitempty"`
	Status     Status `json:"status"`
	Detail     string `json:"detail,omitempty"`
}

// Checker probes tool binaries on PATH. The lookup and version probes
// are injectable for tests.
type Checker struct {
	minVersions map[string]string
	lookPath    func(file string) (string, error)
	runVersion  func(ctx context.Context, path string) (string, error)
	logger      zerolog.Logger
}

// NewChecker creates a checker. minVersions maps tool name to the lowest
// acceptable semver; tools absent from the map only get an existence
// check.
func NewChecker(minVersions map[string]string, logger zerolog.Logger) *Checker {
	return &Checker{
		minVersions: minVersions,
		lookPath:    exec.LookPath,
		runVersion:  probeVersion,
		logger:      logger.With().Str("component", "doctor").Logger(),
	}
}

// CheckTools checks every enabled tool in the given catalog entries.
func (c *Checker) CheckTools(ctx context.Context, tools []registry.ToolConfig) []CheckResult {
	results := make([]CheckResult, 0, len(tools))
	for _, tool := range tools {
		if !tool.Enabled {
			continue
		}
		results = append(results, c.CheckCommand(ctx, tool.Name, tool.Command))
	}
	return results
}

// CheckCommand checks a single named binary.
func (c *Checker) CheckCommand(ctx context.Context, tool, command string) CheckResult {
	result := CheckResult{
		Tool:       tool,
		Command:    command,
		MinVersion: c.minVersions[tool],
	}

	path, err := c.lookPath(command)
	if err != nil {
		result.Status = StatusMissing
		result.Detail = fmt.Sprintf("%s not found on PATH", command)
		c.logger.Warn().Str("tool", tool).Str("command", command).Msg("Tool binary missing")
		return result
	}
	result.Path = path

	output, err := c.runVersion(ctx, path)
	if err != nil {
		result.Status = StatusVersionUnknown
		result.Detail = fmt.Sprintf("version probe failed: %v", err)
		return result
	}

	version, err := parseVersion(output)
	if err != nil {
		result.Status = StatusVersionUnknown
		result.Detail = err.Error()
		return result
	}
	result.Version = version.String()

	if result.MinVersion != "" {
		min, err := semver.NewVersion(result.MinVersion)
		if err != nil {
			result.Status = StatusVersionUnknown
			result.Detail = fmt.Sprintf("invalid minimum version %q: %v", result.MinVersion, err)
			return result
		}
		if version.LessThan(min) {
			result.Status = StatusOutdated
			result.Detail = fmt.Sprintf("%s %s is older than required %s", tool, version, min)
			c.logger.Warn().
				Str("tool", tool).
				Str("version", version.String()).
				Str("min_version", min.String()).
				Msg("Tool version below minimum")
			return result
		}
	}

	result.Status = StatusOK
	return result
}

// Healthy reports whether every result is usable (missing or outdated
// tools count as unhealthy, an unparseable version does not).
func Healthy(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusMissing || r.Status == StatusOutdated {
			return false
		}
	}
	return true
}

var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// parseVersion extracts the first dotted version number from probe
// output like "git version 2.43.0" or "v20.11.1".
func parseVersion(output string) (*semver.Version, error) {
	match := versionPattern.FindString(output)
	if match == "" {
		return nil, fmt.Errorf("no version number in output %q", strings.TrimSpace(firstLine(output)))
	}
	version, err := semver.NewVersion(match)
	if err != nil {
		return nil, fmt.Errorf("unparseable version %q: %w", match, err)
	}
	return version, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func probeVersion(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
