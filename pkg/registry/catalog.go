package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// catalogEntry is the on-disk shape of one tool, shared between the
// TOML and YAML catalog formats:
//
//	[tools.gemini-cli]
//	display_name = "Gemini CLI"
//	command = "gemini"
//	args = ["--interactive"]
//	capabilities = ["architecture", "codebase-analysis"]
//	enabled = true
//	[tools.gemini-cli.config]
//	prompt_patterns = ["> "]
//	init_timeout = 5000
//	command_timeout = 30000
type catalogEntry struct {
	DisplayName  string         `toml:"display_name" yaml:"display_name"`
	Command      string         `toml:"command" yaml:"command"`
	Args         []string       `toml:"args" yaml:"args"`
	Capabilities []string       `toml:"capabilities" yaml:"capabilities"`
	Enabled      bool           `toml:"enabled" yaml:"enabled"`
	Config       StatefulConfig `toml:"config" yaml:"config"`
}

type catalogFile struct {
	Tools map[string]catalogEntry `toml:"tools" yaml:"tools"`
}

// LoadCatalog reads a declarative tool catalog. The format is selected
// by extension: .toml, or .yaml/.yml.
func LoadCatalog(path string) (map[string]ToolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var file catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse TOML catalog %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML catalog %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", filepath.Ext(path))
	}

	tools := make(map[string]ToolConfig, len(file.Tools))
	for name, entry := range file.Tools {
		caps, err := ParseCapabilities(entry.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}

		tc := ToolConfig{
			Name:         name,
			DisplayName:  entry.DisplayName,
			Command:      entry.Command,
			Args:         entry.Args,
			Capabilities: caps,
			Enabled:      entry.Enabled,
			Config:       entry.Config,
		}
		if err := tc.Validate(); err != nil {
			return nil, err
		}
		tools[name] = tc
	}

	return tools, nil
}
