package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig points the global --config flag at a throwaway config
// whose data dir lives under a temp directory.
func writeTestConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()

	catalog := filepath.Join(dir, "tools.toml")
	catalogBody := `[tools.pytest]
display_name = "Pytest"
command = "pytest"
capabilities = ["testing"]
enabled = true
`
	require.NoError(t, os.WriteFile(catalog, []byte(catalogBody), 0644))

	cfgPath := filepath.Join(dir, "toolmux.json")
	cfgBody := `{
		"data_dir": "` + dir + `",
		"catalog_path": "` + catalog + `",
		"store_path": "` + filepath.Join(dir, "toolmux.db") + `"
	}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0644))

	prev := cfgFile
	cfgFile = cfgPath
	t.Cleanup(func() { cfgFile = prev })
}

func TestOpenRegistryLoadsCatalog(t *testing.T) {
	writeTestConfig(t)

	reg, store, err := openRegistry()
	require.NoError(t, err)
	defer store.Close()

	tools := reg.ListAll()
	require.Len(t, tools, 1)
	assert.Equal(t, "pytest", tools[0].Name)
}

func TestToolsRegisterAndDisable(t *testing.T) {
	writeTestConfig(t)

	cmd := GetRootCmd()
	cmd.SetArgs([]string{"tools", "register", "jq", "--command", "jq", "--capabilities", "testing"})
	require.NoError(t, cmd.Execute())

	reg, store, err := openRegistry()
	require.NoError(t, err)
	_, ok := reg.Get("jq")
	store.Close()
	assert.True(t, ok, "registered tool should survive reload")

	cmd.SetArgs([]string{"tools", "disable", "jq"})
	require.NoError(t, cmd.Execute())

	reg, store, err = openRegistry()
	require.NoError(t, err)
	_, ok = reg.Get("jq")
	store.Close()
	assert.False(t, ok, "disabled tool should stay hidden")
}

func TestToolsRegisterRequiresCommand(t *testing.T) {
	writeTestConfig(t)

	// Undo flag state left behind by earlier executions of the shared
	// command tree.
	flag := toolsRegisterCmd.Flag("command")
	flag.Changed = false
	registerCommand = ""

	cmd := GetRootCmd()
	cmd.SetArgs([]string{"tools", "register", "incomplete"})
	assert.Error(t, cmd.Execute())
}

func TestToolsListRuns(t *testing.T) {
	writeTestConfig(t)

	cmd := GetRootCmd()
	cmd.SetArgs([]string{"tools", "list"})
	assert.NoError(t, cmd.Execute())
}
