package executor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRuntime(t *testing.T) {
	assert.Equal(t, FamilyPython, ClassifyRuntime("python3"))
	assert.Equal(t, FamilyPython, ClassifyRuntime("/usr/local/bin/python3.12"))
	assert.Equal(t, FamilyNode, ClassifyRuntime("node"))
	assert.Equal(t, FamilyNode, ClassifyRuntime("/opt/node-v20/bin/node"))
	assert.Equal(t, FamilyShell, ClassifyRuntime("sh"))
	assert.Equal(t, FamilyShell, ClassifyRuntime("gemini"))
	assert.Equal(t, FamilyShell, ClassifyRuntime("/usr/bin/unknown-tool"))
}

func TestSentinelPayloadPerFamily(t *testing.T) {
	assert.Equal(t, "x=1\nprint('MARK')\n", sentinelPayload("x=1", "MARK", FamilyPython))
	assert.Equal(t, "let x=1\nconsole.log('MARK')\n", sentinelPayload("let x=1", "MARK", FamilyNode))
	assert.Equal(t, "ls\necho MARK\n", sentinelPayload("ls", "MARK", FamilyShell))
}

func TestSentinelPayloadUnknownFamilyFallsBackToShell(t *testing.T) {
	assert.Equal(t, "ls\necho MARK\n", sentinelPayload("ls", "MARK", RuntimeFamily("fortran")))
}

func TestRegisterSentinelBuilder(t *testing.T) {
	family := RuntimeFamily("lua")
	RegisterSentinelBuilder(family, func(command, sentinel string) string {
		return command + "\nprint(\"" + sentinel + "\")\n"
	})

	assert.Equal(t, "x\nprint(\"MARK\")\n", sentinelPayload("x", "MARK", family))
}

func TestNewSentinelUniqueAndWellFormed(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := newSentinel()
		assert.True(t, strings.HasPrefix(s, "__TOOLMUX_END_"))
		assert.True(t, strings.HasSuffix(s, "__"))
		assert.False(t, seen[s], "sentinel %q repeated", s)
		seen[s] = true

		tok := strings.TrimSuffix(strings.TrimPrefix(s, "__TOOLMUX_END_"), "__")
		assert.Len(t, tok, 8)
		for _, r := range tok {
			assert.Contains(t, sentinelAlphabet, string(r))
		}
	}
}
