package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability("testing")
	require.NoError(t, err)
	assert.Equal(t, CapTesting, c)

	c, err = ParseCapability("  Dev_Ops ")
	require.NoError(t, err)
	assert.Equal(t, CapDevOps, c)

	_, err = ParseCapability("time-travel")
	assert.Error(t, err)
}

func TestParseCapabilityLegacyAliases(t *testing.T) {
	cases := map[string]Capability{
		"architect":                CapArchitecture,
		"backend_developer":        CapBackendDev,
		"secondary-developer":      CapSecondaryDev,
		"technical_task_performer": CapTechnicalExecution,
		"orchestrator":             CapOrchestration,
		"ui_designer":              CapUIDesign,
	}
	for in, want := range cases {
		c, err := ParseCapability(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, c, in)
	}
}

func TestParseCapabilities(t *testing.T) {
	caps, err := ParseCapabilities([]string{"testing", "orchestrator"})
	require.NoError(t, err)
	assert.Equal(t, []Capability{CapTesting, CapOrchestration}, caps)

	_, err = ParseCapabilities([]string{"testing", "nope"})
	assert.Error(t, err)
}

func TestHasCapability(t *testing.T) {
	set := []Capability{CapTesting, CapDevOps}
	assert.True(t, HasCapability(set, CapTesting))
	assert.False(t, HasCapability(set, CapUIDesign))
	assert.False(t, HasCapability(nil, CapTesting))
}
