package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watthouse/agent/selector"
)

func TestParseShutdownAndStop(t *testing.T) {
	for _, line := range []string{"shutdown", "stop"} {
		cmd, err := Parse(line)
		require.NoError(t, err)
		assert.Equal(t, CmdShutdown, cmd.Kind)
	}
}

// S4: text command parsing.
func TestParseSetPeriod(t *testing.T) {
	cmd, err := Parse("control sources/plugin/src1 set-period 10ms")
	require.NoError(t, err)
	assert.Equal(t, CmdConfigure, cmd.Kind)
	assert.Equal(t, VerbSetPeriod, cmd.Verb)
	assert.Equal(t, 10*time.Millisecond, cmd.Duration)

	expected, err := selector.Parse("sources/plugin/src1")
	require.NoError(t, err)
	assert.Equal(t, expected, cmd.Pattern)
}

func TestParseVerbAliases(t *testing.T) {
	cases := map[string]Verb{
		"pause": VerbPause, "disable": VerbPause,
		"resume": VerbResume, "enable": VerbResume,
		"stop": VerbStop, "trigger-now": VerbTriggerNow,
	}
	for alias, want := range cases {
		cmd, err := Parse("control out/x/y " + alias)
		require.NoError(t, err)
		assert.Equal(t, want, cmd.Verb)
	}
}

func TestParseRejectsMissingDuration(t *testing.T) {
	_, err := Parse("control src/x/y set-period")
	assert.Error(t, err)
}

func TestParseRejectsUnknownVerb(t *testing.T) {
	_, err := Parse("control src/x/y frobnicate")
	assert.Error(t, err)
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse("control src/x/y set-period soon")
	assert.Error(t, err)
}
