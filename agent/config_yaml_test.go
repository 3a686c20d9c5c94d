package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDumpLoadRoundTrip(t *testing.T) {
	cfg := Config{MaxInFlight: 4, ShutdownTimeout: 2 * time.Second, GopsAddr: "127.0.0.1:0"}

	data, err := cfg.Dump()
	require.NoError(t, err)

	loaded, err := LoadConfig(data, Config{})
	require.NoError(t, err)
	assert.Equal(t, cfg.MaxInFlight, loaded.MaxInFlight)
	assert.Equal(t, cfg.ShutdownTimeout, loaded.ShutdownTimeout)
	assert.Equal(t, cfg.GopsAddr, loaded.GopsAddr)
}
