package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.Server)
	assert.False(t, cfg.List)
	assert.False(t, cfg.Quiet)
	assert.Equal(t, BackendRodio, cfg.System)
	assert.NotEmpty(t, cfg.Name)
}

func TestParseShortAndLongFlags(t *testing.T) {
	cfg, err := Parse([]string{"-s", "192.168.1.5:3483", "-n", "Kitchen", "-q"})
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.5:3483", cfg.Server)
	assert.Equal(t, "Kitchen", cfg.Name)
	assert.True(t, cfg.Quiet)

	cfg2, err := Parse([]string{"--server", "192.168.1.5:3483", "--name", "Kitchen"})
	require.NoError(t, err)
	assert.Equal(t, cfg.Server, cfg2.Server)
	assert.Equal(t, cfg.Name, cfg2.Name)
}

func TestParseRejectsUnknownSystem(t *testing.T) {
	_, err := Parse([]string{"--system", "dsp"})
	assert.Error(t, err)
}

func TestParseAcceptsEachKnownSystem(t *testing.T) {
	for _, s := range []string{"pulse", "pipewire", "rodio"} {
		cfg, err := Parse([]string{"--system", s})
		require.NoError(t, err)
		assert.Equal(t, Backend(s), cfg.System)
	}
}
