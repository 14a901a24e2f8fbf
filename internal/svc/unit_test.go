package svc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIncludesExecLine(t *testing.T) {
	content, err := Render(Options{ExecPath: "/usr/local/bin/vibe", Args: []string{"-s", "slimserver.local"}})
	require.NoError(t, err)

	assert.Contains(t, content, "ExecStart=/usr/local/bin/vibe -s slimserver.local")
	assert.Contains(t, content, "[Unit]")
	assert.Contains(t, content, "[Service]")
	assert.Contains(t, content, "[Install]")
	assert.Contains(t, content, "Generated on")
}

func TestRenderWithoutArgs(t *testing.T) {
	content, err := Render(Options{ExecPath: "/usr/local/bin/vibe"})
	require.NoError(t, err)
	assert.Contains(t, content, "ExecStart=/usr/local/bin/vibe\n")
}

func TestUnitPathUsesXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgtest")
	path, err := UnitPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdgtest/systemd/user/vibe.service", path)
}
