// Package svc generates the systemd user-scope unit file written by
// --create-service.
package svc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/vibeclient/vibe/internal/version"
)

const unitTemplate = `# Generated on %s
[Unit]
Description=%s network audio playback endpoint
After=network-online.target sound.target
Wants=network-online.target

[Service]
ExecStart=%s
Restart=on-failure
RestartSec=2

[Install]
WantedBy=default.target
`

// Options carries the flags the generated unit's ExecStart line reuses.
type Options struct {
	ExecPath string
	Args     []string
}

// Render builds the unit file content. The "Generated on" comment is
// timestamped with lestrrat-go/strftime.
func Render(opts Options) (string, error) {
	stamp, err := strftime.Format("%Y-%m-%d %H:%M:%S", time.Now())
	if err != nil {
		return "", fmt.Errorf("svc: format timestamp: %w", err)
	}

	execLine := opts.ExecPath
	if len(opts.Args) > 0 {
		execLine = execLine + " " + strings.Join(opts.Args, " ")
	}

	return fmt.Sprintf(unitTemplate, stamp, version.Product, execLine), nil
}

// UnitPath returns the conventional user-unit install location
// ($XDG_CONFIG_HOME/systemd/user/vibe.service).
func UnitPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("svc: resolve home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "systemd", "user", "vibe.service"), nil
}

// Write renders and writes the unit file, creating parent directories as needed.
func Write(opts Options) (string, error) {
	content, err := Render(opts)
	if err != nil {
		return "", err
	}

	path, err := UnitPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("svc: create unit directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("svc: write unit file: %w", err)
	}
	return path, nil
}
