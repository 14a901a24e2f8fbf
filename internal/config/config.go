// Package config assembles runtime configuration from the CLI surface.
// There is no file-based or environment configuration: flags are the only input.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/vibeclient/vibe/internal/logging"
)

// Backend selects the sink implementation.
type Backend string

const (
	BackendPulse    Backend = "pulse"
	BackendPipeWire Backend = "pipewire"
	BackendRodio    Backend = "rodio"
)

// Config is the fully-resolved set of runtime parameters.
type Config struct {
	Server        string // host[:port], empty => discovery
	Device        string
	List          bool
	Name          string
	System        Backend
	Quiet         bool
	CreateService bool
	LogLevel      logging.Level
}

// DefaultPort is the SlimProto server port.
const DefaultPort = 3483

// Parse builds a Config from os.Args in a single pflag.Parse() pass,
// supporting short and long aliases for every flag.
func Parse(args []string) (Config, error) {
	fs := pflag.NewFlagSet("vibe", pflag.ContinueOnError)

	server := fs.StringP("server", "s", "", "explicit server host[:port] (default: discovery)")
	device := fs.StringP("device", "o", "", "sink device name (default: backend default)")
	list := fs.BoolP("list", "l", false, "enumerate output devices and exit")
	name := fs.StringP("name", "n", "", `advertised name (default "Vibe", suffixed @hostname when resolvable)`)
	system := fs.StringP("system", "a", "", "backend: pulse|pipewire|rodio (default: first feature-enabled)")
	quiet := fs.BoolP("quiet", "q", false, "suppress desktop notifications")
	createService := fs.Bool("create-service", false, "write a user-scope systemd unit and exit")
	logLevel := fs.String("loglevel", "off", "trace|debug|info|warn|error|off")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server:        *server,
		Device:        *device,
		List:          *list,
		Name:          *name,
		System:        Backend(*system),
		Quiet:         *quiet,
		CreateService: *createService,
		LogLevel:      logging.Level(*logLevel),
	}

	if cfg.Name == "" {
		cfg.Name = defaultName()
	}

	if cfg.System == "" {
		cfg.System = defaultBackend()
	} else if cfg.System != BackendPulse && cfg.System != BackendPipeWire && cfg.System != BackendRodio {
		return Config{}, fmt.Errorf("unknown --system %q (want pulse|pipewire|rodio)", cfg.System)
	}

	return cfg, nil
}

// defaultName derives "Vibe" or "Vibe@hostname" when the hostname resolves.
func defaultName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "Vibe"
	}
	return fmt.Sprintf("Vibe@%s", host)
}

// defaultBackend picks the first feature-enabled backend. This build enables
// all three; rodio (the generic oto-based sink) is the most portable default.
func defaultBackend() Backend {
	return BackendRodio
}
