// Command vibe is a SlimProto playback endpoint: it discovers or connects to
// a Lyrion/Squeezebox-compatible music server, negotiates capabilities, and
// streams, decodes, and plays whatever tracks the server directs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	charmlog "github.com/charmbracelet/log"

	"github.com/vibeclient/vibe/internal/config"
	"github.com/vibeclient/vibe/internal/control"
	"github.com/vibeclient/vibe/internal/discovery"
	"github.com/vibeclient/vibe/internal/logging"
	"github.com/vibeclient/vibe/internal/notify"
	"github.com/vibeclient/vibe/internal/session"
	"github.com/vibeclient/vibe/internal/sink"
	"github.com/vibeclient/vibe/internal/state"
	"github.com/vibeclient/vibe/internal/svc"
	"github.com/vibeclient/vibe/internal/ui"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.New(cfg.LogLevel)

	switch {
	case cfg.CreateService:
		runCreateService()
	case cfg.List:
		runList(cfg, logger)
	default:
		if err := run(cfg, logger); err != nil {
			logger.Fatal("vibe exited", "err", err)
		}
	}
}

// runCreateService writes a systemd user unit for the current executable
// and its invoking arguments, then exits.
func runCreateService() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve executable path: %v\n", err)
		os.Exit(1)
	}

	path, err := svc.Write(svc.Options{ExecPath: execPath, Args: filterServiceFlags(os.Args[1:])})
	if err != nil {
		fmt.Fprintf(os.Stderr, "write service unit: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", path)
}

// filterServiceFlags drops --create-service from the args baked into the
// generated unit's ExecStart, so the installed service doesn't regenerate
// itself on every start.
func filterServiceFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--create-service" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// runList builds the configured backend just long enough to enumerate its
// output devices, renders them, and exits.
func runList(cfg config.Config, logger *charmlog.Logger) {
	global := state.NewGlobal()

	var (
		s   sink.Sink
		err error
	)
	switch cfg.System {
	case config.BackendPulse:
		s, err = sink.NewPulse(global, logger, cfg.Device)
	case config.BackendPipeWire:
		s, err = sink.NewPipeWire(global, logger)
	default:
		s = sink.NewGeneric(global, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "open backend %s: %v\n", cfg.System, err)
		os.Exit(1)
	}
	defer s.Close()

	devices, err := s.GetOutputDeviceNames()
	if err != nil {
		fmt.Fprintf(os.Stderr, "enumerate devices: %v\n", err)
		os.Exit(1)
	}

	if err := ui.RunDeviceList(devices); err != nil {
		fmt.Fprintf(os.Stderr, "render device list: %v\n", err)
		os.Exit(1)
	}
}

// run resolves the initial server endpoint, wires the Session and Control
// Core together, and blocks until a termination signal arrives.
func run(cfg config.Config, logger *charmlog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	endpoint, err := session.ResolveInitialEndpoint(ctx, cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("resolve server: %w", err)
	}
	logger.Info("resolved server", "endpoint", endpoint.Addr())

	advertiser := discovery.Advertise(cfg.Name, config.DefaultPort, logger)
	defer advertiser.Shutdown()

	global := state.NewGlobal()
	sess := session.New(endpoint, cfg.Name, logger)

	var notifier notify.Notifier = notify.Quiet{}
	if !cfg.Quiet {
		if d := notify.NewDesktop(cfg.Name); d != nil {
			notifier = d
		}
	}

	core := control.New(sess, global, cfg, notifier, logger)

	go sess.Run(ctx)
	core.Run(ctx)

	return nil
}
