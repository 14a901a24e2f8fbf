// Package notify is the desktop-notification collaborator the control core
// calls once per track-start. Only the interface and a minimal notify-send
// shellout live here.
package notify

import (
	"os/exec"

	"github.com/vibeclient/vibe/internal/decode"
)

// Notifier is invoked once per track with the decoder's first metadata
// revision.
type Notifier interface {
	Notify(meta decode.Metadata)
}

// Desktop shells out to notify-send, the de facto desktop-notification CLI
// on Linux (libnotify's reference client). Missing notify-send degrades to
// a silent no-op rather than an error, matching the --quiet flag's intent.
type Desktop struct {
	appName string
}

// NewDesktop constructs a Desktop notifier, or nil if notify-send isn't
// available (GetOutputDeviceNames-style "fail soft on missing tool").
func NewDesktop(appName string) *Desktop {
	if _, err := exec.LookPath("notify-send"); err != nil {
		return nil
	}
	return &Desktop{appName: appName}
}

func (d *Desktop) Notify(meta decode.Metadata) {
	if d == nil {
		return
	}
	title := meta.Title
	if title == "" {
		return
	}
	body := meta.Artist
	if meta.Album != "" {
		if body != "" {
			body += " — "
		}
		body += meta.Album
	}
	cmd := exec.Command("notify-send", "-a", d.appName, title, body)
	_ = cmd.Run()
}

// Quiet discards every notification.
type Quiet struct{}

func (Quiet) Notify(decode.Metadata) {}
