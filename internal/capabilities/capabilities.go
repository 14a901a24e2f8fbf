// Package capabilities builds the ordered tag list advertised on connect.
package capabilities

import (
	"fmt"
	"strings"

	"github.com/vibeclient/vibe/internal/version"
)

// MaxSampleRate is advertised regardless of what any single backend can do;
// the decoder always produces F32 which every sink adapter accepts.
const MaxSampleRate = 192000

// Item is a single tagged capability entry.
type Item struct {
	Tag   string
	Value string
}

// Capabilities is the ordered sequence of tagged items built once per
// connection attempt.
type Capabilities struct {
	Items []Item
}

// Build assembles Capabilities for one connection attempt. syncGroupID is
// empty when none is known yet.
func Build(clientName, syncGroupID string) Capabilities {
	c := Capabilities{}
	c.add("Firmware", version.Version)
	c.add("MaxSampleRate", fmt.Sprintf("%d", MaxSampleRate))

	for _, format := range []string{"Pcm", "Mp3", "Aac", "Alc", "Ogg", "Flc"} {
		c.add(format, "1")
	}

	if syncGroupID != "" {
		c.add("SyncGroupId", syncGroupID)
	}

	c.add("ClientName", clientName)
	return c
}

func (c *Capabilities) add(tag, value string) {
	c.Items = append(c.Items, Item{Tag: tag, Value: value})
}

// Encode renders capabilities as the comma-separated HELO wire format
// ("Tag=Value,Tag=Value,...").
func (c Capabilities) Encode() string {
	parts := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Value == "1" {
			parts = append(parts, it.Tag)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", it.Tag, it.Value))
	}
	return strings.Join(parts, ",")
}
