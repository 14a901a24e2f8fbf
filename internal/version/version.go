// Package version holds build-time identity constants.
package version

const (
	// Product is the product name used in the generated systemd unit's
	// Description.
	Product = "Vibe"

	// Version is the software version string reported in Capabilities.
	Version = "0.1.0"

	// Manufacturer identifies the endpoint implementation.
	Manufacturer = "vibeclient"
)
