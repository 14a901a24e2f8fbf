// Package ui renders the small interactive views the CLI needs: a
// device-enumeration table for -l/--list.
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vibeclient/vibe/internal/sink"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

// deviceListModel renders the enumerated output devices and exits on any key.
type deviceListModel struct {
	devices []sink.Device
}

func (m deviceListModel) Init() tea.Cmd { return nil }

func (m deviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case tea.KeyMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m deviceListModel) View() string {
	if len(m.devices) == 0 {
		return "no output devices found\n"
	}

	out := headerStyle.Render(fmt.Sprintf("%-24s %s", "NAME", "DESCRIPTION")) + "\n"
	for _, d := range m.devices {
		out += cellStyle.Render(fmt.Sprintf("%-24s %s", d.Name, d.Description)) + "\n"
	}
	return out + hintStyle.Render("\npress any key to exit\n")
}

// RunDeviceList renders devices via a bubbletea program and blocks until the
// user dismisses it.
func RunDeviceList(devices []sink.Device) error {
	_, err := tea.NewProgram(deviceListModel{devices: devices}).Run()
	return err
}
