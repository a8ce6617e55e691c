// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"fftpassthrough/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// DeviceFilter restricts which devices can be picked.
type DeviceFilter int

const (
	AnyDevice DeviceFilter = iota
	InputDevices
	OutputDevices
)

func (f DeviceFilter) accepts(d audio.Device) bool {
	switch f {
	case InputDevices:
		return d.MaxInputChannels > 0
	case OutputDevices:
		return d.MaxOutputChannels > 0
	default:
		return true
	}
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

type deviceKeys struct {
	up, down, pick, quit key.Binding
}

// DeviceListModel is a device browser. Enter picks the highlighted device
// when the filter accepts it.
type DeviceListModel struct {
	load     func() ([]audio.Device, error)
	filter   DeviceFilter
	keys     deviceKeys
	devices  []audio.Device
	selected int
	picked   int
	viewport viewport.Model
	ready    bool
	err      error
}

// NewDeviceListModel creates a browser over the devices returned by load.
func NewDeviceListModel(load func() ([]audio.Device, error), filter DeviceFilter) DeviceListModel {
	return DeviceListModel{
		load:   load,
		filter: filter,
		picked: -1,
		keys: deviceKeys{
			up:   key.NewBinding(key.WithKeys("up", "k")),
			down: key.NewBinding(key.WithKeys("down", "j")),
			pick: key.NewBinding(key.WithKeys("enter")),
			quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
		},
	}
}

// Init loads the device list.
func (m DeviceListModel) Init() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		devices, err := load()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Picked returns the chosen device ID, or false when the user quit.
func (m DeviceListModel) Picked() (int, bool) {
	return m.picked, m.picked >= 0
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case devicesMsg:
		m.devices = msg.devices
		m.viewport.SetContent(m.renderDevices())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.up):
			if m.selected > 0 {
				m.selected--
			}

		case key.Matches(msg, m.keys.down):
			if m.selected < len(m.devices)-1 {
				m.selected++
			}

		case key.Matches(msg, m.keys.pick):
			if m.selected < len(m.devices) && m.filter.accepts(m.devices[m.selected]) {
				m.picked = m.devices[m.selected].ID
				return m, tea.Quit
			}
		}
		m.viewport.SetContent(m.renderDevices())
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Render("Audio Device List")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		deviceType := ""
		switch {
		case device.MaxInputChannels > 0 && device.MaxOutputChannels > 0:
			deviceType = "Input/Output"
		case device.MaxInputChannels > 0:
			deviceType = "Input"
		case device.MaxOutputChannels > 0:
			deviceType = "Output"
		}

		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, deviceType)
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		switch {
		case i == m.selected && m.filter.accepts(device):
			deviceInfo = highlightStyle.Render(deviceInfo)
		case !m.filter.accepts(device):
			deviceInfo = emptyStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice runs the browser and returns the chosen device ID. ok is false
// when the user quit without choosing.
func PickDevice(load func() ([]audio.Device, error), filter DeviceFilter) (id int, ok bool, err error) {
	final, err := tea.NewProgram(NewDeviceListModel(load, filter), tea.WithAltScreen()).Run()
	if err != nil {
		return -1, false, err
	}
	m := final.(DeviceListModel)
	if m.err != nil {
		return -1, false, m.err
	}
	id, ok = m.Picked()
	return id, ok, nil
}
