// SPDX-License-Identifier: MIT
// Package tui implements the interactive input-device picker.
package tui

import (
	"fmt"
	"strings"

	"ledmeter/internal/source"

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

var (
	quitKeys   = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	upKeys     = key.NewBinding(key.WithKeys("up", "k"))
	downKeys   = key.NewBinding(key.WithKeys("down", "j"))
	enterKeys  = key.NewBinding(key.WithKeys("enter"))
	escapeKeys = key.NewBinding(key.WithKeys("esc"))
)

// CaptureRates are offered on the configuration screen.
var CaptureRates = []float64{16000, 22050, 44100, 48000, 96000}

type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Selection is the device and capture rate chosen in the picker.
type Selection struct {
	DeviceID    int
	DeviceName  string
	CaptureRate float64
}

// DeviceListModel is the Bubble Tea model for browsing input devices.
type DeviceListModel struct {
	fetch         func() ([]source.Device, error)
	devices       []source.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	sampleRateIndex int
	selection       *Selection
}

type devicesMsg struct {
	devices []source.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel lists the devices returned by fetch.
func NewDeviceListModel(fetch func() ([]source.Device, error)) DeviceListModel {
	return DeviceListModel{
		fetch:        fetch,
		activeScreen: ListScreen,
	}
}

func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			return m, tea.Quit
		}
		if m.err != nil {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, upKeys):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, downKeys):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, enterKeys):
				if len(m.devices) > 0 {
					m.activeScreen = ConfigScreen
					m.sampleRateIndex = closestRate(m.devices[m.selectedIndex].DefaultSampleRate)
				}
			}

		case ConfigScreen:
			switch {
			case key.Matches(msg, escapeKeys):
				m.activeScreen = ListScreen
			case key.Matches(msg, upKeys):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, downKeys):
				if m.sampleRateIndex < len(CaptureRates)-1 {
					m.sampleRateIndex++
				}
			case key.Matches(msg, enterKeys):
				d := m.devices[m.selectedIndex]
				m.selection = &Selection{
					DeviceID:    d.ID,
					DeviceName:  d.Name,
					CaptureRate: CaptureRates[m.sampleRateIndex],
				}
				return m, tea.Quit
			}
		}
		m.refresh()
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

// Selection returns the confirmed choice, or nil if the user quit.
func (m DeviceListModel) Selection() *Selection {
	return m.selection
}

func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Capture Settings")
		help = infoStyle.Render("↑/↓: Change Rate • Enter: Use Device • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		info := fmt.Sprintf("[%d] %s\n", device.ID, device.Name)
		if device.HostAPI != "" {
			info = fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, device.HostAPI)
		}
		info += fmt.Sprintf("    Input channels: %d\n", device.MaxInputChannels)
		info += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Device: %s\n\n", device.Name)
	sb.WriteString("Capture rate:\n")
	for i, rate := range CaptureRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func closestRate(rate float64) int {
	best := 0
	for i, r := range CaptureRates {
		if abs(r-rate) < abs(CaptureRates[best]-rate) {
			best = i
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// RunDevicePicker runs the picker full screen and returns the selection,
// or nil if the user quit without choosing.
func RunDevicePicker(fetch func() ([]source.Device, error)) (*Selection, error) {
	p := tea.NewProgram(NewDeviceListModel(fetch), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(DeviceListModel).Selection(), nil
}
