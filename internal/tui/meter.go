// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"fftpassthrough/internal/monitor"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Meter display range and refresh defaults.
const (
	DefaultRefresh = 50 * time.Millisecond
	floorDB        = -60.0
	barWidth       = 40
)

var (
	labelStyle = lipgloss.NewStyle().Width(8)
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3C3C3C"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E05252"))
)

// Source is what the meter polls on every refresh.
type Source interface {
	Cycles() uint64
	LatencySamples() int
	SampleRate() float64
	IsRecording() bool
	Levels() ([]monitor.BandLevel, error)
}

type tickMsg time.Time

type meterKeys struct {
	quit key.Binding
}

// MeterModel shows the running engine: latency, cycle count and band levels.
type MeterModel struct {
	src      Source
	title    string
	interval time.Duration
	keys     meterKeys

	cycles    uint64
	recording bool
	levels    []monitor.BandLevel
	err       error
}

// NewMeterModel polls src every interval (DefaultRefresh when zero).
func NewMeterModel(title string, src Source, interval time.Duration) MeterModel {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	return MeterModel{
		src:      src,
		title:    title,
		interval: interval,
		keys: meterKeys{
			quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
	}
}

func (m MeterModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh loop.
func (m MeterModel) Init() tea.Cmd {
	return m.tick()
}

// Update polls the source on every tick and quits on q or ctrl+c.
func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}

	case tickMsg:
		m.cycles = m.src.Cycles()
		m.recording = m.src.IsRecording()
		levels, err := m.src.Levels()
		m.err = err
		if err == nil {
			// The source reuses its slice.
			m.levels = append(m.levels[:0], levels...)
		}
		return m, m.tick()
	}
	return m, nil
}

// View renders the meter.
func (m MeterModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	latency := m.src.LatencySamples()
	fmt.Fprintf(&sb, "Latency:   %d samples (%.1f ms)\n", latency, 1000*float64(latency)/m.src.SampleRate())
	fmt.Fprintf(&sb, "Cycles:    %d\n", m.cycles)
	if m.recording {
		sb.WriteString("Recording: " + highlightStyle.Render("on") + "\n")
	} else {
		sb.WriteString("Recording: off\n")
	}
	sb.WriteString("\n")

	if m.err != nil {
		sb.WriteString(errStyle.Render("Levels unavailable: "+m.err.Error()) + "\n")
	}
	for _, l := range m.levels {
		filled := barLength(l.Level)
		fmt.Fprintf(&sb, "%s %s%s %6.1f dB\n",
			labelStyle.Render(l.Name),
			barStyle.Render(strings.Repeat("█", filled)),
			emptyStyle.Render(strings.Repeat("░", barWidth-filled)),
			toDB(l.Level))
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("q: Quit"))
	return sb.String()
}

func toDB(level float64) float64 {
	if level <= 0 {
		return floorDB
	}
	return math.Max(floorDB, 20*math.Log10(level))
}

// barLength maps floorDB..0 dB onto 0..barWidth cells.
func barLength(level float64) int {
	n := int(math.Round((toDB(level) - floorDB) / -floorDB * barWidth))
	return max(0, min(barWidth, n))
}

// RunMeter runs the meter until the user quits.
func RunMeter(title string, src Source, interval time.Duration) error {
	_, err := tea.NewProgram(NewMeterModel(title, src, interval), tea.WithAltScreen()).Run()
	return err
}
