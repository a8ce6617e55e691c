// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"fftpassthrough/internal/audio"
	"fftpassthrough/internal/monitor"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeSource struct {
	cycles uint64
	levels []monitor.BandLevel
	err    error
}

func (f *fakeSource) Cycles() uint64      { return f.cycles }
func (f *fakeSource) LatencySamples() int { return 1024 }
func (f *fakeSource) SampleRate() float64 { return 48000 }
func (f *fakeSource) IsRecording() bool   { return true }
func (f *fakeSource) Levels() ([]monitor.BandLevel, error) {
	return f.levels, f.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestMeterPollsOnTick(t *testing.T) {
	src := &fakeSource{
		cycles: 1234,
		levels: []monitor.BandLevel{{Name: "bass", Level: 1}, {Name: "treble", Level: 0.001}},
	}
	m := NewMeterModel("FFT Passthrough", src, time.Millisecond)

	next, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick did not schedule the next refresh")
	}
	m = next.(MeterModel)

	// The model keeps its own copy of the levels.
	src.levels[0].Level = 0
	if m.levels[0].Level != 1 {
		t.Error("model shares the source's level slice")
	}

	view := m.View()
	for _, want := range []string{"FFT Passthrough", "1024 samples (21.3 ms)", "Cycles:    1234", "bass", "treble", "0.0 dB", "-60.0 dB"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMeterShowsLevelError(t *testing.T) {
	m := NewMeterModel("meter", &fakeSource{err: errors.New("tap busy")}, 0)
	if m.interval != DefaultRefresh {
		t.Errorf("interval = %s, want %s", m.interval, DefaultRefresh)
	}
	next, _ := m.Update(tickMsg(time.Now()))
	if view := next.(MeterModel).View(); !strings.Contains(view, "tap busy") {
		t.Errorf("view does not report the error:\n%s", view)
	}
}

func TestMeterQuitKeys(t *testing.T) {
	m := NewMeterModel("meter", &fakeSource{}, time.Second)
	for _, msg := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}} {
		if _, cmd := m.Update(msg); !isQuit(cmd) {
			t.Errorf("%q did not quit", msg.String())
		}
	}
	if _, cmd := m.Update(runes("x")); isQuit(cmd) {
		t.Error("x quit the meter")
	}
}

func TestBarLength(t *testing.T) {
	tests := []struct {
		level float64
		want  int
	}{
		{0, 0},
		{-1, 0},
		{0.001, 0},     // -60 dB
		{0.031623, 20}, // -30 dB
		{1, barWidth},
		{10, barWidth},
	}
	for _, tt := range tests {
		if got := barLength(tt.level); got != tt.want {
			t.Errorf("barLength(%g) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func testDevices() ([]audio.Device, error) {
	return []audio.Device{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100},
		{ID: 1, Name: "Mic", MaxInputChannels: 1, DefaultSampleRate: 48000},
	}, nil
}

func loadedDeviceModel(t *testing.T, filter DeviceFilter) DeviceListModel {
	t.Helper()
	m := NewDeviceListModel(testDevices, filter)
	msg := m.Init()()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	next, _ = next.Update(msg)
	return next.(DeviceListModel)
}

func TestDevicePickerSelectsInput(t *testing.T) {
	m := loadedDeviceModel(t, InputDevices)
	if !strings.Contains(m.View(), "[1] Mic (Input)") {
		t.Fatalf("view missing device:\n%s", m.View())
	}

	// The output-only device cannot be picked.
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if isQuit(cmd) {
		t.Fatal("picked a device the filter rejects")
	}

	next, _ = next.Update(runes("j"))
	next, cmd = next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !isQuit(cmd) {
		t.Fatal("enter on an input device did not quit")
	}
	if id, ok := next.(DeviceListModel).Picked(); !ok || id != 1 {
		t.Errorf("Picked() = %d, %v; want 1, true", id, ok)
	}
}

func TestDevicePickerQuitWithoutChoice(t *testing.T) {
	m := loadedDeviceModel(t, AnyDevice)
	next, cmd := m.Update(runes("q"))
	if !isQuit(cmd) {
		t.Fatal("q did not quit")
	}
	if _, ok := next.(DeviceListModel).Picked(); ok {
		t.Error("quitting picked a device")
	}
}

func TestDevicePickerLoadError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host") }, AnyDevice)
	next, _ := m.Update(m.Init()())
	if view := next.(DeviceListModel).View(); !strings.Contains(view, "no host") {
		t.Errorf("view does not report the error:\n%s", view)
	}
}
