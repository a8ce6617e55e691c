// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"math"
	"testing"

	"fftpassthrough/internal/config"
	"fftpassthrough/internal/plugin"
	"fftpassthrough/internal/stft"
)

const (
	testSampleRate = 44100
	testFrameSize  = 256
	testLatency    = stft.DefaultWindowSize
)

func newTestEngine(t testing.TB, inChannels, outChannels int) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Audio.FramesPerBuffer = testFrameSize
	cfg.Audio.InputChannels = inChannels
	cfg.Audio.OutputChannels = outChannels

	processor := plugin.New(stft.DefaultConfig(), nil)
	e, err := newEngine(cfg, processor)
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	if err := processor.Prepare(testSampleRate, testFrameSize); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return e
}

// interleave builds a frames x channels buffer where channel 0 is ch0 and the
// other channels carry a constant that the engine must ignore.
func interleave(ch0 []float32, channels int) []float32 {
	buf := make([]float32, len(ch0)*channels)
	for i, x := range ch0 {
		buf[i*channels] = x
		for c := 1; c < channels; c++ {
			buf[i*channels+c] = 0.5
		}
	}
	return buf
}

func TestProcessInterleavedMirrorsDelayedChannelZero(t *testing.T) {
	const frames, impulseAt = 8 * testFrameSize, 100
	e := newTestEngine(t, 2, 2)

	ch0 := make([]float32, frames)
	ch0[impulseAt] = 1
	in := interleave(ch0, 2)
	out := make([]float32, len(in))

	for start := 0; start < frames; start += testFrameSize {
		e.processInterleaved(in[2*start:2*(start+testFrameSize)], out[2*start:2*(start+testFrameSize)])
	}

	for n := 0; n < frames; n++ {
		left, right := out[2*n], out[2*n+1]
		if left != right {
			t.Fatalf("frame %d: channels differ (%g, %g)", n, left, right)
		}
		want := 0.0
		if n == impulseAt+testLatency {
			want = 1
		}
		if math.Abs(float64(left)-want) > 1e-4 {
			t.Fatalf("frame %d = %g, want %g", n, left, want)
		}
	}

	if want := uint64(frames / stft.DefaultHopSize); e.Cycles() != want {
		t.Errorf("Cycles() = %d, want %d", e.Cycles(), want)
	}
}

func TestProcessInterleavedOversizedBlock(t *testing.T) {
	const frames = 3*testFrameSize + 17

	ch0 := make([]float32, frames)
	for i := range ch0 {
		ch0[i] = float32(math.Sin(float64(i) * 0.05))
	}

	// One oversized callback against the same signal in prepared-size chunks.
	big := newTestEngine(t, 1, 1)
	gotBig := make([]float32, frames)
	big.processInterleaved(ch0, gotBig)

	chunked := newTestEngine(t, 1, 1)
	gotChunked := make([]float32, frames)
	for start := 0; start < frames; start += testFrameSize {
		end := min(start+testFrameSize, frames)
		chunked.processInterleaved(ch0[start:end], gotChunked[start:end])
	}

	for i := range gotBig {
		if gotBig[i] != gotChunked[i] {
			t.Fatalf("sample %d: %g != %g", i, gotBig[i], gotChunked[i])
		}
	}
}

func TestNewEngineRejectsLayouts(t *testing.T) {
	tests := []struct {
		name    string
		in, out int
	}{
		{"mono to stereo", 1, 2},
		{"stereo to mono", 2, 1},
		{"surround", 6, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Audio.InputChannels = tt.in
			cfg.Audio.OutputChannels = tt.out
			_, err := newEngine(cfg, plugin.New(stft.DefaultConfig(), nil))
			if !errors.Is(err, ErrUnsupportedLayout) {
				t.Errorf("newEngine() error = %v, want ErrUnsupportedLayout", err)
			}
		})
	}

	if _, err := newEngine(config.Default(), nil); err == nil {
		t.Error("expected error for nil processor")
	}
}

func TestEngineLatency(t *testing.T) {
	e := newTestEngine(t, 1, 1)
	if e.LatencySamples() != testLatency {
		t.Errorf("LatencySamples() = %d, want %d", e.LatencySamples(), testLatency)
	}
	if want := float64(testLatency) / testSampleRate; math.Abs(e.LatencySeconds()-want) > 1e-12 {
		t.Errorf("LatencySeconds() = %g, want %g", e.LatencySeconds(), want)
	}
	if e.SampleRate() != testSampleRate {
		t.Errorf("SampleRate() = %g", e.SampleRate())
	}
}

func TestEngineStopWithoutStart(t *testing.T) {
	e := newTestEngine(t, 1, 1)
	if err := e.Stop(); err != nil {
		t.Errorf("Stop() on idle engine = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() on idle engine = %v", err)
	}
}

func TestEngineDuplexStream(t *testing.T) {
	setupPortAudio(t)

	cfg := config.Default()
	processor := plugin.New(stft.DefaultConfig(), nil)
	e, err := NewEngine(cfg, processor)
	if err != nil {
		t.Skipf("No usable duplex devices: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Skipf("Cannot open duplex stream: %v", err)
	}
	if !processor.Prepared() {
		t.Error("processor not prepared after Start")
	}
	if err := e.Start(); err == nil {
		t.Error("second Start should fail")
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if processor.Prepared() {
		t.Error("processor still prepared after Stop")
	}
}

func TestProcessInterleavedHotPath(t *testing.T) {
	e := newTestEngine(t, 2, 2)
	in := interleave(make([]float32, testFrameSize), 2)
	out := make([]float32, len(in))

	allocs := testing.AllocsPerRun(100, func() {
		e.processInterleaved(in, out)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in processInterleaved, got %.1f", allocs)
	}
}

func BenchmarkProcessInterleaved(b *testing.B) {
	e := newTestEngine(b, 2, 2)
	in := interleave(make([]float32, testFrameSize), 2)
	out := make([]float32, len(in))

	b.ReportAllocs()
	for b.Loop() {
		e.processInterleaved(in, out)
	}
}
