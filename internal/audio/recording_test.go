// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestRecordingStartStopHotPath(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_recording.wav")
	engine := newTestEngine(t, 1, 1)

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	if !engine.IsRecording() {
		t.Error("Engine should be in recording state")
	}
	if engine.outputFile == nil || engine.wavEncoder == nil || engine.sampleBuf == nil {
		t.Fatal("Recording resources should be initialized")
	}
	if engine.sampleBuf.Format.NumChannels != 1 {
		t.Errorf("Buffer channels = %d, want 1", engine.sampleBuf.Format.NumChannels)
	}
	if len(engine.sampleBuf.Data) != testFrameSize {
		t.Errorf("Buffer size = %d, want %d", len(engine.sampleBuf.Data), testFrameSize)
	}

	const frames, impulseAt = 8 * testFrameSize, 100
	in := make([]float32, frames)
	in[impulseAt] = 1
	out := make([]float32, frames)
	for start := 0; start < frames; start += testFrameSize {
		engine.processInterleaved(in[start:start+testFrameSize], out[start:start+testFrameSize])
	}

	outputFile := engine.outputFile
	if err := engine.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if engine.IsRecording() || engine.outputFile != nil || engine.wavEncoder != nil {
		t.Error("Recording resources should be released after stopping")
	}
	if err := outputFile.Close(); err == nil {
		t.Error("File should already be closed")
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Recording file was not created: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode recording: %v", err)
	}
	if dec.SampleRate != testSampleRate || dec.BitDepth != 16 || dec.NumChans != 1 {
		t.Errorf("format = %d Hz, %d-bit, %d ch", dec.SampleRate, dec.BitDepth, dec.NumChans)
	}
	if len(buf.Data) != frames {
		t.Fatalf("recorded %d samples, want %d", len(buf.Data), frames)
	}
	for n, v := range buf.Data {
		want := 0
		if n == impulseAt+testLatency {
			want = 32767
		}
		if d := v - want; d < -1 || d > 1 {
			t.Fatalf("recorded sample %d = %d, want %d", n, v, want)
		}
	}
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		desc          string
		filename      string
		bitDepth      int
		isRecording   int32
		expectError   bool
		errorContains string
	}{
		{"Already recording", "valid.wav", 16, 1, true, "already recording"},
		{"Invalid path", "/nonexistent/path/file.wav", 16, 0, true, ""},
		{"Unsupported bit depth", "eight.wav", 8, 0, true, "bit depth"},
		{"Valid path", "test.wav", 24, 0, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			engine := newTestEngine(t, 1, 1)
			engine.config.Recording.BitDepth = tt.bitDepth
			atomic.StoreInt32(&engine.isRecording, tt.isRecording)

			filename := tt.filename
			if !filepath.IsAbs(filename) {
				filename = filepath.Join(dir, filename)
			}

			err := engine.StartRecording(filename)
			if err == nil {
				_ = engine.StopRecording()
			}

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.errorContains != "" && err != nil && !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.errorContains)
			}
		})
	}

	t.Run("Stop when not recording", func(t *testing.T) {
		if err := newTestEngine(t, 1, 1).StopRecording(); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})
}

func TestCloseEngineWithRecording(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_close_engine.wav")
	engine := newTestEngine(t, 1, 1)

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Failed to close engine: %v", err)
	}

	if engine.IsRecording() {
		t.Error("Engine should not be in recording state after Close()")
	}
	if engine.outputFile != nil || engine.wavEncoder != nil {
		t.Error("Recording resources should be released after Close()")
	}
}

func TestRecordSkipsWhileLocked(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "locked.wav")
	engine := newTestEngine(t, 1, 1)
	if err := engine.StartRecording(filename); err != nil {
		t.Fatal(err)
	}
	defer engine.StopRecording()

	block := make([]float32, testFrameSize)
	block[0] = 2 // clipped to full scale when written

	engine.recMu.Lock()
	engine.record(block)
	engine.recMu.Unlock()
	if engine.sampleBuf.Data[0] != 0 {
		t.Errorf("record wrote while the lock was held")
	}

	engine.record(block)
	if engine.sampleBuf.Data[0] != 32767 {
		t.Errorf("clipped sample = %d, want 32767", engine.sampleBuf.Data[0])
	}
}

func TestRecordingPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "recordings")
	now := time.Date(2025, 4, 13, 9, 5, 7, 0, time.UTC)

	path, err := RecordingPath(dir, now)
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	if want := filepath.Join(dir, "fftpassthrough_20250413_090507.wav"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("recording directory not created: %v", err)
	}
}

func BenchmarkRecordingProcessHotPath(b *testing.B) {
	engine := newTestEngine(b, 1, 1)
	if err := engine.StartRecording(filepath.Join(b.TempDir(), "bench_process.wav")); err != nil {
		b.Fatal(err)
	}
	defer engine.StopRecording()

	in := make([]float32, testFrameSize)
	out := make([]float32, testFrameSize)

	b.ReportAllocs()
	for b.Loop() {
		engine.processInterleaved(in, out)
	}
}
