// SPDX-License-Identifier: MIT
/*
Package monitor observes the spectra flowing through the STFT engine without
changing them, and publishes summaries to out-of-process consumers.

The Tap is a stft.Stage that runs on the audio thread. It only ever TryLocks
its snapshot buffer: when a reader holds the lock the frame is skipped rather
than waited for, so monitoring can never delay the audio callback.
*/
package monitor

import (
	"fmt"
	"math/cmplx"
	"sync"
	"sync/atomic"

	"fftpassthrough/internal/stft"
	"fftpassthrough/pkg/bitint"
)

// SpectrumSource provides the latest magnitude spectrum to readers off the
// audio thread.
type SpectrumSource interface {
	MagnitudesInto(dst []float64) error
	FrequencyForBin(bin int) float64
	BinCount() int
}

// Tap snapshots the magnitudes of bins 0..W/2 of every spectrum it sees.
type Tap struct {
	windowSize int
	sampleRate float64
	scale      float64 // 2/W, so a full-scale sinusoid peaks near 1

	mu        sync.Mutex
	magnitude []float64

	frames  atomic.Uint64
	skipped atomic.Uint64
}

// Compile-time checks for interface implementations.
var _ stft.Stage = (*Tap)(nil)
var _ SpectrumSource = (*Tap)(nil)

// NewTap returns a tap for spectra of windowSize bins at sampleRate.
func NewTap(windowSize int, sampleRate float64) (*Tap, error) {
	if windowSize < 2 || !bitint.IsPowerOfTwo(windowSize) {
		return nil, fmt.Errorf("monitor: window size must be a power of 2, got %d", windowSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("monitor: sample rate must be positive, got %f", sampleRate)
	}
	return &Tap{
		windowSize: windowSize,
		sampleRate: sampleRate,
		scale:      2 / float64(windowSize),
		magnitude:  make([]float64, windowSize/2+1),
	}, nil
}

// Process records the spectrum's magnitudes and returns it unchanged.
func (t *Tap) Process(spectrum []complex128) []complex128 {
	if !t.mu.TryLock() {
		t.skipped.Add(1)
		return spectrum
	}
	for i := range t.magnitude {
		t.magnitude[i] = cmplx.Abs(spectrum[i]) * t.scale
	}
	t.mu.Unlock()
	t.frames.Add(1)
	return spectrum
}

// MagnitudesInto copies the latest snapshot into dst, which must hold
// exactly BinCount values.
func (t *Tap) MagnitudesInto(dst []float64) error {
	if len(dst) != len(t.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dst), len(t.magnitude))
	}
	t.mu.Lock()
	copy(dst, t.magnitude)
	t.mu.Unlock()
	return nil
}

// Magnitudes returns a copy of the latest snapshot. It allocates; use
// MagnitudesInto on polling paths.
func (t *Tap) Magnitudes() []float64 {
	dst := make([]float64, len(t.magnitude))
	_ = t.MagnitudesInto(dst)
	return dst
}

// FrequencyForBin returns the centre frequency of bin in Hz, 0 when out of
// range.
func (t *Tap) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= len(t.magnitude) {
		return 0
	}
	return float64(bin) * t.sampleRate / float64(t.windowSize)
}

// BinCount is W/2+1.
func (t *Tap) BinCount() int { return len(t.magnitude) }

func (t *Tap) SampleRate() float64 { return t.sampleRate }
func (t *Tap) WindowSize() int     { return t.windowSize }

// Frames counts snapshots taken.
func (t *Tap) Frames() uint64 { return t.frames.Load() }

// Skipped counts spectra not recorded because a reader held the snapshot.
func (t *Tap) Skipped() uint64 { return t.skipped.Load() }
