// SPDX-License-Identifier: MIT
package stft

import (
	"errors"
	"fmt"

	"fftpassthrough/pkg/bitint"
)

// Engine sizing defaults: a 1024-sample window at 50% overlap, with a ring
// sixteen windows deep.
const (
	DefaultWindowSize = 1024
	DefaultHopSize    = 512
	DefaultCapacity   = 16384

	minWindowSize = 2
)

// ErrInvalidConfig is wrapped by every sizing or window error reported before
// streaming starts.
var ErrInvalidConfig = errors.New("invalid stft configuration")

// Config fixes the frame geometry of an Engine. It cannot change while
// streaming; a new geometry needs a new Engine.
type Config struct {
	WindowSize int        // W, samples per analysis window (power of 2)
	HopSize    int        // HOP, samples between successive windows, in (0, W]
	Capacity   int        // C, ring capacity in samples, a multiple of W and >= 2W
	Window     WindowFunc // analysis window, Rectangular for a pure passthrough
}

// DefaultConfig returns W=1024, HOP=512, C=16384 with a rectangular window.
func DefaultConfig() Config {
	return Config{
		WindowSize: DefaultWindowSize,
		HopSize:    DefaultHopSize,
		Capacity:   DefaultCapacity,
		Window:     Rectangular,
	}
}

// Validate reports the first configuration error, wrapped around
// ErrInvalidConfig.
func (c Config) Validate() error {
	if c.WindowSize < minWindowSize || !bitint.IsPowerOfTwo(c.WindowSize) {
		return fmt.Errorf("%w: window size must be a power of 2 >= %d, got %d (nearest %d)",
			ErrInvalidConfig, minWindowSize, c.WindowSize, bitint.NextPowerOfTwo(c.WindowSize))
	}
	if c.HopSize <= 0 || c.HopSize > c.WindowSize {
		return fmt.Errorf("%w: hop size must be in [1, %d], got %d", ErrInvalidConfig, c.WindowSize, c.HopSize)
	}
	if !bitint.IsMultipleOf(c.Capacity, c.WindowSize) || c.Capacity < 2*c.WindowSize {
		return fmt.Errorf("%w: ring capacity must be a multiple of %d and >= %d, got %d",
			ErrInvalidConfig, c.WindowSize, 2*c.WindowSize, c.Capacity)
	}
	if !c.Window.valid() {
		return fmt.Errorf("%w: unknown window function %d", ErrInvalidConfig, int(c.Window))
	}
	if _, err := overlapGains(c.Window.Coefficients(c.WindowSize), c.HopSize); err != nil {
		return err
	}
	return nil
}

// Overlap returns W - HOP, the number of samples shared by successive windows.
func (c Config) Overlap() int { return c.WindowSize - c.HopSize }
