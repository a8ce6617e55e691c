// SPDX-License-Identifier: MIT
package stft

import (
	"fmt"

	"fftpassthrough/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform is the forward/inverse transform pair used by every cycle.
//
// The FFT plan and its complex scratch are created once, when the engine is
// prepared, and reused for every window. Forward and Inverse never allocate
// when given destination slices of the right length.
type Transform struct {
	size    int
	plan    *fourier.CmplxFFT
	scratch []complex128 // complex view of the real window / inverse output
}

// NewTransform creates a transform pair of the given length. The length must
// be a power of two of at least 2.
func NewTransform(size int) (*Transform, error) {
	if size < 2 || !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("%w: transform size must be a power of 2 >= 2, got %d", ErrInvalidConfig, size)
	}

	return &Transform{
		size:    size,
		plan:    fourier.NewCmplxFFT(size),
		scratch: make([]complex128, size),
	}, nil
}

// Size returns the transform length W.
func (t *Transform) Size() int { return t.size }

// Forward transforms W real samples into W complex bins, placing them in dst.
// The full complex layout is kept: bins above W/2 mirror the lower half as
// complex conjugates for real input. If dst is nil a new slice is allocated.
func (t *Transform) Forward(dst []complex128, window []float64) []complex128 {
	if len(window) != t.size {
		panic(fmt.Sprintf("stft: forward input length %d, want %d", len(window), t.size))
	}
	for i, x := range window {
		t.scratch[i] = complex(x, 0)
	}
	return t.plan.Coefficients(dst, t.scratch)
}

// Inverse transforms W complex bins back into W real samples, placing them in
// dst. The result is not normalised: callers divide by W. Imaginary residue
// left by a non-Hermitian spectrum is discarded. If dst is nil a new slice is
// allocated.
func (t *Transform) Inverse(dst []float64, spectrum []complex128) []float64 {
	if len(spectrum) != t.size {
		panic(fmt.Sprintf("stft: inverse input length %d, want %d", len(spectrum), t.size))
	}
	if dst == nil {
		dst = make([]float64, t.size)
	} else if len(dst) != t.size {
		panic(fmt.Sprintf("stft: inverse output length %d, want %d", len(dst), t.size))
	}

	t.plan.Sequence(t.scratch, spectrum)
	for i := range dst {
		dst[i] = real(t.scratch[i])
	}
	return dst
}
