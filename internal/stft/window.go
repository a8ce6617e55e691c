// SPDX-License-Identifier: MIT
package stft

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the analysis window applied before the forward transform.
type WindowFunc int

// Available analysis windows. Rectangular, the zero value, leaves the window
// untouched and is what a pure passthrough uses.
const (
	Rectangular WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// minOverlapSum is the smallest per-offset window sum the overlap-add
// normalisation accepts before treating the configuration as degenerate.
const minOverlapSum = 1e-3

var windowNames = map[WindowFunc]string{
	Rectangular:     "rectangular",
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

// String returns the canonical lower-case window name.
func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

func (w WindowFunc) valid() bool {
	_, ok := windowNames[w]
	return ok
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. An empty
// name selects Rectangular. Unknown names return Rectangular and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rect", "rectangular", "none":
		return Rectangular, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Rectangular, fmt.Errorf("%w: unknown window function %q", ErrInvalidConfig, name)
	}
}

// Coefficients returns n window coefficients.
func (w WindowFunc) Coefficients(n int) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch w {
	case Rectangular:
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	}
	return coeffs
}

// overlapGains returns, for every offset i in a window, the factor that turns
// an unnormalised inverse transform into its share of the reconstructed
// signal: 1/W for the transform pair times 1/Σ w[j] over all offsets j ≡ i
// (mod hop), the coefficients that land on the same output sample once
// successive windows are overlap-added.
func overlapGains(coeffs []float64, hop int) ([]float64, error) {
	size := len(coeffs)
	sums := make([]float64, hop)
	for i, c := range coeffs {
		sums[i%hop] += c
	}
	for offset, s := range sums {
		if math.Abs(s) < minOverlapSum {
			return nil, fmt.Errorf("%w: window does not overlap-add to a usable gain at hop %d (offset %d sums to %g)",
				ErrInvalidConfig, hop, offset, s)
		}
	}

	gains := make([]float64, size)
	for i := range gains {
		gains[i] = 1 / (float64(size) * sums[i%hop])
	}
	return gains, nil
}
