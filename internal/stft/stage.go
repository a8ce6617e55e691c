// SPDX-License-Identifier: MIT
package stft

// Stage is the frequency-domain step between the forward and inverse
// transforms. Process receives the W bins of the current window and returns
// the W bins to resynthesise; it may edit the slice in place and return it.
//
// Process runs on the audio thread once per hop. Implementations must not
// allocate, block or retain the slice past the call.
type Stage interface {
	Process(spectrum []complex128) []complex128
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc func(spectrum []complex128) []complex128

// Process calls f(spectrum).
func (f StageFunc) Process(spectrum []complex128) []complex128 { return f(spectrum) }

type identity struct{}

func (identity) Process(spectrum []complex128) []complex128 { return spectrum }

// Identity passes the spectrum through unmodified.
var Identity Stage = identity{}

type chain []Stage

func (c chain) Process(spectrum []complex128) []complex128 {
	for _, s := range c {
		spectrum = s.Process(spectrum)
	}
	return spectrum
}

// Chain runs stages in order, feeding each one the output of the previous.
// Nil stages are skipped. An empty chain behaves like Identity.
func Chain(stages ...Stage) Stage {
	c := make(chain, 0, len(stages))
	for _, s := range stages {
		if s != nil {
			c = append(c, s)
		}
	}
	if len(c) == 0 {
		return Identity
	}
	if len(c) == 1 {
		return c[0]
	}
	return c
}

var (
	_ Stage = StageFunc(nil)
	_ Stage = identity{}
	_ Stage = chain(nil)
)
