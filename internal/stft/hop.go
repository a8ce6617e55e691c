// SPDX-License-Identifier: MIT
package stft

// HopScheduler counts incoming samples and fires once every hop samples,
// independent of how the host chunks its blocks.
type HopScheduler struct {
	hop     int
	counter int    // in [0, hop)
	fired   uint64 // total firings since the last Reset
}

// NewHopScheduler returns a scheduler that fires every hop samples.
func NewHopScheduler(hop int) HopScheduler {
	if hop <= 0 {
		panic("stft: hop size must be positive")
	}
	return HopScheduler{hop: hop}
}

// Tick registers one sample and reports whether a cycle is due.
func (h *HopScheduler) Tick() bool {
	h.counter++
	if h.counter < h.hop {
		return false
	}
	h.counter = 0
	h.fired++
	return true
}

// Reset returns the scheduler to its stream-start state.
func (h *HopScheduler) Reset() {
	h.counter = 0
	h.fired = 0
}

// Counter returns the number of samples seen since the last firing.
func (h *HopScheduler) Counter() int { return h.counter }

// Fired returns the number of cycles triggered since the last Reset.
func (h *HopScheduler) Fired() uint64 { return h.fired }

// Hop returns the configured hop size.
func (h *HopScheduler) Hop() int { return h.hop }
