// SPDX-License-Identifier: MIT
/*
Package plugin is the host-facing boundary around the STFT engine. A host
(the live PortAudio stream, the offline renderer or a test) drives it through
the usual plugin lifecycle:

  - Prepare before streaming starts; all allocation happens here
  - ProcessBlock once per audio callback, in place, on the audio thread
  - Release when streaming stops

Prepare may be called again at any time outside ProcessBlock and always
returns the engine to its stream-start state.
*/
package plugin

import (
	"errors"
	"fmt"
	"sync/atomic"

	"fftpassthrough/internal/stft"
)

// Name is reported to hosts.
const Name = "FFT Passthrough"

var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrInvalidBlockSize  = errors.New("block size must be positive")
)

// ChannelSet describes the channels carried by one bus.
type ChannelSet int

const (
	Disabled ChannelSet = iota
	Mono
	Stereo
)

func (c ChannelSet) String() string {
	switch c {
	case Disabled:
		return "disabled"
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	default:
		return fmt.Sprintf("ChannelSet(%d)", int(c))
	}
}

// Channels returns the channel count of the set.
func (c ChannelSet) Channels() int {
	switch c {
	case Mono:
		return 1
	case Stereo:
		return 2
	default:
		return 0
	}
}

// ChannelSetFor maps a channel count to its set, Disabled when unsupported.
func ChannelSetFor(channels int) ChannelSet {
	switch channels {
	case 1:
		return Mono
	case 2:
		return Stereo
	default:
		return Disabled
	}
}

// Layout is the main input and output bus configuration proposed by a host.
type Layout struct {
	Input  ChannelSet
	Output ChannelSet
}

// Processor owns one STFT engine and exposes it through the plugin lifecycle.
// It is not safe for concurrent use except for Cycles, which may be read from
// any goroutine while ProcessBlock runs.
type Processor struct {
	cfg   stft.Config
	stage stft.Stage

	engine     *stft.Engine
	sampleRate float64
	blockSize  int

	cycles atomic.Uint64
}

// New returns an unprepared processor. A nil stage runs the identity
// passthrough.
func New(cfg stft.Config, stage stft.Stage) *Processor {
	if stage == nil {
		stage = stft.Identity
	}
	return &Processor{cfg: cfg, stage: stage}
}

// Prepare sizes the processor for a stream. The first call builds the engine;
// later calls reuse it and only reset its state, so preparing twice never
// allocates twice.
func (p *Processor) Prepare(sampleRate float64, blockSize int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("prepare: %w, got %g", ErrInvalidSampleRate, sampleRate)
	}
	if blockSize <= 0 {
		return fmt.Errorf("prepare: %w, got %d", ErrInvalidBlockSize, blockSize)
	}

	if p.engine == nil {
		engine, err := stft.NewEngine(p.cfg, p.stage)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		p.engine = engine
	} else {
		p.engine.Reset()
	}

	p.sampleRate = sampleRate
	p.blockSize = blockSize
	p.cycles.Store(0)
	return nil
}

// Release drops the engine and its buffers. Calling it twice is harmless.
func (p *Processor) Release() {
	p.engine = nil
	p.sampleRate = 0
	p.blockSize = 0
}

// ProcessBlock runs the engine over buf in place. Blocks of any length are
// accepted, whatever was passed to Prepare. An unprepared processor leaves
// buf untouched.
func (p *Processor) ProcessBlock(buf []float32) {
	if p.engine == nil {
		return
	}
	p.engine.Process(buf)
	p.cycles.Store(p.engine.Cycles())
}

// IsLayoutSupported accepts mono or stereo output with an identical input.
func (p *Processor) IsLayoutSupported(layout Layout) bool {
	if layout.Output != Mono && layout.Output != Stereo {
		return false
	}
	return layout.Input == layout.Output
}

// Name returns the name reported to hosts.
func (p *Processor) Name() string { return Name }

// LatencySamples is the delay hosts must compensate for, always one window.
func (p *Processor) LatencySamples() int { return p.cfg.WindowSize }

// TailSeconds is zero: output stops one window after the input does.
func (p *Processor) TailSeconds() float64 { return 0 }

// AcceptsMidi reports false; the processor has no MIDI input.
func (p *Processor) AcceptsMidi() bool { return false }

// ProducesMidi reports false; the processor has no MIDI output.
func (p *Processor) ProducesMidi() bool { return false }

// IsMidiEffect reports false; the processor is an audio effect.
func (p *Processor) IsMidiEffect() bool { return false }

// NumPrograms is always 1, the passthrough itself.
func (p *Processor) NumPrograms() int { return 1 }

// CurrentProgram is always 0.
func (p *Processor) CurrentProgram() int { return 0 }

// Prepared reports whether ProcessBlock will run the engine.
func (p *Processor) Prepared() bool { return p.engine != nil }

// SampleRate returns the rate given to the last Prepare, 0 when released.
func (p *Processor) SampleRate() float64 { return p.sampleRate }

// BlockSize returns the block size given to the last Prepare, 0 when released.
func (p *Processor) BlockSize() int { return p.blockSize }

// Config returns the engine geometry.
func (p *Processor) Config() stft.Config { return p.cfg }

// Cycles returns the STFT cycles run since the last Prepare, as of the end of
// the most recent ProcessBlock.
func (p *Processor) Cycles() uint64 { return p.cycles.Load() }
