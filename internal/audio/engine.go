// SPDX-License-Identifier: MIT
/*
Package audio hosts the passthrough processor on a live PortAudio duplex stream:
- Channel 0 of each input block is processed in place by the plugin processor
- The processed block is written to every output channel
- The processed output can be recorded to WAV

Thread Safety:
- The stream callback runs on PortAudio's thread and only touches buffers
  allocated in NewEngine and StartRecording
- Recording state is switched with an atomic flag; the callback never blocks
  on the recording lock
*/
package audio

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"fftpassthrough/internal/config"
	"fftpassthrough/internal/log"
	"fftpassthrough/internal/plugin"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// ErrUnsupportedLayout is returned when the configured channel counts form a
// bus layout the processor refuses.
var ErrUnsupportedLayout = errors.New("unsupported channel layout")

type Engine struct {
	config    *config.Config
	processor *plugin.Processor

	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo
	inputLatency  time.Duration
	outputLatency time.Duration
	stream        *portaudio.Stream

	inChannels  int
	outChannels int
	block       []float32 // Channel 0 of the current block, processed in place.

	// Recording state and buffers.
	isRecording int32      // Atomic flag for thread-safe state
	recMu       sync.Mutex // Guards the encoder; the callback only TryLocks it.
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
	sampleScale float64
	recordErrs  atomic.Uint64
}

// NewEngine resolves the configured devices and allocates every buffer the
// stream callback uses. PortAudio must be initialized.
func NewEngine(cfg *config.Config, processor *plugin.Processor) (*Engine, error) {
	e, err := newEngine(cfg, processor)
	if err != nil {
		return nil, err
	}

	if e.inputDevice, err = InputDevice(cfg.Audio.InputDevice); err != nil {
		return nil, fmt.Errorf("input device: %w", err)
	}
	if e.outputDevice, err = OutputDevice(cfg.Audio.OutputDevice); err != nil {
		return nil, fmt.Errorf("output device: %w", err)
	}

	if cfg.Audio.LowLatency {
		e.inputLatency = e.inputDevice.DefaultLowInputLatency
		e.outputLatency = e.outputDevice.DefaultLowOutputLatency
	} else {
		e.inputLatency = e.inputDevice.DefaultHighInputLatency
		e.outputLatency = e.outputDevice.DefaultHighOutputLatency
	}

	log.Infof("Audio: %s -> %s, %g Hz, %d frames per buffer",
		e.inputDevice.Name, e.outputDevice.Name, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer)
	return e, nil
}

// newEngine builds an engine without touching the audio host.
func newEngine(cfg *config.Config, processor *plugin.Processor) (*Engine, error) {
	if processor == nil {
		return nil, errors.New("audio engine: processor cannot be nil")
	}

	layout := plugin.Layout{
		Input:  plugin.ChannelSetFor(cfg.Audio.InputChannels),
		Output: plugin.ChannelSetFor(cfg.Audio.OutputChannels),
	}
	if !processor.IsLayoutSupported(layout) {
		return nil, fmt.Errorf("%w: %s in, %s out", ErrUnsupportedLayout, layout.Input, layout.Output)
	}

	return &Engine{
		config:      cfg,
		processor:   processor,
		inChannels:  cfg.Audio.InputChannels,
		outChannels: cfg.Audio.OutputChannels,
		block:       make([]float32, cfg.Audio.FramesPerBuffer),
	}, nil
}

// Start prepares the processor and opens the duplex stream.
func (e *Engine) Start() error {
	if e.stream != nil {
		return errors.New("stream already started")
	}
	if err := e.processor.Prepare(e.config.Audio.SampleRate, e.config.Audio.FramesPerBuffer); err != nil {
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.inChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: e.outChannels,
			Device:   e.outputDevice,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processStream)
	if err != nil {
		e.processor.Release()
		return fmt.Errorf("failed to open duplex stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		e.processor.Release()
		return fmt.Errorf("failed to start duplex stream: %w", err)
	}
	e.stream = stream

	log.Infof("Audio: Stream started, processing latency %d samples (%.1f ms)",
		e.processor.LatencySamples(), e.LatencySeconds()*1000)
	return nil
}

// Stop closes the stream and releases the processor.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return nil
	}

	if err := e.stream.Stop(); err != nil {
		return err
	}
	if err := e.stream.Close(); err != nil {
		return err
	}
	e.stream = nil
	e.processor.Release()

	log.Infof("Audio: Stream stopped after %d cycles", e.processor.Cycles())
	return nil
}

// Cycles returns the number of transform cycles run so far.
func (e *Engine) Cycles() uint64 { return e.processor.Cycles() }

// LatencySamples is the processing latency, excluding device buffering.
func (e *Engine) LatencySamples() int { return e.processor.LatencySamples() }

// LatencySeconds is LatencySamples at the configured sample rate.
func (e *Engine) LatencySeconds() float64 {
	return float64(e.processor.LatencySamples()) / e.config.Audio.SampleRate
}

// SampleRate returns the configured stream rate.
func (e *Engine) SampleRate() float64 { return e.config.Audio.SampleRate }

// processStream is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
func (e *Engine) processStream(in, out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.processInterleaved(in, out)
}

// processInterleaved runs channel 0 of in through the processor and copies the
// result to every channel of out. Blocks longer than the prepared size are
// handled in prepared-size chunks.
func (e *Engine) processInterleaved(in, out []float32) {
	frames := len(out) / e.outChannels
	if n := len(in) / e.inChannels; n < frames {
		frames = n
	}

	for start := 0; start < frames; start += len(e.block) {
		block := e.block[:min(len(e.block), frames-start)]

		for i := range block {
			block[i] = in[(start+i)*e.inChannels]
		}

		e.processor.ProcessBlock(block)

		for i, y := range block {
			frame := out[(start+i)*e.outChannels : (start+i+1)*e.outChannels]
			for c := range frame {
				frame[c] = y
			}
		}

		if atomic.LoadInt32(&e.isRecording) == 1 {
			e.record(block)
		}
	}
}
