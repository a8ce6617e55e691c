// SPDX-License-Identifier: MIT
/*
Package render runs the passthrough plugin offline over a PCM WAV file.

The renderer behaves like a host: it prepares a plugin.Processor, feeds it
channel 0 of the input in fixed blocks and writes the processed stream as a
mono WAV at the input's sample rate. With Compensate set, the engine's
one-window latency is removed by dropping the first W output samples and
flushing W samples of silence through the engine at the end, so the output
lines up with the input sample for sample.
*/
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"fftpassthrough/internal/log"
	"fftpassthrough/internal/plugin"
	"fftpassthrough/internal/stft"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultBlockSize is the host block size used when Options.BlockSize is unset.
const DefaultBlockSize = 512

const wavFormatPCM = 1

var (
	ErrInvalidWAV        = errors.New("input is not a readable WAV file")
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
	ErrUnsupportedLayout = errors.New("unsupported channel layout")
)

// Options configures one render.
type Options struct {
	STFT       stft.Config
	Stage      stft.Stage // nil runs the identity passthrough
	BlockSize  int        // host block size, DefaultBlockSize when <= 0
	BitDepth   int        // output bit depth, the input's when 0
	Compensate bool       // remove the engine latency from the output
}

// Stats summarises a finished render.
type Stats struct {
	SampleRate   int
	Channels     int // channels in the input; only channel 0 is rendered
	BitDepth     int // output bit depth
	InputFrames  int
	OutputFrames int
	Cycles       uint64
	Latency      int
}

// RenderFile renders inPath into a new file at outPath. The output file is
// removed when rendering fails.
func RenderFile(ctx context.Context, inPath, outPath string, opts Options) (Stats, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return Stats{}, fmt.Errorf("render: failed to open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return Stats{}, fmt.Errorf("render: failed to create output: %w", err)
	}

	stats, err := Render(ctx, in, out, opts)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("render: failed to close output: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(outPath)
		return stats, err
	}

	log.Infof("Render: wrote %d frames to %s (%d cycles, latency %d, compensated %v)",
		stats.OutputFrames, outPath, stats.Cycles, stats.Latency, opts.Compensate)
	return stats, nil
}

// Render decodes in, processes it and encodes the result to out. It checks
// ctx between blocks.
func Render(ctx context.Context, in io.ReadSeeker, out io.WriteSeeker, opts Options) (Stats, error) {
	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return Stats{}, fmt.Errorf("render: %w: %v", ErrInvalidWAV, err)
		}
		return Stats{}, fmt.Errorf("render: %w", ErrInvalidWAV)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return Stats{}, fmt.Errorf("render: %w: audio format %d is not integer PCM", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	inDepth := int(dec.BitDepth)
	outDepth := opts.BitDepth
	if outDepth == 0 {
		outDepth = inDepth
	}
	for _, depth := range []int{inDepth, outDepth} {
		if depth != 16 && depth != 24 && depth != 32 {
			return Stats{}, fmt.Errorf("render: %w: %d-bit samples", ErrUnsupportedFormat, depth)
		}
	}

	channels := int(dec.NumChans)
	sampleRate := int(dec.SampleRate)
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	proc := plugin.New(opts.STFT, opts.Stage)
	set := plugin.ChannelSetFor(channels)
	if !proc.IsLayoutSupported(plugin.Layout{Input: set, Output: set}) {
		return Stats{}, fmt.Errorf("render: %w: %d channels", ErrUnsupportedLayout, channels)
	}
	if err := proc.Prepare(float64(sampleRate), blockSize); err != nil {
		return Stats{}, fmt.Errorf("render: %w", err)
	}
	defer proc.Release()

	stats := Stats{
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   outDepth,
		Latency:    proc.LatencySamples(),
	}
	log.Debugf("Render: %d Hz, %d channels, %d-bit in, %d-bit out, block %d",
		sampleRate, channels, inDepth, outDepth, blockSize)

	enc := wav.NewEncoder(out, sampleRate, outDepth, 1, wavFormatPCM)
	w := &blockWriter{
		enc:   enc,
		scale: float64(audio.IntMaxSignedValue(outDepth)),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, blockSize),
			SourceBitDepth: outDepth,
		},
	}
	if opts.Compensate {
		w.skip = proc.LatencySamples()
	}

	pcm := &audio.IntBuffer{
		Format: dec.Format(),
		Data:   make([]int, blockSize*channels),
	}
	block := make([]float32, blockSize)
	inScale := float32(audio.IntMaxSignedValue(inDepth))

	for {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("render: %w", err)
		}

		n, err := dec.PCMBuffer(pcm)
		if err != nil {
			return stats, fmt.Errorf("render: failed to decode input: %w", err)
		}
		frames := n / channels
		if frames == 0 {
			break
		}

		for i := range frames {
			block[i] = float32(pcm.Data[i*channels]) / inScale
		}
		proc.ProcessBlock(block[:frames])
		stats.InputFrames += frames

		if err := w.write(block[:frames]); err != nil {
			return stats, err
		}
	}

	// Flush the samples still inside the engine.
	if opts.Compensate {
		for tail := proc.LatencySamples(); tail > 0; {
			if err := ctx.Err(); err != nil {
				return stats, fmt.Errorf("render: %w", err)
			}
			n := min(tail, blockSize)
			clear(block[:n])
			proc.ProcessBlock(block[:n])
			if err := w.write(block[:n]); err != nil {
				return stats, err
			}
			tail -= n
		}
	}

	if err := enc.Close(); err != nil {
		return stats, fmt.Errorf("render: failed to finalise output: %w", err)
	}

	stats.OutputFrames = w.frames
	stats.Cycles = proc.Cycles()
	return stats, nil
}

// blockWriter converts processed blocks to integer PCM, dropping the first
// skip samples.
type blockWriter struct {
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	scale  float64
	skip   int
	frames int
}

func (w *blockWriter) write(block []float32) error {
	if w.skip >= len(block) {
		w.skip -= len(block)
		return nil
	}
	block = block[w.skip:]
	w.skip = 0

	w.buf.Data = w.buf.Data[:len(block)]
	for i, x := range block {
		w.buf.Data[i] = toPCM(x, w.scale)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("render: failed to encode output: %w", err)
	}
	w.frames += len(block)
	return nil
}

// toPCM clamps x to [-1, 1] and scales it to the integer range.
func toPCM(x float32, scale float64) int {
	v := math.Max(-1, math.Min(1, float64(x)))
	return int(math.Round(v * scale))
}
