// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"fftpassthrough/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// RecordingPath returns a timestamped WAV path inside dir, creating dir.
func RecordingPath(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}
	return filepath.Join(dir, "fftpassthrough_"+now.Format("20060102_150405")+".wav"), nil
}

// StartRecording records the processed mono output to filename as integer PCM
// at the configured bit depth.
func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	bitDepth := e.config.Recording.BitDepth
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	e.recMu.Lock()
	defer e.recMu.Unlock()

	e.outputFile = file
	e.wavEncoder = wav.NewEncoder(file, int(e.config.Audio.SampleRate), bitDepth, 1, wavFormatPCM)
	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  int(e.config.Audio.SampleRate),
		},
		Data:           make([]int, len(e.block)),
		SourceBitDepth: bitDepth,
	}
	e.sampleScale = float64(audio.IntMaxSignedValue(bitDepth))

	atomic.StoreInt32(&e.isRecording, 1)
	log.Infof("Recording: Started %s (%d-bit)", filename, bitDepth)

	return nil
}

func (e *Engine) StopRecording() error {
	if atomic.LoadInt32(&e.isRecording) == 0 {
		return nil
	}

	atomic.StoreInt32(&e.isRecording, 0)

	e.recMu.Lock()
	defer e.recMu.Unlock()

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		name := e.outputFile.Name()
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
		log.Infof("Recording: Stopped %s", name)
	}

	if n := e.recordErrs.Swap(0); n > 0 {
		log.Warnf("Recording: %d blocks failed to write", n)
	}
	return nil
}

// IsRecording reports whether processed output is being written.
func (e *Engine) IsRecording() bool {
	return atomic.LoadInt32(&e.isRecording) == 1
}

// record converts and writes one processed block. It skips the block rather
// than wait when StopRecording holds the lock.
func (e *Engine) record(block []float32) {
	if !e.recMu.TryLock() {
		return
	}
	defer e.recMu.Unlock()

	if e.wavEncoder == nil {
		return
	}

	data := e.sampleBuf.Data[:len(block)]
	for i, x := range block {
		v := float64(x)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(math.Round(v * e.sampleScale))
	}
	e.sampleBuf.Data = data

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		e.recordErrs.Add(1)
	}
}

// Close stops recording and the stream.
func (e *Engine) Close() error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}

	if err := e.Stop(); err != nil {
		return err
	}

	return nil
}
