// SPDX-License-Identifier: MIT
package monitor

import (
	"errors"
	"math"
)

// Band is a named frequency range, [LowHz, HighHz).
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands splits the audible range into six bands, the last one reaching
// up to Nyquist.
func DefaultBands(sampleRate float64) []Band {
	return []Band{
		{Name: "sub", LowHz: 20, HighHz: 60},
		{Name: "bass", LowHz: 60, HighHz: 250},
		{Name: "lowMid", LowHz: 250, HighHz: 500},
		{Name: "mid", LowHz: 500, HighHz: 2000},
		{Name: "highMid", LowHz: 2000, HighHz: 4000},
		{Name: "treble", LowHz: 4000, HighHz: sampleRate/2 + 1},
	}
}

// BandLevel is the RMS magnitude of the bins that fall inside a band.
type BandLevel struct {
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

// BandMeter reduces a spectrum snapshot to per-band levels. Bin-to-band
// assignment is computed once; Update only reads the source and sums.
type BandMeter struct {
	src       SpectrumSource
	magnitude []float64
	binBand   []int // band index per bin, -1 when outside every band
	counts    []int
	levels    []BandLevel
}

// NewBandMeter builds a meter over src. When bands is empty DefaultBands is
// used with the sample rate implied by src.
func NewBandMeter(src SpectrumSource, bands []Band) (*BandMeter, error) {
	if src == nil {
		return nil, errors.New("monitor: band meter requires a spectrum source")
	}
	bins := src.BinCount()
	if len(bands) == 0 {
		nyquist := src.FrequencyForBin(bins - 1)
		bands = DefaultBands(2 * nyquist)
	}

	m := &BandMeter{
		src:       src,
		magnitude: make([]float64, bins),
		binBand:   make([]int, bins),
		counts:    make([]int, len(bands)),
		levels:    make([]BandLevel, len(bands)),
	}
	for j, band := range bands {
		m.levels[j].Name = band.Name
	}
	for i := range bins {
		m.binBand[i] = -1
		freq := src.FrequencyForBin(i)
		for j, band := range bands {
			if freq >= band.LowHz && freq < band.HighHz {
				m.binBand[i] = j
				m.counts[j]++
				break
			}
		}
	}
	return m, nil
}

// Update reads the latest snapshot and recomputes the levels. The returned
// slice is owned by the meter and overwritten by the next Update.
func (m *BandMeter) Update() ([]BandLevel, error) {
	if err := m.src.MagnitudesInto(m.magnitude); err != nil {
		return nil, err
	}

	for j := range m.levels {
		m.levels[j].Level = 0
	}
	for i, mag := range m.magnitude {
		if j := m.binBand[i]; j >= 0 {
			m.levels[j].Level += mag * mag
		}
	}
	for j := range m.levels {
		if m.counts[j] > 0 {
			m.levels[j].Level = math.Sqrt(m.levels[j].Level / float64(m.counts[j]))
		}
	}
	return m.levels, nil
}

// Bands returns the band names in order.
func (m *BandMeter) Bands() []string {
	names := make([]string, len(m.levels))
	for j, l := range m.levels {
		names[j] = l.Name
	}
	return names
}
