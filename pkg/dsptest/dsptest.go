// SPDX-License-Identifier: MIT

// Package dsptest provides signal generators and stub sources shared by
// tests across the pipeline packages.
package dsptest

import (
	"io"
	"math"

	"spectro/internal/decode"
)

// GenerateSineWave returns size samples of a pure sinusoid at the given
// frequency, amplitude 0.9 to stay clear of full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics,
// useful when a test needs broadband-ish but deterministic content.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in
// magnitudes[startBin:endBin] (bounds clamped).
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > magnitudes[peakBin] {
			peakBin = bin
		}
	}
	return peakBin
}

// MemorySource serves a fixed interleaved sample slice as a
// decode.Source. ReadChunk sizes are whatever the caller asks for, so
// tests can exercise arbitrary chunk/frame misalignment.
type MemorySource struct {
	Samples []float64
	Rate    int
	Chans   int
	pos     int
	closed  bool
}

var _ decode.Source = (*MemorySource)(nil)

func NewMemorySource(samples []float64, rate, channels int) *MemorySource {
	return &MemorySource{Samples: samples, Rate: rate, Chans: channels}
}

func (m *MemorySource) SampleRate() int { return m.Rate }
func (m *MemorySource) Channels() int   { return m.Chans }

func (m *MemorySource) ReadSamples(dst []float64) (int, error) {
	if m.pos >= len(m.Samples) {
		return 0, io.EOF
	}
	n := copy(dst, m.Samples[m.pos:])
	m.pos += n
	return n, nil
}

func (m *MemorySource) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called, for lifecycle assertions.
func (m *MemorySource) Closed() bool { return m.closed }
