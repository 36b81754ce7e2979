// SPDX-License-Identifier: MIT

// Package resample converts a decoded source to the pipeline's target
// layout: channel downmix to mono and sample-rate conversion by linear
// interpolation. Both are decode.Source wrappers, so they compose and
// drop out entirely when no conversion is needed.
package resample

import (
	"io"

	"spectro/internal/decode"
)

// MonoMixer downmixes interleaved multi-channel audio to mono using
// the arithmetic mean of the channels. The rule is deterministic:
// identical input produces identical output across runs.
type MonoMixer struct {
	src  decode.Source
	tmp  []float64
	pend int // leftover interleaved samples at tmp[:pend], less than one frame
}

// NewMonoMixer wraps src. A mono source is returned unchanged.
func NewMonoMixer(src decode.Source) decode.Source {
	if src.Channels() == 1 {
		return src
	}
	return &MonoMixer{src: src}
}

func (m *MonoMixer) SampleRate() int { return m.src.SampleRate() }
func (m *MonoMixer) Channels() int   { return 1 }
func (m *MonoMixer) Close() error    { return m.src.Close() }

func (m *MonoMixer) ReadSamples(dst []float64) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	channels := m.src.Channels()
	need := len(dst)*channels - m.pend
	if cap(m.tmp) < m.pend+need {
		tmp := make([]float64, m.pend+need)
		copy(tmp, m.tmp[:m.pend])
		m.tmp = tmp
	}
	m.tmp = m.tmp[:m.pend+need]

	n, err := m.src.ReadSamples(m.tmp[m.pend:])
	avail := m.pend + n
	frames := avail / channels
	if frames == 0 {
		m.pend = avail
		if err == io.EOF {
			// A trailing partial frame at end of stream is dropped.
			return 0, io.EOF
		}
		return 0, err
	}

	inv := 1.0 / float64(channels)
	for f := 0; f < frames; f++ {
		sum := 0.0
		base := f * channels
		for c := 0; c < channels; c++ {
			sum += m.tmp[base+c]
		}
		dst[f] = sum * inv
	}

	// Carry any split frame into the next read.
	m.pend = avail - frames*channels
	copy(m.tmp, m.tmp[frames*channels:avail])

	if err == io.EOF {
		// Report the samples now; the next call returns a clean EOF.
		err = nil
	}
	return frames, err
}
