// SPDX-License-Identifier: MIT
package spectral

import (
	"fmt"
	"math/cmplx"
	"time"

	"spectro/internal/window"
)

// Frame is one short-time spectrum with its timing metadata. Frames
// are immutable once emitted and consumed exactly once by the sink;
// use Clone before holding one past the consuming call.
type Frame struct {
	// Bins holds the FFTSize/2+1 complex half-spectrum bins
	// (unnormalized forward transform).
	Bins []complex128

	// StartIndex is the frame's first sample position at the target
	// sample rate. Successive frames of a stream differ by exactly
	// HopSize.
	StartIndex int64

	// Channel identifies the analysis lane: 0 for mono-downmix, the
	// source channel index under per-channel analysis.
	Channel int

	SampleRate int
	FFTSize    int
	HopSize    int
	Window     window.Type
}

// StartTime converts StartIndex to stream time.
func (f *Frame) StartTime() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(f.StartIndex) / float64(f.SampleRate) * float64(time.Second))
}

// FreqForBin returns the center frequency in Hz of bin i, or 0 for
// out-of-range bins.
func (f *Frame) FreqForBin(i int) float64 {
	if i < 0 || i >= len(f.Bins) || f.FFTSize == 0 {
		return 0
	}
	return float64(i) * float64(f.SampleRate) / float64(f.FFTSize)
}

// Magnitudes returns a freshly allocated magnitude spectrum.
func (f *Frame) Magnitudes() []float64 {
	mags := make([]float64, len(f.Bins))
	for i, c := range f.Bins {
		mags[i] = cmplx.Abs(c)
	}
	return mags
}

// MagnitudesInto fills dst with the magnitude spectrum without
// allocating. len(dst) must equal len(Bins).
func (f *Frame) MagnitudesInto(dst []float64) error {
	if len(dst) != len(f.Bins) {
		return fmt.Errorf("%w: dst=%d bins=%d", ErrSizeMismatch, len(dst), len(f.Bins))
	}
	for i, c := range f.Bins {
		dst[i] = cmplx.Abs(c)
	}
	return nil
}

// Clone returns a deep copy whose Bins do not alias the original.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Bins = make([]complex128, len(f.Bins))
	copy(c.Bins, f.Bins)
	return &c
}
