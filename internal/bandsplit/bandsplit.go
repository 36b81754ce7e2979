// SPDX-License-Identifier: MIT

// Package bandsplit reconstructs band-limited time-domain signals from
// a spectral frame stream. Each frame is masked into a low and a high
// band at the configured cutoff frequencies, inverse-transformed, and
// overlap-added with the synthesis window. Feeding it every frame of a
// hop=N/2 Hann analysis yields two full-length signals whose sum
// approximates the input inside the passbands.
//
// The analysis stream ends with at most one zero-padded trailing
// frame, so the final up-to-N-H samples receive single-window w^2
// coverage and come out attenuated relative to interior samples that
// two overlapping hops cover.
package bandsplit

import (
	"errors"
	"fmt"

	"spectro/internal/spectral"
	"spectro/internal/window"
)

var (
	// ErrFrameMismatch marks a frame whose FFT size or window does not
	// match the splitter's synthesis configuration.
	ErrFrameMismatch = errors.New("bandsplit: frame incompatible with splitter")
	// ErrInvalidCutoff marks cutoffs outside (0, Nyquist] or out of order.
	ErrInvalidCutoff = errors.New("bandsplit: invalid cutoff frequencies")
)

// Splitter accumulates overlap-added band signals. It is not safe for
// concurrent use; drive it from the single goroutine consuming the
// frame stream.
type Splitter struct {
	engine     *spectral.Engine
	windowType window.Type
	coeffs     []float64
	n          int
	sampleRate int

	lowBin  int // bins below this are cut from the high band
	highBin int // bins above this are cut from the low band

	low  []float64
	high []float64

	lowBins  []complex128
	highBins []complex128
	lowWin   []float64
	highWin  []float64
}

// New builds a splitter for frames of the given FFT size and analysis
// window. The low band keeps bins up to highCutoff, the high band keeps
// bins from lowCutoff up; the region between the cutoffs lands in both.
func New(fftSize, sampleRate int, windowType window.Type, lowCutoff, highCutoff float64) (*Splitter, error) {
	if lowCutoff < 0 || highCutoff < lowCutoff || highCutoff > float64(sampleRate)/2 {
		return nil, fmt.Errorf("%w: low=%g high=%g rate=%d", ErrInvalidCutoff, lowCutoff, highCutoff, sampleRate)
	}

	engine, err := spectral.NewEngine(fftSize)
	if err != nil {
		return nil, err
	}
	coeffs, err := window.Coefficients(windowType, fftSize)
	if err != nil {
		return nil, err
	}

	freqPerBin := float64(sampleRate) / float64(fftSize)
	bins := engine.Bins()
	return &Splitter{
		engine:     engine,
		windowType: windowType,
		coeffs:     coeffs,
		n:          fftSize,
		sampleRate: sampleRate,
		lowBin:     int(lowCutoff / freqPerBin),
		highBin:    int(highCutoff / freqPerBin),
		lowBins:    make([]complex128, bins),
		highBins:   make([]complex128, bins),
		lowWin:     make([]float64, fftSize),
		highWin:    make([]float64, fftSize),
	}, nil
}

// Consume masks, inverts and overlap-adds one frame. Frames may arrive
// in any order as long as start indices are consistent; the output
// slices grow to cover the highest frame seen.
func (s *Splitter) Consume(f *spectral.Frame) error {
	if f.FFTSize != s.n || len(f.Bins) != len(s.lowBins) {
		return fmt.Errorf("%w: frame N=%d, splitter N=%d", ErrFrameMismatch, f.FFTSize, s.n)
	}
	if f.Window != s.windowType {
		return fmt.Errorf("%w: frame window %s, splitter window %s", ErrFrameMismatch, f.Window, s.windowType)
	}

	for i, bin := range f.Bins {
		s.lowBins[i] = bin
		s.highBins[i] = bin
		if i < s.lowBin {
			s.highBins[i] = 0
		}
		if i > s.highBin {
			s.lowBins[i] = 0
		}
	}

	if err := s.engine.Inverse(s.lowWin, s.lowBins); err != nil {
		return err
	}
	if err := s.engine.Inverse(s.highWin, s.highBins); err != nil {
		return err
	}

	s.grow(int(f.StartIndex) + s.n)

	// The inverse transform is unnormalized, so the 1/N rides along
	// with the synthesis window here.
	start := int(f.StartIndex)
	scale := 1.0 / float64(s.n)
	for i := 0; i < s.n; i++ {
		w := s.coeffs[i] * scale
		s.low[start+i] += s.lowWin[i] * w
		s.high[start+i] += s.highWin[i] * w
	}
	return nil
}

func (s *Splitter) grow(size int) {
	if size <= len(s.low) {
		return
	}
	if cap(s.low) >= size {
		s.low = s.low[:size]
		s.high = s.high[:size]
		return
	}
	low := make([]float64, size, size*2)
	high := make([]float64, size, size*2)
	copy(low, s.low)
	copy(high, s.high)
	s.low, s.high = low, high
}

// Bands returns the accumulated low and high signals. The slices are
// owned by the splitter; copy them before feeding further frames.
func (s *Splitter) Bands() (low, high []float64) { return s.low, s.high }

// Truncate trims both bands to length n, dropping zero-pad spill from
// the final analysis frames. A length beyond the accumulated signal is
// a no-op.
func (s *Splitter) Truncate(n int) {
	if n < 0 || n >= len(s.low) {
		return
	}
	s.low = s.low[:n]
	s.high = s.high[:n]
}

// SampleRate returns the rate the splitter was configured for.
func (s *Splitter) SampleRate() int { return s.sampleRate }
