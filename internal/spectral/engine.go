// SPDX-License-Identifier: MIT

// Package spectral wraps the real-input FFT and defines the spectral
// frame emitted by the pipeline.
//
// Transform convention: unnormalized forward transform (gonum's
// native convention). A constant input of value v lands v*N in bin 0;
// magnitudes are comparable across frames of the same configuration.
// Inverse is likewise unnormalized, so a forward-then-inverse round
// trip scales the signal by N.
package spectral

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"spectro/pkg/bitint"
)

// ErrSizeMismatch means a frame or destination slice did not match the
// size the engine was planned for. This is a stage-wiring bug.
var ErrSizeMismatch = errors.New("spectral: length does not match planned FFT size")

// Engine is a real-input FFT planned for a single size N. Re-planning
// for a new N means constructing a new Engine. An Engine may be shared
// across pipelines using the same N; Transform and Inverse serialize
// internally because the underlying plan keeps scratch state.
type Engine struct {
	mu  sync.Mutex
	n   int
	fft *fourier.FFT
}

// NewEngine plans a transform for n points. n must be a power of two;
// the radix-2 path is the only one the pipeline is tuned for.
func NewEngine(n int) (*Engine, error) {
	if !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("spectral: FFT size must be a power of 2, got %d", n)
	}
	return &Engine{n: n, fft: fourier.NewFFT(n)}, nil
}

// Size returns the planned transform length N.
func (e *Engine) Size() int { return e.n }

// Bins returns the number of output bins, N/2+1 for real input.
func (e *Engine) Bins() int { return e.n/2 + 1 }

// Transform computes the half spectrum of frame into dst.
// len(frame) must equal N and len(dst) must equal N/2+1.
func (e *Engine) Transform(dst []complex128, frame []float64) error {
	if len(frame) != e.n || len(dst) != e.Bins() {
		return fmt.Errorf("%w: frame=%d dst=%d planned=%d", ErrSizeMismatch, len(frame), len(dst), e.n)
	}
	e.mu.Lock()
	e.fft.Coefficients(dst, frame)
	e.mu.Unlock()
	return nil
}

// Inverse reconstructs the N-point real sequence from the half
// spectrum bins into dst. The result carries the unnormalized factor
// N; divide by N to recover the forward input.
func (e *Engine) Inverse(dst []float64, bins []complex128) error {
	if len(dst) != e.n || len(bins) != e.Bins() {
		return fmt.Errorf("%w: dst=%d bins=%d planned=%d", ErrSizeMismatch, len(dst), len(bins), e.n)
	}
	e.mu.Lock()
	e.fft.Sequence(dst, bins)
	e.mu.Unlock()
	return nil
}

// FreqForBin returns the center frequency in Hz of bin i at the given
// sample rate, or 0 for out-of-range bins.
func (e *Engine) FreqForBin(i int, sampleRate float64) float64 {
	if i < 0 || i >= e.Bins() {
		return 0
	}
	return float64(i) * sampleRate / float64(e.n)
}
