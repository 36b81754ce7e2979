// SPDX-License-Identifier: MIT

// Package window provides the analysis window functions applied to
// frames before the FFT to reduce spectral leakage. Coefficients are
// computed once per (type, size) pair and cached; callers share the
// cached slice and must not modify it.
package window

import (
	"fmt"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/window"
)

// Type selects a window function. The set is closed: rectangular,
// Hann and Hamming.
type Type int

const (
	Rectangular Type = iota
	Hann
	Hamming
)

func (t Type) String() string {
	switch t {
	case Rectangular:
		return "rectangular"
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	default:
		return "unknown"
	}
}

// Parse converts a config string (case-insensitive) to a Type.
func Parse(name string) (Type, error) {
	switch strings.ToLower(name) {
	case "rectangular", "rect", "none":
		return Rectangular, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	default:
		return Rectangular, fmt.Errorf("unknown window function %q", name)
	}
}

type cacheKey struct {
	t Type
	n int
}

var (
	cacheMu sync.RWMutex
	cache   = map[cacheKey][]float64{}
)

// Coefficients returns the n window coefficients for t. The slice is
// cached and shared; treat it as read-only. Hann and Hamming are
// symmetric (coeff[i] == coeff[n-1-i]); rectangular is all ones.
func Coefficients(t Type, n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", n)
	}

	key := cacheKey{t, n}
	cacheMu.RLock()
	coeffs, ok := cache[key]
	cacheMu.RUnlock()
	if ok {
		return coeffs, nil
	}

	// gonum's window functions multiply a sequence in place, so start
	// from all ones to extract the bare coefficients.
	coeffs = make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch t {
	case Rectangular:
		// All ones.
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	default:
		return nil, fmt.Errorf("unknown window type %d", t)
	}

	cacheMu.Lock()
	cache[key] = coeffs
	cacheMu.Unlock()
	return coeffs, nil
}

// Apply multiplies src element-wise by the coefficients into dst.
// dst and src may alias. Lengths must all match.
func Apply(dst, src, coeffs []float64) error {
	if len(dst) != len(src) || len(src) != len(coeffs) {
		return fmt.Errorf("window apply: length mismatch dst=%d src=%d coeffs=%d",
			len(dst), len(src), len(coeffs))
	}
	for i, c := range coeffs {
		dst[i] = src[i] * c
	}
	return nil
}
