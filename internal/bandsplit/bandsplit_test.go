// SPDX-License-Identifier: MIT
package bandsplit

import (
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"

	"spectro/internal/decode"
	"spectro/internal/pipeline"
	"spectro/internal/spectral"
	"spectro/internal/window"
	"spectro/pkg/dsptest"
)

// runSplit pushes samples through a full analysis pipeline into a
// splitter and returns the truncated band signals.
func runSplit(t *testing.T, samples []float64, lowCutoff, highCutoff float64) (low, high []float64) {
	t.Helper()

	p, err := pipeline.New(dsptest.NewMemorySource(samples, 44100, 1), pipeline.Config{
		FFTSize:    2048,
		HopSize:    1024,
		Window:     window.Hann,
		TargetRate: 44100,
		Mix:        pipeline.MixMono,
		Tail:       pipeline.TailZeroPad,
		StreamID:   "split-test",
	})
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}
	s, err := New(2048, 44100, window.Hann, lowCutoff, highCutoff)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	for f := range p.Frames() {
		if err := s.Consume(f); err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s.Truncate(len(samples))
	return s.low, s.high
}

// rms over x[from:to], the window edges excluded by the caller.
func rms(x []float64, from, to int) float64 {
	var sum float64
	for _, v := range x[from:to] {
		sum += v * v
	}
	return math.Sqrt(sum / float64(to-from))
}

func TestSplitterSeparatesTones(t *testing.T) {
	const rate = 44100
	tests := []struct {
		name     string
		freq     float64
		loudBand string
	}{
		{"bass tone lands in low band", 100, "low"},
		{"treble tone lands in high band", 5000, "high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tone := dsptest.GenerateSineWave(rate, rate, tt.freq)
			low, high := runSplit(t, tone, 200, 2000)

			// Skip the first and last analysis windows where the
			// overlap-add taper has no partner frame.
			from, to := 4096, len(tone)-4096
			lowRMS, highRMS := rms(low, from, to), rms(high, from, to)

			loud, quiet := lowRMS, highRMS
			if tt.loudBand == "high" {
				loud, quiet = highRMS, lowRMS
			}
			if loud < 0.1 {
				t.Fatalf("%s band RMS = %g, tone missing", tt.loudBand, loud)
			}
			if quiet > 0.05*loud {
				t.Errorf("opposite band RMS = %g vs %g, separation too weak", quiet, loud)
			}
		})
	}
}

func TestSplitterMidBandInBothOutputs(t *testing.T) {
	// Between the cutoffs both masks pass, so a 1kHz tone must appear
	// in the low and the high band at comparable level.
	const rate = 44100
	tone := dsptest.GenerateSineWave(rate, rate, 1000)
	low, high := runSplit(t, tone, 200, 2000)

	from, to := 4096, len(tone)-4096
	lowRMS, highRMS := rms(low, from, to), rms(high, from, to)
	if lowRMS < 0.1 || highRMS < 0.1 {
		t.Fatalf("mid-band tone weak: low=%g high=%g", lowRMS, highRMS)
	}
	if ratio := lowRMS / highRMS; ratio < 0.9 || ratio > 1.1 {
		t.Errorf("band RMS ratio = %g, want ~1", ratio)
	}
}

func TestSplitterIdentityReconstruction(t *testing.T) {
	// Rectangular window with hop equal to the FFT size covers every
	// sample exactly once, and full-range cutoffs keep every bin, so
	// both bands must reproduce the input exactly.
	const rate = 44100
	tone := dsptest.GenerateComplexWave(8192, rate)

	p, err := pipeline.New(dsptest.NewMemorySource(tone, rate, 1), pipeline.Config{
		FFTSize:    2048,
		HopSize:    2048,
		Window:     window.Rectangular,
		TargetRate: rate,
		Mix:        pipeline.MixMono,
		Tail:       pipeline.TailZeroPad,
		StreamID:   "identity",
	})
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}
	s, err := New(2048, rate, window.Rectangular, 0, rate/2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	for f := range p.Frames() {
		if err := s.Consume(f); err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	s.Truncate(len(tone))

	low, high := s.Bands()
	for i := range tone {
		if math.Abs(low[i]-tone[i]) > 1e-9 {
			t.Fatalf("low band sample %d = %g, want %g", i, low[i], tone[i])
		}
		if math.Abs(high[i]-tone[i]) > 1e-9 {
			t.Fatalf("high band sample %d = %g, want %g", i, high[i], tone[i])
		}
	}
}

func TestSplitterSilence(t *testing.T) {
	low, high := runSplit(t, make([]float64, 8192), 200, 2000)
	for i := range low {
		if math.Abs(low[i]) > 1e-12 || math.Abs(high[i]) > 1e-12 {
			t.Fatalf("sample %d nonzero: low=%g high=%g", i, low[i], high[i])
		}
	}
}

func TestSplitterFrameMismatch(t *testing.T) {
	s, err := New(2048, 44100, window.Hann, 200, 2000)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	wrongSize := &spectral.Frame{
		Bins:    make([]complex128, 513),
		FFTSize: 1024,
		Window:  window.Hann,
	}
	if err := s.Consume(wrongSize); !errors.Is(err, ErrFrameMismatch) {
		t.Errorf("Consume(wrong size) error = %v, want ErrFrameMismatch", err)
	}

	wrongWindow := &spectral.Frame{
		Bins:    make([]complex128, 1025),
		FFTSize: 2048,
		Window:  window.Hamming,
	}
	if err := s.Consume(wrongWindow); !errors.Is(err, ErrFrameMismatch) {
		t.Errorf("Consume(wrong window) error = %v, want ErrFrameMismatch", err)
	}
}

func TestSplitterInvalidCutoffs(t *testing.T) {
	tests := []struct {
		name      string
		low, high float64
	}{
		{"negative low", -1, 2000},
		{"inverted", 2000, 200},
		{"above nyquist", 200, 30000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(2048, 44100, window.Hann, tt.low, tt.high); !errors.Is(err, ErrInvalidCutoff) {
				t.Errorf("New(%g, %g) error = %v, want ErrInvalidCutoff", tt.low, tt.high, err)
			}
		})
	}
}

func TestWriteWAVRoundTrip(t *testing.T) {
	samples := []float64{0, 0.5, -0.5, 1.5, -1.5, 0.25}
	path := filepath.Join(t.TempDir(), "band.wav")
	if err := WriteWAV(path, samples, 22050); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}

	src, err := decode.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	if got := src.SampleRate(); got != 22050 {
		t.Errorf("SampleRate() = %d, want 22050", got)
	}
	dst := make([]float64, len(samples)+8)
	n, err := src.ReadSamples(dst)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n != len(samples) {
		t.Fatalf("decoded %d samples, want %d", n, len(samples))
	}
	// Out-of-range input clamps to full scale.
	want := []float64{0, 0.5, -0.5, 1, -1, 0.25}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-3 {
			t.Errorf("sample %d = %g, want %g", i, dst[i], want[i])
		}
	}
}
