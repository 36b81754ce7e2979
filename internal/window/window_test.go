// SPDX-License-Identifier: MIT
package window

import (
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		want    Type
		wantErr bool
	}{
		{"rectangular", Rectangular, false},
		{"rect", Rectangular, false},
		{"hann", Hann, false},
		{"Hanning", Hann, false},
		{"HAMMING", Hamming, false},
		{"blackman", Rectangular, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRectangularIsAllOnes(t *testing.T) {
	coeffs, err := Coefficients(Rectangular, 64)
	if err != nil {
		t.Fatalf("Coefficients failed: %v", err)
	}
	for i, c := range coeffs {
		if c != 1.0 {
			t.Fatalf("coeff[%d] = %v, want 1.0", i, c)
		}
	}
}

func TestSymmetry(t *testing.T) {
	for _, typ := range []Type{Hann, Hamming} {
		t.Run(typ.String(), func(t *testing.T) {
			const n = 256
			coeffs, err := Coefficients(typ, n)
			if err != nil {
				t.Fatalf("Coefficients failed: %v", err)
			}
			for i := 0; i < n/2; i++ {
				if math.Abs(coeffs[i]-coeffs[n-1-i]) > 1e-12 {
					t.Fatalf("asymmetric at %d: %v != %v", i, coeffs[i], coeffs[n-1-i])
				}
			}
		})
	}
}

func TestHannEndpoints(t *testing.T) {
	coeffs, err := Coefficients(Hann, 128)
	if err != nil {
		t.Fatalf("Coefficients failed: %v", err)
	}
	if math.Abs(coeffs[0]) > 1e-12 || math.Abs(coeffs[127]) > 1e-12 {
		t.Errorf("Hann endpoints = %v, %v, want 0", coeffs[0], coeffs[127])
	}
	// Peak at the center.
	if coeffs[63] < 0.99 {
		t.Errorf("Hann center = %v, want near 1", coeffs[63])
	}
}

func TestCoefficientsCached(t *testing.T) {
	a, err := Coefficients(Hann, 512)
	if err != nil {
		t.Fatalf("Coefficients failed: %v", err)
	}
	b, err := Coefficients(Hann, 512)
	if err != nil {
		t.Fatalf("Coefficients failed: %v", err)
	}
	if &a[0] != &b[0] {
		t.Error("expected cached coefficient slice to be reused")
	}
}

func TestInvalidSize(t *testing.T) {
	if _, err := Coefficients(Hann, 0); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestApply(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	coeffs := []float64{0.5, 0.5, 0.5, 0.5}
	dst := make([]float64, 4)
	if err := Apply(dst, src, coeffs); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []float64{0.5, 1, 1.5, 2}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}

	if err := Apply(dst[:2], src, coeffs); err == nil {
		t.Error("expected length mismatch error")
	}
}
