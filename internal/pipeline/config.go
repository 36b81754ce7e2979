// SPDX-License-Identifier: MIT
package pipeline

import (
	"fmt"
	"strings"

	"spectro/internal/ring"
	"spectro/internal/window"
	"spectro/pkg/bitint"
)

// MixPolicy selects how multi-channel input maps onto analysis lanes.
type MixPolicy int

const (
	// MixMono downmixes all channels to one lane by arithmetic mean.
	MixMono MixPolicy = iota
	// MixPerChannel analyzes every source channel in its own lane.
	MixPerChannel
)

func (p MixPolicy) String() string {
	switch p {
	case MixMono:
		return "mono-downmix"
	case MixPerChannel:
		return "per-channel"
	default:
		return "unknown"
	}
}

// ParseMixPolicy converts a config string to a MixPolicy.
func ParseMixPolicy(s string) (MixPolicy, error) {
	switch strings.ToLower(s) {
	case "mono-downmix", "mono":
		return MixMono, nil
	case "per-channel":
		return MixPerChannel, nil
	default:
		return MixMono, fmt.Errorf("unknown channel mix policy %q", s)
	}
}

// TailPolicy selects what happens to a trailing partial frame (fewer
// than FFTSize samples at end of stream).
type TailPolicy int

const (
	// TailDrop discards the partial frame.
	TailDrop TailPolicy = iota
	// TailZeroPad zero-pads the partial frame to FFTSize and emits it.
	TailZeroPad
)

func (p TailPolicy) String() string {
	switch p {
	case TailDrop:
		return "drop"
	case TailZeroPad:
		return "zero-pad"
	default:
		return "unknown"
	}
}

// ParseTailPolicy converts a config string to a TailPolicy.
func ParseTailPolicy(s string) (TailPolicy, error) {
	switch strings.ToLower(s) {
	case "drop":
		return TailDrop, nil
	case "zero-pad", "zeropad", "pad":
		return TailZeroPad, nil
	default:
		return TailDrop, fmt.Errorf("unknown tail policy %q", s)
	}
}

// Config fixes the analysis parameters for the lifetime of a Pipeline.
// FFTSize cannot change on a running instance; build a new Pipeline to
// re-plan.
type Config struct {
	// FFTSize is the analysis frame length N. Must be a power of 2.
	FFTSize int

	// HopSize is the read-cursor advance H between frames, 1 <= H <= N.
	// Overlap is N-H.
	HopSize int

	// Window applied before the transform.
	Window window.Type

	// TargetRate is the analysis sample rate in Hz. Sources at other
	// rates are resampled.
	TargetRate int

	// Mix is the channel policy. No default: say what you mean.
	Mix MixPolicy

	// RingCapacity in samples per lane; must be >= FFTSize.
	// 0 means 4*FFTSize.
	RingCapacity int

	// Overflow is the ring buffer's write policy.
	Overflow ring.OverflowPolicy

	// Tail is the trailing-partial-frame policy.
	Tail TailPolicy

	// QueueDepth bounds the inter-stage channels. 0 means 8.
	QueueDepth int

	// ChunkSize is the decode read size in samples. 0 means 4096.
	ChunkSize int

	// StreamID tags errors and log lines with the stream's identity,
	// typically the input path or device name.
	StreamID string
}

func (c Config) withDefaults() Config {
	if c.RingCapacity == 0 {
		c.RingCapacity = 4 * c.FFTSize
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = 8
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 4096
	}
	return c
}

// Validate reports the first configuration error. Called by New after
// defaults are applied.
func (c Config) Validate() error {
	if !bitint.IsPowerOfTwo(c.FFTSize) {
		return fmt.Errorf("pipeline: fft size must be a power of 2, got %d", c.FFTSize)
	}
	if c.HopSize < 1 || c.HopSize > c.FFTSize {
		return fmt.Errorf("pipeline: hop size must be in [1, %d], got %d", c.FFTSize, c.HopSize)
	}
	if c.TargetRate <= 0 {
		return fmt.Errorf("pipeline: target rate must be positive, got %d", c.TargetRate)
	}
	if c.RingCapacity < c.FFTSize {
		return fmt.Errorf("pipeline: ring capacity %d smaller than fft size %d", c.RingCapacity, c.FFTSize)
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("pipeline: queue depth must be positive, got %d", c.QueueDepth)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("pipeline: chunk size must be positive, got %d", c.ChunkSize)
	}
	return nil
}
