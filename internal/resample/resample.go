// SPDX-License-Identifier: MIT
package resample

import (
	"errors"
	"fmt"
	"io"

	"spectro/internal/decode"
)

var (
	// ErrInvalidRate is a configuration error: source or target rate
	// is zero or negative. Caught at construction, never mid-stream.
	ErrInvalidRate = errors.New("resample: sample rate must be positive")

	// ErrMisalignedDst means the destination length is not a multiple
	// of the channel count.
	ErrMisalignedDst = errors.New("resample: dst length must be a multiple of channels")
)

// Resampler converts src to a target sample rate by linear
// interpolation between neighboring frames. Sample order is preserved
// and no gaps are introduced: for a continuous input the output/input
// length ratio converges to target/source. Works on interleaved
// streams and keeps the channel count.
type Resampler struct {
	src      decode.Source
	channels int
	dstRate  int
	step     float64 // source frames consumed per output frame
	pos      float64 // phase in [0,1) between prev and next
	prev     []float64
	next     []float64
	primed   bool
	done     bool
}

// New wraps src to produce samples at targetRate. When the rates
// already match the source is returned as is: a pass-through with zero
// added latency.
func New(src decode.Source, targetRate int) (decode.Source, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("%w: target %d", ErrInvalidRate, targetRate)
	}
	if src.SampleRate() <= 0 {
		return nil, fmt.Errorf("%w: source %d", ErrInvalidRate, src.SampleRate())
	}
	if src.SampleRate() == targetRate {
		return src, nil
	}
	channels := src.Channels()
	return &Resampler{
		src:      src,
		channels: channels,
		dstRate:  targetRate,
		step:     float64(src.SampleRate()) / float64(targetRate),
		prev:     make([]float64, channels),
		next:     make([]float64, channels),
	}, nil
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) Close() error    { return r.src.Close() }

// readFrame fills dst with exactly one interleaved frame, looping over
// short reads. A partial frame at end of stream is dropped.
func (r *Resampler) readFrame(dst []float64) error {
	filled := 0
	for filled < len(dst) {
		n, err := r.src.ReadSamples(dst[filled:])
		filled += n
		if err == io.EOF {
			if filled < len(dst) {
				return io.EOF
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Resampler) prime() error {
	if err := r.readFrame(r.prev); err != nil {
		return err
	}
	if err := r.readFrame(r.next); err != nil {
		if err == io.EOF {
			// Single-frame stream: hold the edge value.
			copy(r.next, r.prev)
			r.done = true
			return nil
		}
		return err
	}
	r.primed = true
	return nil
}

// advance shifts the interpolation pair one source frame forward.
// Reports false when the source is exhausted.
func (r *Resampler) advance() (bool, error) {
	r.prev, r.next = r.next, r.prev
	err := r.readFrame(r.next)
	if err == io.EOF {
		copy(r.next, r.prev)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReadSamples produces interpolated samples at the target rate.
// len(dst) must be a multiple of the channel count.
func (r *Resampler) ReadSamples(dst []float64) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrMisalignedDst
	}
	if !r.primed {
		if r.done {
			return 0, io.EOF
		}
		if err := r.prime(); err != nil {
			return 0, err
		}
	}

	written := 0
	frames := len(dst) / r.channels
	for written < frames {
		for r.pos >= 1.0 {
			ok, err := r.advance()
			if err != nil {
				return written * r.channels, err
			}
			if !ok {
				r.primed = false
				r.done = true
				if written == 0 {
					return 0, io.EOF
				}
				return written * r.channels, nil
			}
			r.pos -= 1.0
		}
		base := written * r.channels
		for c := 0; c < r.channels; c++ {
			dst[base+c] = r.prev[c] + r.pos*(r.next[c]-r.prev[c])
		}
		written++
		r.pos += r.step
	}
	return written * r.channels, nil
}
