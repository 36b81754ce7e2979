// SPDX-License-Identifier: MIT

// Package transport delivers spectral frames to external consumers.
// Sinks receive frames as JSON payloads carrying magnitudes plus the
// timing metadata a client needs to place them on a timeline.
package transport

import (
	"encoding/json"
	"io"
	"sync"

	"spectro/internal/spectral"
)

// Sink consumes spectral frames. Implementations must tolerate
// concurrent Send calls.
type Sink interface {
	Send(f *spectral.Frame) error
	Close() error
}

// framePayload is the wire shape of one frame.
type framePayload struct {
	Stream     string    `json:"stream,omitempty"`
	Channel    int       `json:"channel"`
	StartIndex int64     `json:"start_index"`
	TimeMs     float64   `json:"time_ms"`
	SampleRate int       `json:"sample_rate"`
	FFTSize    int       `json:"fft_size"`
	HopSize    int       `json:"hop_size"`
	Magnitudes []float64 `json:"magnitudes"`
}

func payloadFor(stream string, f *spectral.Frame) framePayload {
	return framePayload{
		Stream:     stream,
		Channel:    f.Channel,
		StartIndex: f.StartIndex,
		TimeMs:     float64(f.StartTime().Microseconds()) / 1000,
		SampleRate: f.SampleRate,
		FFTSize:    f.FFTSize,
		HopSize:    f.HopSize,
		Magnitudes: f.Magnitudes(),
	}
}

// WriterSink streams frames as JSON lines to an io.Writer, one object
// per frame.
type WriterSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	stream string
}

// NewWriterSink wraps w. The stream tag is attached to every payload;
// empty omits it.
func NewWriterSink(w io.Writer, stream string) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w), stream: stream}
}

func (s *WriterSink) Send(f *spectral.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(payloadFor(s.stream, f))
}

func (s *WriterSink) Close() error { return nil }
