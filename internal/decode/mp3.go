// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MPEG-1 Layer III streams. go-mp3 always emits
// 16-bit little-endian stereo PCM regardless of the source channel
// layout, so Channels is fixed at 2.
type MP3Decoder struct{}

type mp3Source struct {
	dec  *gomp3.Decoder
	buf  []byte
	rest int // leftover bytes from a short read, kept at buf[0:rest]
}

func (MP3Decoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3 header: %w", err)
	}
	return &mp3Source{dec: dec, buf: make([]byte, 8192)}, nil
}

func (s *mp3Source) SampleRate() int { return s.dec.SampleRate() }
func (s *mp3Source) Channels() int   { return 2 }
func (s *mp3Source) Close() error    { return nil }

func (s *mp3Source) ReadSamples(dst []float64) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	need := len(dst) * 2 // 2 bytes per 16-bit sample
	if cap(s.buf) < need {
		buf := make([]byte, need)
		copy(buf, s.buf[:s.rest])
		s.buf = buf
	}
	s.buf = s.buf[:need]

	n, err := s.dec.Read(s.buf[s.rest:])
	avail := s.rest + n
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("mp3 read: %w", err)
	}

	samples := avail / 2
	for i := 0; i < samples; i++ {
		v := int16(uint16(s.buf[2*i]) | uint16(s.buf[2*i+1])<<8)
		dst[i] = float64(v) / 32768.0
	}

	// An odd byte count leaves half a sample for the next call.
	s.rest = avail - samples*2
	if s.rest > 0 {
		s.buf[0] = s.buf[samples*2]
	}

	if samples == 0 && err == io.EOF {
		return 0, io.EOF
	}
	return samples, nil
}
