// SPDX-License-Identifier: MIT

// Package decode is the codec boundary of the analysis pipeline. It
// exposes compressed or raw audio files as a uniform stream of
// interleaved float64 samples in [-1, 1]; the pipeline never inspects
// container or bitstream internals. Supported codecs form a closed set:
// WAV and MP3. Adding a codec means registering another Decoder, not
// touching the pipeline.
package decode

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Source is a decoded PCM stream.
type Source interface {
	// SampleRate of the stream in Hz.
	SampleRate() int
	// Channels count (1=mono, 2=stereo).
	Channels() int
	// ReadSamples fills dst with interleaved samples in [-1, 1] and
	// returns the number of values written. io.EOF with n == 0 marks
	// the end of the stream.
	ReadSamples(dst []float64) (n int, err error)
	// Close releases decoder resources.
	Close() error
}

// Chunk is one decoded block of interleaved samples tagged with its
// source layout. Chunks are immutable once produced; ownership passes
// to the consumer.
type Chunk struct {
	Samples  []float64
	Channels int
	Rate     int
}

// Frames returns the number of per-channel sample frames in the chunk.
func (c Chunk) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Decoder constructs a Source from an input stream. The reader must be
// seekable because WAV chunk scanning needs to skip non-PCM chunks.
type Decoder interface {
	Decode(r io.ReadSeeker) (Source, error)
}

// Registry maps format keys ("wav", "mp3") to decoders.
type Registry struct {
	mtx    sync.Mutex
	codecs map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

func (r *Registry) Register(format string, d Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.codecs[format] = d
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	d, ok := r.codecs[format]
	return d, ok
}

// DefaultRegistry holds the built-in codec set.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register("wav", WAVDecoder{})
	DefaultRegistry.Register("mp3", MP3Decoder{})
}

// Open decodes the file at path, picking the codec from the file
// extension. The returned Source owns the file handle.
func Open(path string) (Source, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	dec, ok := DefaultRegistry.Get(format)
	if !ok {
		return nil, &Error{Format: format, Err: ErrUnknownFormat}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	src, err := dec.Decode(f)
	if err != nil {
		f.Close()
		return nil, &Error{Format: format, Err: err}
	}
	return &fileSource{Source: src, f: f}, nil
}

// fileSource ties the lifetime of the backing file to the source.
type fileSource struct {
	Source
	f *os.File
}

func (s *fileSource) Close() error {
	if err := s.Source.Close(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
