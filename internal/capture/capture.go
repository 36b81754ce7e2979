// SPDX-License-Identifier: MIT

// Package capture exposes a live PortAudio input stream as a
// decode.Source, so the analysis pipeline runs unchanged against a
// microphone or loopback device. The PortAudio callback runs on a
// dedicated OS thread and must never block, so buffers are handed to
// the reader through a bounded channel; when the pipeline falls
// behind, whole buffers are dropped and counted rather than stalling
// the audio thread.
package capture

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"spectro/internal/decode"
	applog "spectro/internal/log"
)

// DefaultDeviceID selects the system default input device.
const DefaultDeviceID = -1

// ErrStreamClosed marks reads after Close.
var ErrStreamClosed = errors.New("capture: stream closed")

// Initialize sets up the PortAudio subsystem. It must be called before
// any capture operation and paired with a Terminate call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("capture: initialize portaudio: %w", err)
	}
	return nil
}

// Terminate shuts the PortAudio subsystem down. Defer it right after
// Initialize.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("capture: terminate portaudio: %w", err)
	}
	return nil
}

// Config describes the input stream to open.
type Config struct {
	DeviceID        int // DefaultDeviceID for the system default
	Channels        int
	SampleRate      int
	FramesPerBuffer int
	LowLatency      bool
	QueueDepth      int // buffers held between callback and reader
}

func (c Config) withDefaults() Config {
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.SampleRate == 0 {
		c.SampleRate = 44100
	}
	if c.FramesPerBuffer == 0 {
		c.FramesPerBuffer = 1024
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = 16
	}
	return c
}

// Source is a live-input decode.Source. Open it with OpenSource, read
// it from a single goroutine, and Close it to stop the stream.
type Source struct {
	cfg    Config
	device *portaudio.DeviceInfo
	stream *portaudio.Stream

	queue chan []float64
	pool  sync.Pool
	rest  []float64

	dropped atomic.Int64
	closed  atomic.Bool
}

var _ decode.Source = (*Source)(nil)

// OpenSource opens and starts an input stream on the given device.
func OpenSource(cfg Config) (*Source, error) {
	cfg = cfg.withDefaults()

	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}

	s := &Source{
		cfg:    cfg,
		device: device,
		queue:  make(chan []float64, cfg.QueueDepth),
	}
	size := cfg.FramesPerBuffer * cfg.Channels
	s.pool.New = func() any { return make([]float64, size) }

	latency := device.DefaultHighInputLatency
	if cfg.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: cfg.Channels,
			Device:   device,
			Latency:  latency,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      float64(cfg.SampleRate),
	}

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return nil, fmt.Errorf("capture: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("capture: start stream: %w", err)
	}
	s.stream = stream

	applog.Infof("capture: device %q, %d ch @ %d Hz, %d frames/buffer",
		device.Name, cfg.Channels, cfg.SampleRate, cfg.FramesPerBuffer)
	return s, nil
}

// callback runs on the PortAudio thread. No blocking, no allocation
// beyond the pool refill.
func (s *Source) callback(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// Stop() in Close drains pending callbacks before the queue
	// closes; this guard covers a callback already in flight.
	if s.closed.Load() {
		return
	}

	buf := s.pool.Get().([]float64)
	n := len(in)
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] = float64(in[i])
	}

	select {
	case s.queue <- buf[:n]:
	default:
		s.pool.Put(buf)
		if dropped := s.dropped.Add(1); dropped%100 == 1 {
			applog.Warnf("capture: reader behind, %d buffers dropped", dropped)
		}
	}
}

func (s *Source) SampleRate() int { return s.cfg.SampleRate }
func (s *Source) Channels() int   { return s.cfg.Channels }

// Dropped returns the number of buffers discarded because the reader
// could not keep up.
func (s *Source) Dropped() int64 { return s.dropped.Load() }

// ReadSamples blocks until captured samples are available. After Close
// it drains the queue and then reports io.EOF via a zero read.
func (s *Source) ReadSamples(dst []float64) (int, error) {
	for len(s.rest) == 0 {
		buf, ok := <-s.queue
		if !ok {
			return 0, io.EOF
		}
		s.rest = buf
	}

	n := copy(dst, s.rest)
	if n == len(s.rest) {
		s.pool.Put(s.rest[:cap(s.rest)])
		s.rest = nil
	} else {
		s.rest = s.rest[n:]
	}
	return n, nil
}

// Close stops the stream and ends the sample stream. Safe to call once
// while a reader is blocked in ReadSamples.
func (s *Source) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrStreamClosed
	}

	err := s.stream.Stop()
	if cerr := s.stream.Close(); err == nil {
		err = cerr
	}
	close(s.queue)
	if err != nil {
		return fmt.Errorf("capture: close stream: %w", err)
	}
	return nil
}
