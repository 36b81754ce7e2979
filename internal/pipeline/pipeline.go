// SPDX-License-Identifier: MIT

// Package pipeline connects decode, resample, ring buffering,
// windowing and the FFT into concurrently running stages with
// backpressure, and emits time-ordered spectral frames.
//
// Stage layout, each an independently progressing goroutine linked to
// its neighbors by bounded channels:
//
//	produce: source -> chunks        (decode + mix + resample pull chain)
//	feed:    chunks -> ring buffers  (de-interleave into lanes)
//	analyze: ring -> window -> FFT   (one frame per hop, per lane)
//	emit:    frames -> sink channel  (FIFO, suspends when sink is full)
//
// A full queue suspends its producer; data is never dropped. Stream
// end propagates down the same path: the chunk channel closes, the
// rings close, the windower drains the remaining buffered samples,
// and the sink channel closes last.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"spectro/internal/decode"
	applog "spectro/internal/log"
	"spectro/internal/resample"
	"spectro/internal/ring"
	"spectro/internal/spectral"
	"spectro/internal/window"
)

// lane is one analysis stream: a ring buffer plus frame scratch
// buffers. Mono-downmix uses a single lane; per-channel analysis uses
// one lane per source channel. Each ring has exactly one producer
// (feed) and one consumer (analyze).
type lane struct {
	channel  int
	buf      *ring.Buffer
	next     int64 // start index of the next frame, advances by hop
	raw      []float64
	windowed []float64
	scratch  []float64 // de-interleave buffer, reused per chunk
}

// Pipeline is a single-stream analysis instance. Construct with New,
// start with Run, consume Frames until it closes, then check Err.
type Pipeline struct {
	cfg    Config
	src    decode.Source
	engine *spectral.Engine
	coeffs []float64
	lanes  []*lane

	chunks chan decode.Chunk
	emitQ  chan *spectral.Frame
	frames chan *spectral.Frame

	state   atomic.Int32
	emitted atomic.Int64
	err     error // set before frames closes; read via Err afterwards
}

// New builds a pipeline over src. The source is wrapped with the mono
// mixer (under MixMono) and the resampler as the configuration
// demands; src stays owned by the caller and is not closed here.
// The FFT plan is fixed to cfg.FFTSize for the pipeline's lifetime.
func New(src decode.Source, cfg Config) (*Pipeline, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chain := src
	if cfg.Mix == MixMono {
		chain = resample.NewMonoMixer(chain)
	}
	chain, err := resample.New(chain, cfg.TargetRate)
	if err != nil {
		return nil, err
	}

	engine, err := spectral.NewEngine(cfg.FFTSize)
	if err != nil {
		return nil, err
	}
	coeffs, err := window.Coefficients(cfg.Window, cfg.FFTSize)
	if err != nil {
		return nil, err
	}

	laneCount := chain.Channels()
	lanes := make([]*lane, laneCount)
	for i := range lanes {
		buf, err := ring.New(cfg.RingCapacity, cfg.Overflow)
		if err != nil {
			return nil, err
		}
		lanes[i] = &lane{
			channel:  i,
			buf:      buf,
			raw:      make([]float64, cfg.FFTSize),
			windowed: make([]float64, cfg.FFTSize),
		}
	}

	applog.Infof("pipeline %q: N=%d H=%d window=%s rate=%d mix=%s lanes=%d overflow=%s tail=%s",
		cfg.StreamID, cfg.FFTSize, cfg.HopSize, cfg.Window, cfg.TargetRate,
		cfg.Mix, laneCount, cfg.Overflow, cfg.Tail)

	return &Pipeline{
		cfg:    cfg,
		src:    chain,
		engine: engine,
		coeffs: coeffs,
		lanes:  lanes,
		chunks: make(chan decode.Chunk, cfg.QueueDepth),
		emitQ:  make(chan *spectral.Frame, cfg.QueueDepth),
		frames: make(chan *spectral.Frame, cfg.QueueDepth),
	}, nil
}

// Frames returns the sink channel. It delivers frames in strictly
// increasing start-index order per lane and closes on completion or
// failure; after it closes, Err reports the terminal error, if any.
func (p *Pipeline) Frames() <-chan *spectral.Frame { return p.frames }

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// Err returns the terminal error once the frames channel has closed,
// or nil after a clean completion.
func (p *Pipeline) Err() error { return p.err }

// Emitted returns the number of frames delivered to the sink so far.
func (p *Pipeline) Emitted() int64 { return p.emitted.Load() }

// Run executes the pipeline until the stream ends, a stage fails, or
// ctx is cancelled, then closes the frames channel. It may be called
// once per instance. Cancellation is surfaced as a terminal error
// wrapping ctx.Err().
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return fmt.Errorf("pipeline: Run called on %s instance", p.State())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.produce(gctx) })
	g.Go(func() error { return p.feed(gctx) })
	g.Go(func() error { return p.analyze(gctx) })
	g.Go(func() error { return p.emit(gctx) })

	// A failed stage cancels gctx; waking ring waiters here keeps the
	// other stages from blocking forever on a dead neighbor.
	go func() {
		<-gctx.Done()
		p.closeRings()
	}()

	err := g.Wait()
	p.closeRings()
	if err != nil {
		p.err = &Error{Stream: p.cfg.StreamID, Frames: p.emitted.Load(), Err: err}
		p.state.Store(int32(Failed))
		close(p.frames)
		applog.Errorf("pipeline %q: failed: %v", p.cfg.StreamID, err)
		return p.err
	}

	p.state.Store(int32(Completed))
	close(p.frames)
	applog.Infof("pipeline %q: completed, %d frames emitted", p.cfg.StreamID, p.emitted.Load())
	return nil
}

func (p *Pipeline) closeRings() {
	for _, ln := range p.lanes {
		ln.buf.Close()
	}
}

// produce pulls decoded (and mixed/resampled) samples and hands them
// downstream as immutable chunks. Blocking I/O lives here and only
// here.
func (p *Pipeline) produce(ctx context.Context) error {
	defer close(p.chunks)
	for {
		buf := make([]float64, p.cfg.ChunkSize)
		n, err := p.src.ReadSamples(buf)
		if n > 0 {
			chunk := decode.Chunk{
				Samples:  buf[:n],
				Channels: p.src.Channels(),
				Rate:     p.src.SampleRate(),
			}
			select {
			case p.chunks <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// feed writes chunks into the lane ring buffers, de-interleaving when
// more than one lane is active. When the chunk channel closes it
// closes the rings, which moves the pipeline into Draining.
func (p *Pipeline) feed(ctx context.Context) error {
	defer p.closeRings()
	for {
		select {
		case chunk, ok := <-p.chunks:
			if !ok {
				if p.state.CompareAndSwap(int32(Running), int32(Draining)) {
					applog.Debugf("pipeline %q: draining", p.cfg.StreamID)
				}
				return nil
			}
			if err := p.writeChunk(chunk); err != nil {
				// Cancellation wakes blocked ring writers by closing
				// the rings; report the cancellation, not the wake-up.
				if errors.Is(err, ring.ErrClosed) && ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) writeChunk(c decode.Chunk) error {
	if len(p.lanes) == 1 && c.Channels == 1 {
		return p.lanes[0].buf.Write(c.Samples)
	}

	frames := c.Frames()
	for _, ln := range p.lanes {
		if cap(ln.scratch) < frames {
			ln.scratch = make([]float64, frames)
		}
		s := ln.scratch[:frames]
		for f := 0; f < frames; f++ {
			s[f] = c.Samples[f*c.Channels+ln.channel]
		}
		if err := ln.buf.Write(s); err != nil {
			return err
		}
	}
	return nil
}

// analyze is the windower and FFT stage: per lane, peek a frame,
// window, transform, advance by the hop. Every lane gets its own
// goroutine: the feeder fills lanes one after another, so a lane
// waiting for input must never hold up a lane whose ring is full, or
// a blocking write and a blocked wait could stall each other. The
// engine serializes transforms internally.
func (p *Pipeline) analyze(ctx context.Context) error {
	defer close(p.emitQ)
	g, gctx := errgroup.WithContext(ctx)
	for _, ln := range p.lanes {
		g.Go(func() error { return p.analyzeLane(gctx, ln) })
	}
	return g.Wait()
}

func (p *Pipeline) analyzeLane(ctx context.Context, ln *lane) error {
	for {
		err := ln.buf.WaitFrame(ln.raw)
		if err == io.EOF {
			// Stream ended below one frame. The tail policy decides
			// whether the remainder is zero-padded out or dropped.
			if p.cfg.Tail == TailZeroPad && ln.buf.Occupancy() > 0 {
				ln.buf.ReadTail(ln.raw)
				return p.transformAndEmit(ctx, ln)
			}
			return nil
		}
		if err != nil {
			return err
		}
		if err := p.transformAndEmit(ctx, ln); err != nil {
			return err
		}
		if err := ln.buf.Advance(p.cfg.HopSize); err != nil {
			return err
		}
	}
}

func (p *Pipeline) transformAndEmit(ctx context.Context, ln *lane) error {
	if err := window.Apply(ln.windowed, ln.raw, p.coeffs); err != nil {
		return err
	}
	bins := make([]complex128, p.engine.Bins())
	if err := p.engine.Transform(bins, ln.windowed); err != nil {
		return err
	}

	f := &spectral.Frame{
		Bins:       bins,
		StartIndex: ln.next,
		Channel:    ln.channel,
		SampleRate: p.cfg.TargetRate,
		FFTSize:    p.cfg.FFTSize,
		HopSize:    p.cfg.HopSize,
		Window:     p.cfg.Window,
	}
	ln.next += int64(p.cfg.HopSize)

	select {
	case p.emitQ <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit forwards frames to the sink channel in arrival order, which is
// start-index order per lane. It suspends while the sink is full;
// frames are never reordered or dropped.
func (p *Pipeline) emit(ctx context.Context) error {
	for {
		select {
		case f, ok := <-p.emitQ:
			if !ok {
				return nil
			}
			select {
			case p.frames <- f:
				p.emitted.Add(1)
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
