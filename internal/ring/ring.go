// SPDX-License-Identifier: MIT

// Package ring implements the fixed-capacity sample buffer sitting
// between the decode/resample producer and the frame windower. It
// absorbs variable-size decode chunks and serves fixed-size, possibly
// overlapping analysis frames.
//
// The buffer is a flat arena with two monotonic cursors: the write
// cursor W and the read cursor R. The invariant 0 <= W-R <= capacity
// holds at all times; positions map into the arena by modular
// arithmetic. Exactly one producer and one consumer may use a buffer.
package ring

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var (
	// ErrOverflow is returned by Write under OverflowFail when the
	// chunk does not fit. It is fatal to the stream: capacity is
	// misconfigured relative to consumer speed.
	ErrOverflow = errors.New("ring: write exceeds capacity")

	// ErrInsufficientData is a transient control signal: fewer samples
	// are buffered than the requested frame size. It never escapes the
	// windower stage.
	ErrInsufficientData = errors.New("ring: insufficient data for frame")

	// ErrInvalidAdvance means the consumer tried to advance past the
	// write cursor. This is a stage-wiring bug, not an input problem.
	ErrInvalidAdvance = errors.New("ring: advance past write cursor")

	// ErrClosed is returned by Write after Close.
	ErrClosed = errors.New("ring: buffer closed")
)

// OverflowPolicy selects what Write does when the buffer is full.
// There is no default: construction requires an explicit choice.
type OverflowPolicy int

const (
	// OverflowBlock suspends the producer until the consumer advances.
	OverflowBlock OverflowPolicy = iota
	// OverflowFail rejects the write with ErrOverflow.
	OverflowFail
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowBlock:
		return "block"
	case OverflowFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy converts a config string to an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(s) {
	case "block":
		return OverflowBlock, nil
	case "fail":
		return OverflowFail, nil
	default:
		return OverflowBlock, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Buffer is the circular sample store. All methods are safe for one
// producer goroutine and one consumer goroutine running concurrently.
type Buffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []float64
	w, r   uint64 // monotonic cursors; occupancy is w-r
	policy OverflowPolicy
	closed bool
}

// New creates a buffer holding capacity samples with the given
// overflow policy.
func New(capacity int, policy OverflowPolicy) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring: capacity must be positive, got %d", capacity)
	}
	b := &Buffer{data: make([]float64, capacity), policy: policy}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

// Capacity returns the fixed sample capacity.
func (b *Buffer) Capacity() int { return len(b.data) }

// Occupancy returns W-R, the number of buffered unread samples.
// Observable for flow-control decisions.
func (b *Buffer) Occupancy() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.w - b.r)
}

// Write appends all of p. Under OverflowBlock it suspends until space
// frees up; under OverflowFail it returns ErrOverflow without writing
// anything if p does not fit in the current free space.
func (b *Buffer) Write(p []float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if b.policy == OverflowFail {
		if len(p) > len(b.data)-int(b.w-b.r) {
			return ErrOverflow
		}
		b.copyIn(p)
		b.cond.Broadcast()
		return nil
	}

	for len(p) > 0 {
		free := len(b.data) - int(b.w-b.r)
		for free == 0 {
			b.cond.Wait()
			if b.closed {
				return ErrClosed
			}
			free = len(b.data) - int(b.w-b.r)
		}
		n := min(free, len(p))
		b.copyIn(p[:n])
		p = p[n:]
		b.cond.Broadcast()
	}
	return nil
}

// copyIn appends p, which must fit. Caller holds the lock.
func (b *Buffer) copyIn(p []float64) {
	for len(p) > 0 {
		idx := int(b.w % uint64(len(b.data)))
		n := copy(b.data[idx:], p)
		b.w += uint64(n)
		p = p[n:]
	}
}

// ReadFrame copies the next len(dst) samples starting at R into dst
// without advancing R, so the windower can inspect overlapping history
// without double-copying. Returns ErrInsufficientData when fewer than
// len(dst) samples are buffered.
func (b *Buffer) ReadFrame(dst []float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(b.w-b.r) < len(dst) {
		return ErrInsufficientData
	}
	b.copyOut(dst)
	return nil
}

// WaitFrame is ReadFrame with suspension: it blocks until len(dst)
// samples are buffered or the buffer is closed. On a closed buffer
// with fewer than len(dst) samples remaining it returns io.EOF.
func (b *Buffer) WaitFrame(dst []float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for int(b.w-b.r) < len(dst) {
		if b.closed {
			return io.EOF
		}
		b.cond.Wait()
	}
	b.copyOut(dst)
	return nil
}

// copyOut copies len(dst) samples at R into dst. Caller holds the lock
// and has checked occupancy.
func (b *Buffer) copyOut(dst []float64) {
	r := b.r
	for len(dst) > 0 {
		idx := int(r % uint64(len(b.data)))
		n := copy(dst, b.data[idx:])
		r += uint64(n)
		dst = dst[n:]
	}
}

// ReadTail drains the remaining samples into dst, zero-filling the
// rest, and advances R to W. It returns the number of real samples
// copied. Used for the zero-pad trailing-frame policy after close.
func (b *Buffer) ReadTail(dst []float64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	occ := int(b.w - b.r)
	if occ > len(dst) {
		occ = len(dst)
	}
	b.copyOut(dst[:occ])
	for i := occ; i < len(dst); i++ {
		dst[i] = 0
	}
	b.r += uint64(occ)
	b.cond.Broadcast()
	return occ
}

// Advance moves R forward by h, releasing space for the producer.
// Advancing past W fails with ErrInvalidAdvance.
func (b *Buffer) Advance(h int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h < 0 || uint64(h) > b.w-b.r {
		return ErrInvalidAdvance
	}
	b.r += uint64(h)
	b.cond.Broadcast()
	return nil
}

// Close marks the end of the stream and wakes all waiters. Buffered
// samples stay readable; writes after Close fail with ErrClosed.
// Close is idempotent.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}
