// SPDX-License-Identifier: MIT
package ring

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func mustNew(t *testing.T, capacity int, policy OverflowPolicy) *Buffer {
	t.Helper()
	b, err := New(capacity, policy)
	if err != nil {
		t.Fatalf("New(%d, %v) failed: %v", capacity, policy, err)
	}
	return b
}

func seq(start, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(start + i)
	}
	return out
}

func TestWriteReadFrameAdvance(t *testing.T) {
	b := mustNew(t, 8, OverflowFail)

	if err := b.Write(seq(0, 6)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := b.Occupancy(); got != 6 {
		t.Fatalf("occupancy = %d, want 6", got)
	}

	frame := make([]float64, 4)
	if err := b.ReadFrame(frame); err != nil {
		t.Fatalf("read frame failed: %v", err)
	}
	for i, v := range frame {
		if v != float64(i) {
			t.Errorf("frame[%d] = %v, want %v", i, v, float64(i))
		}
	}

	// Peek must not advance: a second read sees the same samples.
	again := make([]float64, 4)
	if err := b.ReadFrame(again); err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if again[0] != frame[0] {
		t.Errorf("peek advanced the read cursor: got %v, want %v", again[0], frame[0])
	}

	if err := b.Advance(2); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if err := b.ReadFrame(frame); err != nil {
		t.Fatalf("read after advance failed: %v", err)
	}
	if frame[0] != 2 {
		t.Errorf("frame[0] after advance = %v, want 2", frame[0])
	}
}

func TestWrapAround(t *testing.T) {
	b := mustNew(t, 8, OverflowFail)

	// Fill, drain most of it, then write across the arena boundary.
	if err := b.Write(seq(0, 8)); err != nil {
		t.Fatalf("initial write failed: %v", err)
	}
	if err := b.Advance(6); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if err := b.Write(seq(8, 5)); err != nil {
		t.Fatalf("wrapping write failed: %v", err)
	}

	frame := make([]float64, 7)
	if err := b.ReadFrame(frame); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	for i, v := range frame {
		if v != float64(6+i) {
			t.Errorf("frame[%d] = %v, want %v", i, v, float64(6+i))
		}
	}
}

func TestOverflowFail(t *testing.T) {
	b := mustNew(t, 2048, OverflowFail)

	// Producer writes 4096 samples in one call before any read.
	err := b.Write(make([]float64, 4096))
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	// A failed write must not partially commit.
	if got := b.Occupancy(); got != 0 {
		t.Errorf("occupancy after failed write = %d, want 0", got)
	}
}

func TestInsufficientData(t *testing.T) {
	b := mustNew(t, 16, OverflowFail)
	if err := b.Write(seq(0, 3)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	err := b.ReadFrame(make([]float64, 4))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestInvalidAdvance(t *testing.T) {
	b := mustNew(t, 16, OverflowFail)
	if err := b.Write(seq(0, 4)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := b.Advance(5); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("expected ErrInvalidAdvance, got %v", err)
	}
	if err := b.Advance(-1); !errors.Is(err, ErrInvalidAdvance) {
		t.Fatalf("expected ErrInvalidAdvance for negative advance, got %v", err)
	}
}

// Cursor invariant: for any interleaving of write/read/advance calls
// respecting capacity, 0 <= W-R <= C holds throughout.
func TestCursorInvariant(t *testing.T) {
	const capacity = 64
	b := mustNew(t, capacity, OverflowFail)

	writes := []int{7, 13, 1, 30, 5, 8, 21, 3}
	advances := []int{3, 9, 0, 17, 11, 2, 20, 10}

	for i := range writes {
		if err := b.Write(make([]float64, writes[i])); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
		occ := b.Occupancy()
		if occ < 0 || occ > capacity {
			t.Fatalf("occupancy %d outside [0, %d] after write %d", occ, capacity, i)
		}
		if err := b.Advance(advances[i]); err != nil {
			t.Fatalf("advance %d failed: %v", i, err)
		}
		occ = b.Occupancy()
		if occ < 0 || occ > capacity {
			t.Fatalf("occupancy %d outside [0, %d] after advance %d", occ, capacity, i)
		}
	}
}

func TestBlockingWriteUnblocksOnAdvance(t *testing.T) {
	b := mustNew(t, 8, OverflowBlock)
	if err := b.Write(seq(0, 8)); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	werr := make(chan error, 1)
	go func() {
		defer wg.Done()
		werr <- b.Write(seq(8, 4))
	}()

	// Give the writer a moment to block, then free space.
	time.Sleep(10 * time.Millisecond)
	if err := b.Advance(4); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	wg.Wait()

	if err := <-werr; err != nil {
		t.Fatalf("blocked write failed: %v", err)
	}
	if got := b.Occupancy(); got != 8 {
		t.Errorf("occupancy = %d, want 8", got)
	}
}

func TestWaitFrameSuspendsUntilData(t *testing.T) {
	b := mustNew(t, 16, OverflowBlock)

	got := make(chan error, 1)
	go func() {
		frame := make([]float64, 4)
		got <- b.WaitFrame(frame)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := b.Write(seq(0, 4)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case err := <-got:
		if err != nil {
			t.Fatalf("WaitFrame returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitFrame did not wake after write")
	}
}

func TestWaitFrameEOFOnClose(t *testing.T) {
	b := mustNew(t, 16, OverflowBlock)
	if err := b.Write(seq(0, 2)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	b.Close()

	err := b.WaitFrame(make([]float64, 4))
	if err != io.EOF {
		t.Fatalf("expected io.EOF on closed underfull buffer, got %v", err)
	}

	// The trailing samples stay readable through ReadTail.
	tail := make([]float64, 4)
	if n := b.ReadTail(tail); n != 2 {
		t.Fatalf("ReadTail copied %d samples, want 2", n)
	}
	if tail[0] != 0 || tail[1] != 1 {
		t.Errorf("tail samples = %v, want [0 1 ...]", tail[:2])
	}
	if tail[2] != 0 || tail[3] != 0 {
		t.Errorf("tail padding = %v, want zeros", tail[2:])
	}
}

func TestWriteAfterClose(t *testing.T) {
	b := mustNew(t, 8, OverflowBlock)
	b.Close()
	if err := b.Write(seq(0, 1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	if p, err := ParseOverflowPolicy("block"); err != nil || p != OverflowBlock {
		t.Errorf("ParseOverflowPolicy(block) = %v, %v", p, err)
	}
	if p, err := ParseOverflowPolicy("FAIL"); err != nil || p != OverflowFail {
		t.Errorf("ParseOverflowPolicy(FAIL) = %v, %v", p, err)
	}
	if _, err := ParseOverflowPolicy("drop"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
