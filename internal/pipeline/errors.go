// SPDX-License-Identifier: MIT
package pipeline

import "fmt"

// Error is the single terminal error surfaced by a failed pipeline.
// It carries the stream identity and the position reached, so callers
// can tell bad input (decode errors) from internal bugs (invariant
// violations) and know where the stream broke.
type Error struct {
	// Stream is Config.StreamID.
	Stream string
	// Frames is the number of spectral frames emitted before failure.
	Frames int64
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline %q: after %d frames: %v", e.Stream, e.Frames, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
