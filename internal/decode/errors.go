// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFormat  = errors.New("unknown audio format")
	ErrNotWav         = errors.New("not a WAV file")
	ErrNoPCMData      = errors.New("WAV file has no PCM data")
	ErrUnsupportedBit = errors.New("unsupported bit depth")
)

// Error is a fatal decode failure carrying the format it occurred in.
// Malformed input terminates the owning stream but never crashes the
// process.
type Error struct {
	Format string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
