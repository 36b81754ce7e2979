// SPDX-License-Identifier: MIT
package pipeline

import "fmt"

// State is the lifecycle of a pipeline instance:
//
//	Idle -> Running -> Draining -> Completed
//
// Failed is terminal and reachable from any non-terminal state.
// Draining means the decoder reached end of stream and buffered
// samples are still flowing through the transform stages.
type State int32

const (
	Idle State = iota
	Running
	Draining
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}
