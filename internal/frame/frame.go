// Package frame holds the per-frame event types and the buffer that
// collects them until the frame ends.
package frame

import "rebuildtrace/internal/stack"

// RebuildEvent records that a dirty node was rebuilt.
type RebuildEvent struct {
	TimeMS    int64  `json:"time_ms" msgpack:"time_ms"`
	Subject   string `json:"subject" msgpack:"subject"`
	BuiltOnce bool   `json:"built_once,omitempty" msgpack:"built_once,omitempty"`
}

// ScheduleEvent records an explicit schedule-for-rebuild together with the
// trimmed causal stack. Stack is never empty.
type ScheduleEvent struct {
	TimeMS  int64         `json:"time_ms" msgpack:"time_ms"`
	Subject string        `json:"subject" msgpack:"subject"`
	Stack   []stack.Frame `json:"stack" msgpack:"stack"`
}

// Key returns the deduplication key of the causal stack.
func (e ScheduleEvent) Key() stack.Key {
	return stack.NewKey(e.Stack)
}

// Record is the immutable result of one completed frame.
type Record struct {
	Number    int             `json:"number" msgpack:"number"`
	Rebuilds  []RebuildEvent  `json:"rebuilds" msgpack:"rebuilds"`
	Schedules []ScheduleEvent `json:"schedules" msgpack:"schedules"`
}

// Empty reports whether the frame saw no events.
func (r Record) Empty() bool {
	return len(r.Rebuilds) == 0 && len(r.Schedules) == 0
}
