package engine

import "rebuildtrace/internal/stack"

// ScriptedSource hands out causal stacks queued by a script instead of
// walking the real call stack. Each queued stack is used once; with an
// empty queue the fallback is returned.
type ScriptedSource struct {
	queue    [][]stack.Frame
	Fallback []stack.Frame
}

// Push queues frames for the next Capture.
func (s *ScriptedSource) Push(frames []stack.Frame) {
	s.queue = append(s.queue, frames)
}

// Capture returns the oldest queued stack.
func (s *ScriptedSource) Capture() []stack.Frame {
	if len(s.queue) == 0 {
		return s.Fallback
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next
}

// Clear drops every queued stack.
func (s *ScriptedSource) Clear() { s.queue = nil }

// Pending returns the number of queued stacks.
func (s *ScriptedSource) Pending() int { return len(s.queue) }
