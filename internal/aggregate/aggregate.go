// Package aggregate turns the raw rebuild/schedule notifications of one
// frame into a frame.Record when the host signals the end of the frame.
//
// # State machine
//
//	Idle ──Enable──▶ Armed ──event──▶ Collecting
//	  ▲                ▲                   │
//	  │                └──── frame end ────┘ (dispatch, re-register)
//	  └──────────── Disable (from any state, buffer dropped)
//
// The host's post-frame registration is single-shot. The aggregator
// registers again after every dispatch; a generation number makes
// registrations made before a Disable harmless when they fire later.
package aggregate

import (
	"time"

	"rebuildtrace/internal/frame"
	"rebuildtrace/internal/stack"
)

// State is the aggregator lifecycle state.
type State uint8

const (
	StateIdle       State = iota // tracking disabled
	StateArmed                   // waiting for events or frame end, buffer empty
	StateCollecting              // buffer holds at least one event
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateCollecting:
		return "collecting"
	default:
		return "unknown"
	}
}

// FrameScheduler runs fn once, after the frame currently in progress has
// finished. Each registration fires at most once.
type FrameScheduler interface {
	AddPostFrameCallback(fn func())
}

// DispatchFunc receives every completed frame, in frame order.
type DispatchFunc func(rec frame.Record)

// Aggregator buffers events per frame and emits one Record per frame end.
// All methods must be called from the host's UI thread.
type Aggregator struct {
	sched     FrameScheduler
	dispatch  DispatchFunc
	now       func() time.Time
	mutations []string
	maxStack  int

	state  State
	buf    frame.Buffer
	number int    // last completed frame number
	gen    uint64 // bumped on every Enable and Disable
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithMutationSymbols sets the entry points causal stacks are cut at.
func WithMutationSymbols(symbols []string) Option {
	return func(a *Aggregator) { a.mutations = symbols }
}

// WithMaxStackDepth caps the number of frames kept per causal stack.
func WithMaxStackDepth(n int) Option {
	return func(a *Aggregator) { a.maxStack = n }
}

// New returns an idle Aggregator that hands completed frames to dispatch.
func New(sched FrameScheduler, dispatch DispatchFunc, opts ...Option) *Aggregator {
	a := &Aggregator{
		sched:     sched,
		dispatch:  dispatch,
		now:       time.Now,
		mutations: stack.DefaultMutationSymbols,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current lifecycle state.
func (a *Aggregator) State() State { return a.state }

// FrameNumber returns the number of the last completed frame, 0 before the
// first one. It is never reset.
func (a *Aggregator) FrameNumber() int { return a.number }

// Pending returns the number of buffered, not yet drained events.
func (a *Aggregator) Pending() int { return a.buf.Len() }

// Enable starts tracking. Enabling an enabled aggregator does nothing.
func (a *Aggregator) Enable() {
	if a.state != StateIdle {
		return
	}
	a.gen++
	a.buf.Reset()
	a.state = StateArmed
	a.register(a.gen)
}

// Disable stops tracking and discards events buffered for the frame in
// progress. A post-frame callback that is still registered becomes a no-op.
func (a *Aggregator) Disable() {
	if a.state == StateIdle {
		return
	}
	a.gen++
	a.buf.Reset()
	a.state = StateIdle
}

// RecordRebuild buffers a rebuild of subject. It reports false when
// tracking is disabled.
func (a *Aggregator) RecordRebuild(subject string, builtOnce bool) bool {
	if a.state == StateIdle {
		return false
	}
	a.buf.RecordRebuild(frame.RebuildEvent{
		TimeMS:    a.now().UnixMilli(),
		Subject:   subject,
		BuiltOnce: builtOnce,
	})
	a.state = StateCollecting
	return true
}

// RecordSchedule buffers a schedule of subject with the raw causal capture,
// trimmed at the configured mutation entry points. It reports false when
// tracking is disabled.
func (a *Aggregator) RecordSchedule(subject string, raw []stack.Frame) bool {
	if a.state == StateIdle {
		return false
	}
	a.buf.RecordSchedule(frame.ScheduleEvent{
		TimeMS:  a.now().UnixMilli(),
		Subject: subject,
		Stack:   stack.Trim(raw, a.mutations, a.maxStack),
	})
	a.state = StateCollecting
	return true
}

func (a *Aggregator) register(gen uint64) {
	a.sched.AddPostFrameCallback(func() { a.frameEnd(gen) })
}

// frameEnd drains the buffer into a Record, dispatches it and registers
// for the next frame. Re-registration runs even if dispatch panics; it is
// skipped only when Disable (or Disable+Enable) happened in between.
func (a *Aggregator) frameEnd(gen uint64) {
	if a.state == StateIdle || gen != a.gen {
		return
	}
	rebuilds, schedules := a.buf.Drain()
	a.number++
	rec := frame.Record{
		Number:    a.number,
		Rebuilds:  rebuilds,
		Schedules: schedules,
	}
	a.state = StateArmed

	defer func() {
		if a.state != StateIdle && gen == a.gen {
			a.register(gen)
		}
	}()
	if a.dispatch != nil {
		a.dispatch(rec)
	}
}
