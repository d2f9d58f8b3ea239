// Package hook defines the instrumentation slots a host engine exposes to
// a rebuild tracker: one slot per event kind, owned by at most one tracker.
package hook

import "errors"

// ErrOwned is returned when another owner already holds the slots.
var ErrOwned = errors.New("hook slots already owned")

// ErrNotOwner is returned when a non-owner tries to install hooks.
var ErrNotOwner = errors.New("caller does not own the hook slots")

// Subject is a node that can describe its ancestor chain.
type Subject interface {
	// AncestorChain returns a human-readable description of the node and up
	// to depth-1 of its ancestors.
	AncestorChain(depth int) string
}

// RebuildFunc is called once per node rebuild.
type RebuildFunc func(node Subject, builtOnce bool)

// ScheduleFunc is called once per explicit schedule-for-rebuild.
type ScheduleFunc func(node Subject)

// Slots is an engine's single pair of hook slots together with the
// ownership record that keeps a second tracker out. The zero value is
// ready to use.
type Slots struct {
	owner    any
	rebuild  RebuildFunc
	schedule ScheduleFunc
}

// Claim makes owner the exclusive user of the slots. Claiming again as the
// current owner succeeds.
func (s *Slots) Claim(owner any) error {
	if s.owner != nil && s.owner != owner {
		return ErrOwned
	}
	s.owner = owner
	return nil
}

// Release gives up ownership and clears both slots. Calls from a
// non-owner are ignored.
func (s *Slots) Release(owner any) {
	if s.owner != owner {
		return
	}
	s.owner = nil
	s.rebuild, s.schedule = nil, nil
}

// Owner returns the current owner, nil when unclaimed.
func (s *Slots) Owner() any { return s.owner }

// Install fills both slots. Only the owner may install.
func (s *Slots) Install(owner any, rebuild RebuildFunc, schedule ScheduleFunc) error {
	if s.owner == nil || s.owner != owner {
		return ErrNotOwner
	}
	s.rebuild, s.schedule = rebuild, schedule
	return nil
}

// Clear empties both slots if owner holds them.
func (s *Slots) Clear(owner any) {
	if s.owner != owner {
		return
	}
	s.rebuild, s.schedule = nil, nil
}

// Installed reports whether either slot is filled.
func (s *Slots) Installed() bool {
	return s.rebuild != nil || s.schedule != nil
}

// FireRebuild invokes the rebuild slot if set.
func (s *Slots) FireRebuild(node Subject, builtOnce bool) {
	if s.rebuild != nil {
		s.rebuild(node, builtOnce)
	}
}

// FireSchedule invokes the schedule slot if set.
func (s *Slots) FireSchedule(node Subject) {
	if s.schedule != nil {
		s.schedule(node)
	}
}
