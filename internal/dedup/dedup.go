// Package dedup counts causal stacks by content over the lifetime of a
// tracker and remembers the frame each stack was first printed in.
package dedup

import (
	"sort"

	"rebuildtrace/internal/stack"
)

// Observation is the result of observing a stack.
type Observation struct {
	First      bool // this call created the entry
	FirstFrame int  // frame number of the first observation
	Count      int  // occurrences since the last reset, including this one
}

// Entry is one row of a TopN listing.
type Entry struct {
	Key        stack.Key
	Count      int
	FirstFrame int
}

type entry struct {
	firstFrame int
	count      int
}

// Deduper maps stack keys to their first frame and occurrence count.
// Not safe for concurrent use.
type Deduper struct {
	entries     map[stack.Key]*entry
	order       []stack.Key // insertion order, tie-breaker for TopN
	dropHistory bool
}

// Option configures a Deduper.
type Option func(*Deduper)

// WithHistoryReset makes Reset forget first-seen frames as well, so a stack
// observed after a reset is reported as new again.
func WithHistoryReset() Option {
	return func(d *Deduper) { d.dropHistory = true }
}

// New returns an empty Deduper.
func New(opts ...Option) *Deduper {
	d := &Deduper{entries: make(map[stack.Key]*entry)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe counts one occurrence of key seen while frameNumber was current.
// The first frame number is fixed on the first observation and never
// updated afterwards.
func (d *Deduper) Observe(key stack.Key, frameNumber int) Observation {
	if e, ok := d.entries[key]; ok {
		e.count++
		return Observation{First: false, FirstFrame: e.firstFrame, Count: e.count}
	}
	d.entries[key] = &entry{firstFrame: frameNumber, count: 1}
	d.order = append(d.order, key)
	return Observation{First: true, FirstFrame: frameNumber, Count: 1}
}

// Lookup reports the state of key without counting it.
func (d *Deduper) Lookup(key stack.Key) (Observation, bool) {
	e, ok := d.entries[key]
	if !ok {
		return Observation{}, false
	}
	return Observation{FirstFrame: e.firstFrame, Count: e.count}, true
}

// Len returns the number of distinct stacks remembered.
func (d *Deduper) Len() int { return len(d.entries) }

// TopN returns at most n stacks with a non-zero count, most frequent first.
// Equal counts keep first-observed order.
func (d *Deduper) TopN(n int) []Entry {
	if n <= 0 {
		return nil
	}
	out := make([]Entry, 0, len(d.order))
	for _, k := range d.order {
		e := d.entries[k]
		if e.count == 0 {
			continue
		}
		out = append(out, Entry{Key: k, Count: e.count, FirstFrame: e.firstFrame})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Reset zeroes every occurrence count. First-seen history is kept unless
// the Deduper was built with WithHistoryReset.
func (d *Deduper) Reset() {
	if d.dropHistory {
		d.entries = make(map[stack.Key]*entry)
		d.order = nil
		return
	}
	for _, e := range d.entries {
		e.count = 0
	}
}
