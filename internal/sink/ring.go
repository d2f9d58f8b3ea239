package sink

import (
	"io"
	"sync"

	"rebuildtrace/internal/frame"
)

// RingSink keeps the last N records in memory (circular buffer).
type RingSink struct {
	mu       sync.RWMutex
	records  []frame.Record
	capacity int
	head     int  // next write position
	full     bool // has wrapped around
	level    Level
}

// NewRingSink creates a RingSink with the given capacity.
func NewRingSink(capacity int, level Level) *RingSink {
	if capacity <= 0 {
		capacity = 256
	}
	return &RingSink{
		records:  make([]frame.Record, capacity),
		capacity: capacity,
		level:    level,
	}
}

// Consume stores rec, overwriting the oldest record when full.
func (r *RingSink) Consume(rec frame.Record) {
	if r.level == LevelOff {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.head] = rec
	r.head = (r.head + 1) % r.capacity
	if r.head == 0 {
		r.full = true
	}
}

// Snapshot returns the stored records, oldest first.
func (r *RingSink) Snapshot() []frame.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]frame.Record, r.head)
		copy(out, r.records[:r.head])
		return out
	}
	out := make([]frame.Record, r.capacity)
	copy(out, r.records[r.head:])
	copy(out[r.capacity-r.head:], r.records[:r.head])
	return out
}

// Dump writes every stored record to w in format.
func (r *RingSink) Dump(w io.Writer, format Format) error {
	if format == FormatAuto {
		format = FormatText
	}
	for _, rec := range r.Snapshot() {
		data, err := FormatRecord(rec, r.level, format)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op; everything is in memory.
func (r *RingSink) Flush() error { return nil }

// Close is a no-op.
func (r *RingSink) Close() error { return nil }

// Level returns the configured level.
func (r *RingSink) Level() Level { return r.level }
