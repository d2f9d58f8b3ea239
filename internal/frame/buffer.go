package frame

// Buffer collects the events of the frame in progress. It is not safe for
// concurrent use; the owning engine drives it from a single thread.
type Buffer struct {
	rebuilds  []RebuildEvent
	schedules []ScheduleEvent
}

// RecordRebuild appends a rebuild event.
func (b *Buffer) RecordRebuild(ev RebuildEvent) {
	b.rebuilds = append(b.rebuilds, ev)
}

// RecordSchedule appends a schedule event.
func (b *Buffer) RecordSchedule(ev ScheduleEvent) {
	b.schedules = append(b.schedules, ev)
}

// Len returns the number of buffered events of both kinds.
func (b *Buffer) Len() int {
	return len(b.rebuilds) + len(b.schedules)
}

// Drain hands over everything collected since the previous drain and
// leaves the buffer empty. The returned slices are never shared with
// later appends.
func (b *Buffer) Drain() (rebuilds []RebuildEvent, schedules []ScheduleEvent) {
	rebuilds, schedules = b.rebuilds, b.schedules
	b.rebuilds, b.schedules = nil, nil
	if rebuilds == nil {
		rebuilds = []RebuildEvent{}
	}
	if schedules == nil {
		schedules = []ScheduleEvent{}
	}
	return rebuilds, schedules
}

// Reset drops buffered events without returning them.
func (b *Buffer) Reset() {
	b.rebuilds, b.schedules = nil, nil
}
