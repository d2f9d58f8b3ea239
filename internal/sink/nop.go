package sink

import "rebuildtrace/internal/frame"

// nopSink discards records.
type nopSink struct{}

// Consume does nothing.
func (nopSink) Consume(frame.Record) {}

// Flush does nothing.
func (nopSink) Flush() error { return nil }

// Close does nothing.
func (nopSink) Close() error { return nil }

// Level returns LevelOff.
func (nopSink) Level() Level { return LevelOff }

// Nop is the package-level no-op sink.
var Nop Sink = nopSink{}
