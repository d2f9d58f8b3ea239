package sink

import "rebuildtrace/internal/frame"

// MultiSink fans records out to several sinks, in order.
type MultiSink struct {
	sinks []Sink
	level Level
}

func NewMultiSink(level Level, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, level: level}
}

func (m *MultiSink) Consume(rec frame.Record) {
	for _, s := range m.sinks {
		s.Consume(rec)
	}
}

// Flush flushes every sink, even after a failure, and returns the first error.
func (m *MultiSink) Flush() error { return m.each(Sink.Flush) }

// Close closes every sink and returns the first error.
func (m *MultiSink) Close() error { return m.each(Sink.Close) }

func (m *MultiSink) Level() Level { return m.level }

func (m *MultiSink) each(fn func(Sink) error) error {
	var first error
	for _, s := range m.sinks {
		if err := fn(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}
