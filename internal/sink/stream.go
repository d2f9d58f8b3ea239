package sink

import (
	"io"
	"sync"

	"rebuildtrace/internal/frame"
)

// StreamSink writes records immediately to an io.Writer.
type StreamSink struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
	err    error // first write or encode error
}

// NewStreamSink creates a StreamSink.
func NewStreamSink(w io.Writer, level Level, format Format) *StreamSink {
	if format == FormatAuto {
		format = FormatText
	}
	return &StreamSink{w: w, level: level, format: format}
}

// Consume encodes and writes rec. Errors are kept for Flush/Close rather
// than returned, so a broken output never disturbs the host's frame.
func (s *StreamSink) Consume(rec frame.Record) {
	if s.level == LevelOff {
		return
	}
	data, err := FormatRecord(rec, s.level, s.format)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.keep(err)
		return
	}
	if _, err := s.w.Write(data); err != nil {
		s.keep(err)
	}
}

func (s *StreamSink) keep(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Flush reports the first write error and flushes the writer if it can.
func (s *StreamSink) Flush() error {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if flusher, ok := s.w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close flushes and closes the writer if it implements io.Closer.
func (s *StreamSink) Close() error {
	err := s.Flush()
	if closer, ok := s.w.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Level returns the configured level.
func (s *StreamSink) Level() Level { return s.level }
