package sink

import (
	"fmt"
	"io"
	"os"
	"strings"

	"rebuildtrace/internal/frame"
)

// Sink receives completed frame records.
type Sink interface {
	// Consume takes one record. Records arrive in frame order.
	Consume(rec frame.Record)

	// Flush ensures all buffered output is written.
	Flush() error

	// Close flushes and releases resources.
	Close() error

	// Level returns the configured level.
	Level() Level
}

// StorageMode determines how records are kept.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // immediate write
	ModeRing                          // last N in memory
	ModeBoth                          // stream + ring
)

// String returns the string representation of StorageMode.
func (m StorageMode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeRing:
		return "ring"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to StorageMode.
func ParseMode(s string) (StorageMode, error) {
	switch strings.ToLower(s) {
	case "stream":
		return ModeStream, nil
	case "ring":
		return ModeRing, nil
	case "both":
		return ModeBoth, nil
	default:
		return ModeStream, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
	}
}

// Config holds sink configuration.
type Config struct {
	Level      Level
	Mode       StorageMode
	Format     Format    // FormatAuto picks by OutputPath extension
	Output     io.Writer // for stream mode (if nil, use OutputPath)
	OutputPath string    // "-" or "" for stdout
	RingSize   int       // default 256
}

// Handles is what New built; Ring is nil unless the mode keeps records.
type Handles struct {
	Sink Sink
	Ring *RingSink
}

// New creates the sink described by cfg.
func New(cfg Config) (Handles, error) {
	if cfg.Level == LevelOff {
		return Handles{Sink: Nop}, nil
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 256
	}

	format := cfg.Format
	if format == FormatAuto {
		format = FormatText
		switch {
		case strings.HasSuffix(cfg.OutputPath, ".ndjson"):
			format = FormatNDJSON
		case strings.HasSuffix(cfg.OutputPath, ".msgpack"):
			format = FormatMsgpack
		}
	}

	switch cfg.Mode {
	case ModeStream:
		w, err := openOutput(cfg)
		if err != nil {
			return Handles{}, err
		}
		return Handles{Sink: NewStreamSink(w, cfg.Level, format)}, nil

	case ModeRing:
		ring := NewRingSink(cfg.RingSize, cfg.Level)
		return Handles{Sink: ring, Ring: ring}, nil

	case ModeBoth:
		w, err := openOutput(cfg)
		if err != nil {
			return Handles{}, err
		}
		ring := NewRingSink(cfg.RingSize, cfg.Level)
		return Handles{Sink: NewMultiSink(cfg.Level, NewStreamSink(w, cfg.Level, format), ring), Ring: ring}, nil

	default:
		return Handles{}, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}
}

// openOutput opens the output writer from config.
func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame output: %w", err)
	}
	return f, nil
}

// nopCloser keeps StreamSink.Close from closing stdout.
type nopCloser struct{ io.Writer }
