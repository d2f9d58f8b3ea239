package stack

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Source captures the current causal stack, most recent frame first.
type Source interface {
	Capture() []Frame
}

// SourceFunc adapts a function to Source.
type SourceFunc func() []Frame

// Capture calls f.
func (f SourceFunc) Capture() []Frame { return f() }

// StaticSource always returns the same frames.
type StaticSource []Frame

// Capture returns a copy of s.
func (s StaticSource) Capture() []Frame {
	out := make([]Frame, len(s))
	copy(out, s)
	return out
}

// RuntimeSource walks the calling goroutine's stack.
type RuntimeSource struct {
	Skip  int // extra frames to skip above the caller of Capture
	Depth int // 0 means 64
}

// Capture returns the Go call stack of the caller. Locations are written
// as "<package path>/<file>:<line>" so that prefix classification can work
// on import paths.
func (s RuntimeSource) Capture() []Frame {
	depth := s.Depth
	if depth <= 0 {
		depth = 64
	}
	pcs := make([]uintptr, depth)
	// runtime.Callers, Capture
	n := runtime.Callers(2+s.Skip, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		f, more := frames.Next()
		if f.Function != "" {
			out = append(out, Frame{
				Symbol:   f.Function,
				Location: packagePath(f.Function) + "/" + filepath.Base(f.File) + ":" + strconv.Itoa(f.Line),
			})
		}
		if !more {
			break
		}
	}
	return out
}

// packagePath extracts "example.com/pkg" from "example.com/pkg.(*T).M".
func packagePath(function string) string {
	slash := strings.LastIndexByte(function, '/')
	dot := strings.IndexByte(function[slash+1:], '.')
	if dot < 0 {
		return function
	}
	return function[:slash+1+dot]
}
