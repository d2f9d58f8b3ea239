package stack

import "strings"

// Unknown stands in for a capture that produced no frames.
var Unknown = Frame{Symbol: "<unknown>"}

// Frame is a single terse stack frame descriptor.
type Frame struct {
	Symbol   string `json:"symbol" msgpack:"symbol" toml:"symbol"`
	Location string `json:"location,omitempty" msgpack:"location,omitempty" toml:"location"`
}

// String returns the "symbol,location" descriptor form.
func (f Frame) String() string {
	if f.Location == "" {
		return f.Symbol
	}
	return f.Symbol + "," + f.Location
}

// ParseFrame splits a "symbol,location" descriptor at its last comma.
// A descriptor without a comma is kept whole as the symbol.
func ParseFrame(desc string) Frame {
	desc = strings.TrimSpace(desc)
	idx := strings.LastIndexByte(desc, ',')
	if idx < 0 {
		return Frame{Symbol: desc}
	}
	return Frame{
		Symbol:   strings.TrimSpace(desc[:idx]),
		Location: strings.TrimSpace(desc[idx+1:]),
	}
}

// ParseFrames parses every descriptor, skipping blank ones.
func ParseFrames(descs []string) []Frame {
	out := make([]Frame, 0, len(descs))
	for _, d := range descs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		out = append(out, ParseFrame(d))
	}
	return out
}

// Origin tells framework frames apart from user frames.
type Origin uint8

const (
	OriginUser Origin = iota
	OriginCore
)

// String returns the string representation of Origin.
func (o Origin) String() string {
	switch o {
	case OriginCore:
		return "core"
	default:
		return "user"
	}
}

// Classify returns OriginCore when the frame location starts with one of
// the framework prefixes. Frames without a location are user frames.
func Classify(f Frame, corePrefixes []string) Origin {
	if f.Location == "" {
		return OriginUser
	}
	for _, p := range corePrefixes {
		if p != "" && strings.HasPrefix(f.Location, p) {
			return OriginCore
		}
	}
	return OriginUser
}
