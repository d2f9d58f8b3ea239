package stack

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ASCII unit and record separators; stripped from frame text before keying.
const (
	fieldSep = "\x1e"
	frameSep = "\x1f"
)

// Key is a comparable handle for a frame sequence. Two keys are equal
// exactly when their frame sequences are equal after NFC normalisation,
// symbol and location compared separately.
type Key struct {
	joined string
	depth  int
}

// NewKey builds the key for frames.
func NewKey(frames []Frame) Key {
	if len(frames) == 0 {
		return Key{}
	}
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = keyField(f.Symbol) + fieldSep + keyField(f.Location)
	}
	return Key{joined: strings.Join(parts, frameSep), depth: len(frames)}
}

func keyField(s string) string {
	s = strings.ReplaceAll(s, fieldSep, " ")
	s = strings.ReplaceAll(s, frameSep, " ")
	return norm.NFC.String(s)
}

// Len returns the number of frames in the key.
func (k Key) Len() int { return k.depth }

// IsZero reports whether the key was built from an empty sequence.
func (k Key) IsZero() bool { return k.depth == 0 }

// Frames decodes the key back into the (normalised) frames it was built from.
func (k Key) Frames() []Frame {
	if k.depth == 0 {
		return nil
	}
	out := make([]Frame, 0, k.depth)
	for _, part := range strings.Split(k.joined, frameSep) {
		sym, loc, _ := strings.Cut(part, fieldSep)
		out = append(out, Frame{Symbol: sym, Location: loc})
	}
	return out
}

// Descriptors returns the "symbol,location" strings in order.
func (k Key) Descriptors() []string {
	frames := k.Frames()
	if frames == nil {
		return nil
	}
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.String()
	}
	return out
}

// String joins the descriptors with " <- " for log output.
func (k Key) String() string {
	return strings.Join(k.Descriptors(), " <- ")
}
