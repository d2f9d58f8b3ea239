package stack

import "strings"

// DefaultMutationSymbols are the entry points a causal trace is cut at.
var DefaultMutationSymbols = []string{"SetState", "MarkNeedsBuild", "ScheduleRebuild"}

// IsMutation reports whether symbol names one of the mutation entry points,
// either exactly or as the final element of a qualified name.
func IsMutation(symbol string, mutations []string) bool {
	for _, m := range mutations {
		if m == "" {
			continue
		}
		if symbol == m || strings.HasSuffix(symbol, "."+m) {
			return true
		}
	}
	return false
}

// Trim returns the causal part of a raw capture: frames from the most
// recent mutation entry point outward. When no entry point is present the
// whole capture is kept. maxDepth > 0 caps the depth. The result is never empty.
func Trim(frames []Frame, mutations []string, maxDepth int) []Frame {
	start := 0
	for i, f := range frames {
		if IsMutation(f.Symbol, mutations) {
			start = i
			break
		}
	}
	trimmed := frames[start:]
	if maxDepth > 0 && len(trimmed) > maxDepth {
		trimmed = trimmed[:maxDepth]
	}
	if len(trimmed) == 0 {
		return []Frame{Unknown}
	}
	out := make([]Frame, len(trimmed))
	copy(out, trimmed)
	return out
}
