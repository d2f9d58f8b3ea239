package sink

import (
	"fmt"
	"strings"
)

// Level controls how much of a record is written.
type Level uint8

const (
	LevelOff     Level = iota // nothing
	LevelSummary              // number and counts
	LevelEvents               // plus event subjects
	LevelStacks               // plus causal stacks
)

var levelNames = [...]string{
	LevelOff:     "off",
	LevelSummary: "summary",
	LevelEvents:  "events",
	LevelStacks:  "stacks",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel converts a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for l, n := range levelNames {
		if n == name {
			return Level(l), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid sink level: %q (expected: off|summary|events|stacks)", s)
}
