package sink

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"rebuildtrace/internal/frame"
)

// Format represents the output format for records.
type Format uint8

const (
	FormatAuto    Format = iota // pick from the output path
	FormatText                  // one human-readable line per frame
	FormatNDJSON                // newline-delimited JSON
	FormatMsgpack               // concatenated msgpack values
)

// String returns the string representation of Format.
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatText:
		return "text"
	case FormatNDJSON:
		return "ndjson"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	case "msgpack":
		return FormatMsgpack, nil
	default:
		return FormatAuto, fmt.Errorf("invalid format: %q (expected: auto|text|ndjson|msgpack)", s)
	}
}

// RecordView is the serialised shape of a record at a given level.
type RecordView struct {
	Number        int                   `json:"number" msgpack:"number"`
	RebuildCount  int                   `json:"rebuild_count" msgpack:"rebuild_count"`
	ScheduleCount int                   `json:"schedule_count" msgpack:"schedule_count"`
	Rebuilds      []frame.RebuildEvent  `json:"rebuilds,omitempty" msgpack:"rebuilds,omitempty"`
	Schedules     []frame.ScheduleEvent `json:"schedules,omitempty" msgpack:"schedules,omitempty"`
}

// View reduces rec to what level allows.
func View(rec frame.Record, level Level) RecordView {
	v := RecordView{
		Number:        rec.Number,
		RebuildCount:  len(rec.Rebuilds),
		ScheduleCount: len(rec.Schedules),
	}
	if level < LevelEvents {
		return v
	}
	v.Rebuilds = rec.Rebuilds
	if level >= LevelStacks {
		v.Schedules = rec.Schedules
		return v
	}
	v.Schedules = make([]frame.ScheduleEvent, len(rec.Schedules))
	for i, ev := range rec.Schedules {
		v.Schedules[i] = frame.ScheduleEvent{TimeMS: ev.TimeMS, Subject: ev.Subject}
	}
	return v
}

// FormatRecord encodes rec according to level and format.
func FormatRecord(rec frame.Record, level Level, format Format) ([]byte, error) {
	v := View(rec, level)
	switch format {
	case FormatNDJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode frame #%d: %w", rec.Number, err)
		}
		return append(data, '\n'), nil
	case FormatMsgpack:
		data, err := msgpack.Marshal(&v)
		if err != nil {
			return nil, fmt.Errorf("encode frame #%d: %w", rec.Number, err)
		}
		return data, nil
	default:
		return formatText(v), nil
	}
}

// formatText renders one line:
// frame #3 rebuilds=2 schedules=1 [A, B | C]
func formatText(v RecordView) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "frame #%d rebuilds=%d schedules=%d", v.Number, v.RebuildCount, v.ScheduleCount)

	if v.Rebuilds != nil || v.Schedules != nil {
		sb.WriteString(" [")
		for i, ev := range v.Rebuilds {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(ev.Subject)
		}
		sb.WriteString(" | ")
		for i, ev := range v.Schedules {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(ev.Subject)
			if len(ev.Stack) > 0 {
				sb.WriteString(" @ ")
				sb.WriteString(ev.Stack[0].String())
			}
		}
		sb.WriteString("]")
	}

	sb.WriteString("\n")
	return []byte(sb.String())
}
