package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"rebuildtrace/internal/frame"
	"rebuildtrace/internal/stack"
)

func sample(n int) frame.Record {
	return frame.Record{
		Number:   n,
		Rebuilds: []frame.RebuildEvent{{TimeMS: 5, Subject: "A"}, {TimeMS: 6, Subject: "B"}},
		Schedules: []frame.ScheduleEvent{{
			TimeMS:  4,
			Subject: "B",
			Stack:   []stack.Frame{{Symbol: "f1", Location: "loc1"}},
		}},
	}
}

func TestFormatTextLevels(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelSummary, "frame #3 rebuilds=2 schedules=1\n"},
		{LevelEvents, "frame #3 rebuilds=2 schedules=1 [A, B | B]\n"},
		{LevelStacks, "frame #3 rebuilds=2 schedules=1 [A, B | B @ f1,loc1]\n"},
	}
	for _, tc := range cases {
		data, err := FormatRecord(sample(3), tc.level, FormatText)
		if err != nil {
			t.Fatalf("FormatRecord: %v", err)
		}
		if string(data) != tc.want {
			t.Fatalf("level %s: got %q, want %q", tc.level, data, tc.want)
		}
	}
}

func TestStreamSinkNDJSON(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamSink(&buf, LevelEvents, FormatNDJSON)
	s.Consume(sample(1))
	s.Consume(frame.Record{Number: 2})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	var first RecordView
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Number != 1 || first.RebuildCount != 2 || len(first.Schedules) != 1 {
		t.Fatalf("first = %+v", first)
	}
	if first.Schedules[0].Stack != nil {
		t.Fatalf("stacks must be stripped below LevelStacks: %+v", first.Schedules[0])
	}
}

func TestStreamSinkMsgpack(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamSink(&buf, LevelStacks, FormatMsgpack)
	s.Consume(sample(1))
	s.Consume(sample(2))

	dec := msgpack.NewDecoder(&buf)
	for want := 1; want <= 2; want++ {
		var v RecordView
		if err := dec.Decode(&v); err != nil {
			t.Fatalf("decode record %d: %v", want, err)
		}
		if v.Number != want || v.Schedules[0].Stack[0].Symbol != "f1" {
			t.Fatalf("record %d = %+v", want, v)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestStreamSinkKeepsFirstError(t *testing.T) {
	s := NewStreamSink(failingWriter{}, LevelSummary, FormatText)
	s.Consume(sample(1))
	if err := s.Flush(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Flush = %v", err)
	}
}

func TestRingSinkWraps(t *testing.T) {
	r := NewRingSink(3, LevelSummary)
	for n := 1; n <= 5; n++ {
		r.Consume(frame.Record{Number: n})
	}
	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].Number != 3 || snap[2].Number != 5 {
		t.Fatalf("snapshot = %+v", snap)
	}

	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	want := "frame #3 rebuilds=0 schedules=0\nframe #4 rebuilds=0 schedules=0\nframe #5 rebuilds=0 schedules=0\n"
	if buf.String() != want {
		t.Fatalf("dump = %q", buf.String())
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := NewRingSink(4, LevelSummary), NewRingSink(4, LevelSummary)
	m := NewMultiSink(LevelSummary, a, b, Nop)
	m.Consume(frame.Record{Number: 1})
	if len(a.Snapshot()) != 1 || len(b.Snapshot()) != 1 {
		t.Fatalf("fan-out failed")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewPicksFormatFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.ndjson")
	h, err := New(Config{Level: LevelSummary, Mode: ModeBoth, OutputPath: path, RingSize: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if h.Ring == nil {
		t.Fatalf("ModeBoth should expose the ring")
	}
	stream := h.Sink.(*MultiSink).sinks[0].(*StreamSink)
	if stream.format != FormatNDJSON {
		t.Fatalf("format = %s, want ndjson", stream.format)
	}
	if err := h.Sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	off, err := New(Config{Level: LevelOff})
	if err != nil || off.Sink != Nop {
		t.Fatalf("LevelOff should give Nop, got %v %v", off.Sink, err)
	}
}

func TestParseHelpers(t *testing.T) {
	if l, err := ParseLevel("events"); err != nil || l != LevelEvents {
		t.Fatalf("ParseLevel = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
	if m, err := ParseMode("RING"); err != nil || m != ModeRing {
		t.Fatalf("ParseMode = %v, %v", m, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != FormatNDJSON {
		t.Fatalf("ParseFormat = %v, %v", f, err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	r := NewRingSink(1, LevelSummary)
	ctx := WithSink(context.Background(), r)
	if FromContext(ctx) != Sink(r) {
		t.Fatalf("sink not found in context")
	}
	if FromContext(context.Background()) != Nop {
		t.Fatalf("missing sink should be Nop")
	}
}
