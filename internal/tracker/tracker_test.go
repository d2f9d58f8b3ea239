package tracker

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"rebuildtrace/internal/aggregate"
	"rebuildtrace/internal/engine"
	"rebuildtrace/internal/frame"
	"rebuildtrace/internal/hook"
	"rebuildtrace/internal/stack"
)

type fixture struct {
	eng    *engine.Engine
	src    *engine.ScriptedSource
	out    *bytes.Buffer
	frames []frame.Record
	c      *Controller
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{eng: engine.New(), src: &engine.ScriptedSource{}, out: &bytes.Buffer{}}
	for _, n := range [][2]string{{"App", ""}, {"A", "App"}, {"B", "App"}} {
		if _, err := f.eng.Add(n[0], n[1], nil); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	f.eng.Pump()

	cfg := DefaultConfig()
	cfg.Output = f.out
	cfg.Source = f.src
	cfg.SubjectDepth = 1
	cfg.CorePrefixes = []string{engine.CorePrefix}
	cfg.Clock = func() time.Time { return time.UnixMilli(42) }
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.OnFrame = func(rec frame.Record) { f.frames = append(f.frames, rec) }
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(f.eng, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.c = c
	return f
}

func (f *fixture) node(t *testing.T, name string) *engine.Node {
	t.Helper()
	n, err := f.eng.Node(name)
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	return n
}

func TestScenarioRebuildThenSchedule(t *testing.T) {
	f := newFixture(t, nil)
	f.c.Enable()

	f.node(t, "A").MarkNeedsBuild()
	f.src.Push([]stack.Frame{{Symbol: "f1", Location: "loc1"}})
	f.node(t, "B").SetState(nil)
	f.eng.Pump()

	if len(f.frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(f.frames))
	}
	rec := f.frames[0]
	if rec.Number != 1 {
		t.Fatalf("Number = %d", rec.Number)
	}
	if len(rec.Rebuilds) != 2 || rec.Rebuilds[0].Subject != "A ← …" || rec.Rebuilds[1].Subject != "B ← …" {
		t.Fatalf("rebuilds = %+v", rec.Rebuilds)
	}
	if len(rec.Schedules) != 2 {
		t.Fatalf("schedules = %+v", rec.Schedules)
	}
	if s := rec.Schedules[1]; s.Subject != "B ← …" || len(s.Stack) != 1 || s.Stack[0].Symbol != "f1" {
		t.Fatalf("schedule B = %+v", s)
	}
	if s := rec.Schedules[0]; len(s.Stack) != 1 || s.Stack[0] != stack.Unknown {
		t.Fatalf("schedule A without scripted stack = %+v", s)
	}
	out := f.out.String()
	for _, want := range []string{"# Rebuild frame #1", "- B ← …", "> f1 (loc1)", "# END of Rebuild frame #1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report misses %q:\n%s", want, out)
		}
	}
}

func TestSilentFramesAreNumbered(t *testing.T) {
	f := newFixture(t, nil)
	f.c.Enable()
	f.eng.Pump()
	f.eng.Pump()
	if len(f.frames) != 2 || f.frames[0].Number != 1 || f.frames[1].Number != 2 {
		t.Fatalf("frames = %+v", f.frames)
	}
	if !f.frames[0].Empty() || !f.frames[1].Empty() {
		t.Fatalf("expected empty frames")
	}
}

func TestRepeatedStackReferencesFirstFrame(t *testing.T) {
	f := newFixture(t, nil)
	f.c.Enable()
	causal := []stack.Frame{{Symbol: "app.onTap", Location: "app/tap.go:3"}}

	for i := 1; i <= 5; i++ {
		if i == 1 || i == 5 {
			f.src.Push(causal)
			f.node(t, "B").SetState(nil)
		}
		f.eng.Pump()
	}
	out := f.out.String()
	frame5 := out[strings.Index(out, "# Rebuild frame #5"):]
	if !strings.Contains(frame5, "(stack first seen in frame #1, 2 times)") {
		t.Fatalf("frame 5 should reference frame 1:\n%s", frame5)
	}
	if strings.Count(out, "> app.onTap (app/tap.go:3)") != 1 {
		t.Fatalf("stack printed more than once:\n%s", out)
	}
}

func TestDisableDropsEventsAndStopsAcceptance(t *testing.T) {
	f := newFixture(t, nil)
	f.c.Enable()
	f.node(t, "A").MarkNeedsBuild()
	f.c.Disable()
	f.eng.Pump()
	f.node(t, "B").MarkNeedsBuild()
	f.eng.Pump()
	if len(f.frames) != 0 {
		t.Fatalf("disabled tracker dispatched %+v", f.frames)
	}
	if f.c.State() != aggregate.StateIdle {
		t.Fatalf("state = %s", f.c.State())
	}

	f.c.Enable()
	f.eng.Pump()
	if len(f.frames) != 1 || !f.frames[0].Empty() || f.frames[0].Number != 1 {
		t.Fatalf("frames after re-enable = %+v", f.frames)
	}
}

func TestEnableDisableIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.c.SetEnabled(true)
	f.c.SetEnabled(true)
	f.eng.Pump()
	if len(f.frames) != 1 {
		t.Fatalf("double enable dispatched %d frames", len(f.frames))
	}
	f.c.SetEnabled(false)
	f.c.SetEnabled(false)
	if f.c.Enabled() || f.eng.HookSlots().Installed() {
		t.Fatalf("disable must clear the hooks")
	}
}

func TestSecondTrackerIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	_, err := New(f.eng, DefaultConfig())
	if !errors.Is(err, hook.ErrOwned) {
		t.Fatalf("second New = %v, want ErrOwned", err)
	}
	f.c.Close()
	other, err := New(f.eng, DefaultConfig())
	if err != nil {
		t.Fatalf("New after Close: %v", err)
	}
	other.Close()
}

func TestNewRejectsNilHost(t *testing.T) {
	if _, err := New(nil, DefaultConfig()); !errors.Is(err, ErrNilHost) {
		t.Fatalf("New(nil) = %v", err)
	}
}

func TestEnabledConfigStartsTracking(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Enabled = true })
	if !f.c.Enabled() || f.c.State() != aggregate.StateArmed {
		t.Fatalf("enabled=%v state=%s", f.c.Enabled(), f.c.State())
	}
}

func TestPanickingCallbackDoesNotStopTracking(t *testing.T) {
	calls := 0
	f := newFixture(t, func(c *Config) {
		c.OnFrame = func(frame.Record) {
			calls++
			panic("boom")
		}
	})
	f.c.Enable()
	f.eng.Pump()
	f.eng.Pump()
	if calls != 2 {
		t.Fatalf("callback calls = %d, want 2", calls)
	}
	if !strings.Contains(f.out.String(), "# Rebuild frame #2") {
		t.Fatalf("frame 2 not reported:\n%s", f.out.String())
	}
}

func TestPrintOnFrameOffStillCounts(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.PrintOnFrame = false })
	f.c.Enable()
	f.src.Push([]stack.Frame{{Symbol: "f1", Location: "loc1"}})
	f.node(t, "A").SetState(nil)
	f.eng.Pump()
	if f.out.Len() != 0 {
		t.Fatalf("unexpected output:\n%s", f.out.String())
	}
	top := f.c.TopScheduleStacks(0)
	if len(top) != 1 || top[0].Count != 1 {
		t.Fatalf("top = %+v", top)
	}
}

func TestPrintTopScheduleStacksAndReset(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.PrintOnFrame = false })
	f.c.Enable()
	hot := []stack.Frame{{Symbol: "hot", Location: "app/hot.go:1"}}
	cold := []stack.Frame{{Symbol: "cold", Location: "app/cold.go:1"}}
	for i := 0; i < 3; i++ {
		f.src.Push(hot)
		f.node(t, "A").SetState(nil)
		if i == 0 {
			f.src.Push(cold)
			f.node(t, "B").SetState(nil)
		}
		f.eng.Pump()
	}

	if err := f.c.PrintTopScheduleStacks(1, true); err != nil {
		t.Fatalf("PrintTopScheduleStacks: %v", err)
	}
	want := "# Top schedule stacks frame #3\n" +
		"## 1. 3 times, first seen in frame #1\n" +
		"```\n" +
		"> hot (app/hot.go:1)\n" +
		"```\n" +
		"# END of Top schedule stacks frame #3\n"
	if f.out.String() != want {
		t.Fatalf("unexpected listing:\nwant:\n%s\ngot:\n%s", want, f.out.String())
	}
	if top := f.c.TopScheduleStacks(10); len(top) != 0 {
		t.Fatalf("counts not reset: %+v", top)
	}

	f.src.Push(hot)
	f.node(t, "A").SetState(nil)
	f.eng.Pump()
	top := f.c.TopScheduleStacks(10)
	if len(top) != 1 || top[0].Count != 1 || top[0].FirstFrame != 1 {
		t.Fatalf("after reset = %+v", top)
	}
}

func TestResetHistoryForgetsFirstFrames(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ResetHistory = true })
	f.c.Enable()
	causal := []stack.Frame{{Symbol: "f1", Location: "loc1"}}
	f.src.Push(causal)
	f.node(t, "A").SetState(nil)
	f.eng.Pump()
	f.c.ResetStackCounts()
	f.src.Push(causal)
	f.node(t, "A").SetState(nil)
	f.eng.Pump()
	if strings.Count(f.out.String(), "> f1 (loc1)") != 2 {
		t.Fatalf("stack should be printed in full again after history reset:\n%s", f.out.String())
	}
}

func TestSectionToggles(t *testing.T) {
	f := newFixture(t, nil)
	f.c.SetPrintRebuilds(false)
	f.c.Enable()
	f.node(t, "A").MarkNeedsBuild()
	f.eng.Pump()
	out := f.out.String()
	if strings.Contains(out, "## Rebuilt nodes") || !strings.Contains(out, "## Scheduled build roots (1)") {
		t.Fatalf("unexpected sections:\n%s", out)
	}
	f.out.Reset()
	f.c.SetPrintSchedules(false)
	f.c.SetPrintOnFrame(true)
	f.eng.Pump()
	if f.out.String() != "# Rebuild frame #2\n# END of Rebuild frame #2\n" {
		t.Fatalf("unexpected output:\n%s", f.out.String())
	}
}

func TestRuntimeSourceCutsAtMostRecentMutation(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Source = stack.RuntimeSource{}
		c.PrintOnFrame = false
	})
	f.c.Enable()
	f.node(t, "A").SetState(nil)
	f.eng.Pump()
	s := f.frames[0].Schedules[0].Stack
	if len(s) < 2 || !strings.HasSuffix(s[0].Symbol, ".MarkNeedsBuild") || !strings.HasSuffix(s[1].Symbol, ".SetState") {
		t.Fatalf("stack should start at MarkNeedsBuild called from SetState, got %+v", s)
	}
	if got := stack.Classify(s[0], []string{engine.CorePrefix}); got != stack.OriginCore {
		t.Fatalf("SetState frame classified as %s, location %q", got, s[0].Location)
	}
}
