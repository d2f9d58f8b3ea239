package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"

	"rebuildtrace/internal/config"
	"rebuildtrace/internal/frame"
	"rebuildtrace/internal/scenario"
	"rebuildtrace/internal/sink"
	"rebuildtrace/internal/tracker"
	"rebuildtrace/internal/ui"
)

const counterScenario = "../../internal/scenario/testdata/counter.toml"

func TestReadModes(t *testing.T) {
	cases := []struct {
		value string
		tty   bool
		want  bool
		err   bool
	}{
		{"auto", true, true, false},
		{"", false, false, false},
		{"ON", false, true, false},
		{"off", true, false, false},
		{"sometimes", true, false, true},
	}
	for _, tc := range cases {
		got, err := readColorMode(tc.value, tc.tty)
		if (err != nil) != tc.err {
			t.Fatalf("readColorMode(%q) error = %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("readColorMode(%q, %v) = %v, want %v", tc.value, tc.tty, got, tc.want)
		}
	}

	if m, err := readUIMode(" Off "); err != nil || m != uiModeOff {
		t.Fatalf("readUIMode = %q, %v", m, err)
	}
	if _, err := readUIMode("maybe"); err == nil {
		t.Fatal("expected error for invalid --ui value")
	}
	if lvl, err := parseLogLevel("debug"); err != nil || lvl != slog.LevelDebug {
		t.Fatalf("parseLogLevel = %v, %v", lvl, err)
	}
	if _, err := parseLogLevel("loud"); err == nil {
		t.Fatal("expected error for invalid --log-level value")
	}
}

func loadJobs(t *testing.T, paths ...string) []*replayJob {
	t.Helper()
	jobs := make([]*replayJob, 0, len(paths))
	for _, path := range paths {
		scn, err := scenario.Load(path)
		if err != nil {
			t.Fatalf("load %s: %v", path, err)
		}
		jobs = append(jobs, &replayJob{path: path, scn: scn})
	}
	return jobs
}

func TestReplayAllKeepsArgumentOrder(t *testing.T) {
	origNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = origNoColor })

	jobs := loadJobs(t, counterScenario, counterScenario)
	var (
		mu     sync.Mutex
		events []ui.Event
	)
	progress := func(ev ui.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}
	if err := replayAll(context.Background(), jobs, enabledConfig(), 3, 2, progress); err != nil {
		t.Fatalf("replayAll: %v", err)
	}

	var out bytes.Buffer
	if err := writeReplayOutput(&out, jobs, false); err != nil {
		t.Fatalf("writeReplayOutput: %v", err)
	}
	text := out.String()
	if got := strings.Count(text, "# Rebuild frame #1\n"); got != 2 {
		t.Fatalf("frame #1 reports = %d, want 2\n%s", got, text)
	}
	if got := strings.Count(text, "# Top schedule stacks frame #5\n"); got != 2 {
		t.Fatalf("top listings = %d, want 2\n%s", got, text)
	}
	summary := "counter: 5 frames, 5 tracked, 4 rebuilds, 4 schedules\n"
	if !strings.HasSuffix(text, summary) || strings.Count(text, summary) != 2 {
		t.Fatalf("missing summaries:\n%s", text)
	}
	for _, job := range jobs {
		if len(job.records) != 5 {
			t.Fatalf("%s: records = %d, want 5", job.path, len(job.records))
		}
	}

	done := 0
	for _, ev := range events {
		if ev.Status == ui.StatusDone {
			done++
		}
	}
	if done != 2 {
		t.Fatalf("done events = %d, want 2", done)
	}
}

func TestWriteReplayOutputQuiet(t *testing.T) {
	job := &replayJob{result: scenario.Result{Name: "x"}}
	job.out.WriteString("report\n")
	var out bytes.Buffer
	if err := writeReplayOutput(&out, []*replayJob{job}, true); err != nil {
		t.Fatal(err)
	}
	if out.String() != "report\n" {
		t.Fatalf("quiet output = %q", out.String())
	}
}

type collectSink struct{ recs []frame.Record }

func (c *collectSink) Consume(rec frame.Record) { c.recs = append(c.recs, rec) }
func (c *collectSink) Flush() error             { return nil }
func (c *collectSink) Close() error             { return nil }
func (c *collectSink) Level() sink.Level        { return sink.LevelSummary }

func TestExportRecordsInJobOrder(t *testing.T) {
	a := &replayJob{records: []frame.Record{{Number: 1}, {Number: 2}}}
	b := &replayJob{records: []frame.Record{{Number: 1}}}
	var s collectSink
	exportRecords(&s, []*replayJob{a, b})
	got := make([]int, 0, len(s.recs))
	for _, r := range s.recs {
		got = append(got, r.Number)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 1 {
		t.Fatalf("exported = %v", got)
	}
}

func TestConvertScenario(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "counter.msgpack")
	if err := convertScenario(counterScenario, out); err != nil {
		t.Fatalf("convertScenario: %v", err)
	}
	scn, err := scenario.Load(out)
	if err != nil {
		t.Fatalf("load capture: %v", err)
	}
	if scn.Name != "counter" || scn.TotalFrames() != 5 {
		t.Fatalf("capture = %q with %d frames", scn.Name, scn.TotalFrames())
	}

	if err := convertScenario(out, out); err == nil {
		t.Fatal("expected error converting a file onto itself")
	}
	if got := capturePath("dir/a.toml"); got != "dir/a.msgpack" {
		t.Fatalf("capturePath = %q", got)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func enabledConfig() tracker.Config {
	cfg := tracker.DefaultConfig()
	cfg.Enabled = true
	return cfg
}

func TestTrackerConfigHonoursEnabledKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte("[tracker]\nenabled = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	file, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg, err := trackerConfig(replayCmd, nil)
	if err != nil || !cfg.Enabled {
		t.Fatalf("default config: enabled = %v, err = %v", cfg.Enabled, err)
	}
	cfg, err = trackerConfig(replayCmd, file)
	if err != nil || cfg.Enabled {
		t.Fatalf("enabled = false in file: enabled = %v, err = %v", cfg.Enabled, err)
	}

	jobs := loadJobs(t, counterScenario)
	if err := replayAll(context.Background(), jobs, cfg, 0, 1, nil); err != nil {
		t.Fatalf("replayAll: %v", err)
	}
	if res := jobs[0].result; res.TrackedFrames != 0 || len(jobs[0].records) != 0 {
		t.Fatalf("tracking should stay off: %+v", res)
	}
}
