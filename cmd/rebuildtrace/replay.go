package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rebuildtrace/internal/config"
	"rebuildtrace/internal/engine"
	"rebuildtrace/internal/frame"
	"rebuildtrace/internal/observ"
	"rebuildtrace/internal/report"
	"rebuildtrace/internal/scenario"
	"rebuildtrace/internal/sink"
	"rebuildtrace/internal/tracker"
	"rebuildtrace/internal/ui"
)

var replayCmd = &cobra.Command{
	Use:   "replay <scenario>...",
	Short: "Replay scenarios and print per-frame rebuild reports",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReplayCommand,
}

func init() {
	replayCmd.Flags().Int("top", 0, "print the N most frequent schedule stacks after each scenario")
	replayCmd.Flags().Bool("frames", true, "print a report for every tracked frame")
	replayCmd.Flags().Bool("rebuilds", true, "include rebuilt nodes in frame reports")
	replayCmd.Flags().Bool("schedules", true, "include scheduled build roots in frame reports")
	replayCmd.Flags().Bool("reset-history", false, "make reset_counts steps forget first-seen frames")
	replayCmd.Flags().String("config", "", "path to "+config.FileName+" (default: searched upward from the working directory)")
	replayCmd.Flags().String("out", "", "export frame records to a file (- for stdout)")
	replayCmd.Flags().String("format", "auto", "export format (auto|text|ndjson|msgpack)")
	replayCmd.Flags().String("level", "summary", "export detail (off|summary|events|stacks)")
	replayCmd.Flags().Int("ring", 0, "keep the last N frame records and dump them at the end")
	replayCmd.Flags().Int("jobs", 0, "scenarios replayed in parallel (0 = GOMAXPROCS)")
}

// replayJob is one scenario replay. Output is buffered so that concurrent
// jobs print in argument order.
type replayJob struct {
	path    string
	scn     *scenario.Scenario
	out     bytes.Buffer
	records []frame.Record
	result  scenario.Result
}

func runReplayCommand(cmd *cobra.Command, args []string) error {
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	timer := observ.NewTimer()
	if timings {
		defer func() { fmt.Fprint(cmd.ErrOrStderr(), timer.Summary()) }()
	}

	phase := timer.Begin("config")
	file, err := loadConfigFile(cmd)
	if err != nil {
		return err
	}
	base, err := trackerConfig(cmd, file)
	if err != nil {
		return err
	}

	handles, cleanup, err := setupSink(cmd, file)
	if err != nil {
		return err
	}
	defer cleanup()
	timer.End(phase, "")

	phase = timer.Begin("load")
	jobs := make([]*replayJob, 0, len(args))
	for _, path := range args {
		scn, err := scenario.Load(path)
		if err != nil {
			return err
		}
		jobs = append(jobs, &replayJob{path: path, scn: scn})
	}
	timer.End(phase, fmt.Sprintf("%d scenarios", len(jobs)))

	flags := cmd.Flags()
	top, err := flags.GetInt("top")
	if err != nil {
		return fmt.Errorf("failed to get top flag: %w", err)
	}
	limit, err := flags.GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	uiValue, err := cmd.Root().PersistentFlags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	phase = timer.Begin("replay")
	ctx := cmd.Context()
	run := func(progress func(ui.Event)) error {
		return replayAll(ctx, jobs, base, top, limit, progress)
	}
	if !quiet && shouldUseTUI(mode) {
		names := make([]string, len(jobs))
		for i, job := range jobs {
			names[i] = job.path
		}
		err = runReplayWithUI(ctx, "replaying scenarios", names, run)
	} else {
		err = run(nil)
	}
	timer.End(phase, "")
	if err != nil {
		return err
	}

	phase = timer.Begin("output")
	defer timer.End(phase, "")
	out := cmd.OutOrStdout()
	if err := writeReplayOutput(out, jobs, quiet); err != nil {
		return err
	}
	exportRecords(sink.FromContext(cmd.Context()), jobs)
	if handles.Ring != nil {
		fmt.Fprintf(out, "# Last %d frame records\n", len(handles.Ring.Snapshot()))
		if err := handles.Ring.Dump(out, sink.FormatText); err != nil {
			return fmt.Errorf("ring dump: %w", err)
		}
	}
	return nil
}

// replayAll runs every job on its own engine. progress, if set, receives
// row updates for the live view.
func replayAll(ctx context.Context, jobs []*replayJob, base tracker.Config, top, limit int, progress func(ui.Event)) error {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			emit(progress, ui.Event{Scenario: job.path, Status: ui.StatusRunning, Total: job.scn.TotalFrames()})
			err := job.run(base, top, progress)
			if err != nil {
				emit(progress, ui.Event{Scenario: job.path, Status: ui.StatusError, Detail: err.Error()})
				return fmt.Errorf("%s: %w", job.path, err)
			}
			emit(progress, ui.Event{
				Scenario: job.path,
				Status:   ui.StatusDone,
				Frame:    job.result.EngineFrames,
				Tracked:  job.result.TrackedFrames,
			})
			return nil
		})
	}
	return g.Wait()
}

func (j *replayJob) run(base tracker.Config, top int, progress func(ui.Event)) error {
	cfg := base
	cfg.Output = &j.out
	cfg.OnFrame = func(rec frame.Record) {
		j.records = append(j.records, rec)
	}
	opts := scenario.Options{Tracker: cfg, TopStacks: top}
	if progress != nil {
		opts.OnProgress = func(p scenario.Progress) {
			progress(ui.Event{
				Scenario: j.path,
				Status:   ui.StatusRunning,
				Frame:    p.Frame,
				Total:    p.Total,
				Tracked:  p.Tracked,
				Events:   p.Events,
			})
		}
	}

	logger := slog.Default().With("scenario", j.scn.Name)
	logger.Debug("replay: start", "frames", j.scn.TotalFrames())
	res, err := scenario.Run(j.scn, opts)
	if err != nil {
		return err
	}
	j.result = res
	logger.Debug("replay: done", "tracked", res.TrackedFrames, "rebuilds", res.Rebuilds, "schedules", res.Schedules)

	if top > 0 {
		r := report.New(report.Options{
			Color:        cfg.Color,
			CorePrefixes: append([]string{engine.CorePrefix}, cfg.CorePrefixes...),
		})
		if err := report.Write(&j.out, r.RenderTopStacks(res.Top, res.TrackedFrames)); err != nil {
			return err
		}
	}
	return nil
}

func emit(progress func(ui.Event), ev ui.Event) {
	if progress != nil {
		progress(ev)
	}
}

// writeReplayOutput prints the buffered reports of every job in order,
// each followed by a summary line unless quiet.
func writeReplayOutput(w io.Writer, jobs []*replayJob, quiet bool) error {
	summary := color.New(color.FgCyan)
	for _, job := range jobs {
		if _, err := w.Write(job.out.Bytes()); err != nil {
			return err
		}
		if quiet {
			continue
		}
		res := job.result
		line := fmt.Sprintf("%s: %d frames, %d tracked, %d rebuilds, %d schedules", res.Name, res.EngineFrames, res.TrackedFrames, res.Rebuilds, res.Schedules)
		if _, err := summary.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func exportRecords(s sink.Sink, jobs []*replayJob) {
	for _, job := range jobs {
		for _, rec := range job.records {
			s.Consume(rec)
		}
	}
}

// loadConfigFile loads --config, or the nearest config file when the flag
// is empty. It returns nil when no file exists.
func loadConfigFile(cmd *cobra.Command) (*config.File, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		found, ok, err := config.Find(wd)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		path = found
	}
	file, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("config: loaded", "path", file.Path)
	return file, nil
}

// trackerConfig builds the base tracker configuration: defaults (tracking
// on from the first frame), then the config file, then explicitly set flags.
func trackerConfig(cmd *cobra.Command, file *config.File) (tracker.Config, error) {
	cfg := tracker.DefaultConfig()
	cfg.Enabled = true
	if file != nil {
		file.Apply(&cfg)
	}
	cfg.Color = !color.NoColor
	cfg.Logger = slog.Default()

	flags := cmd.Flags()
	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{"frames", &cfg.PrintOnFrame},
		{"rebuilds", &cfg.PrintRebuilds},
		{"schedules", &cfg.PrintSchedules},
		{"reset-history", &cfg.ResetHistory},
	} {
		if !flags.Changed(b.name) {
			continue
		}
		v, err := flags.GetBool(b.name)
		if err != nil {
			return cfg, fmt.Errorf("failed to get %s flag: %w", b.name, err)
		}
		*b.dst = v
	}
	return cfg, nil
}
