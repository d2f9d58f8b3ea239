// Package tracker wires the frame aggregator to a host engine and turns
// completed frames into reports.
//
// A Controller owns the host's hook slots from construction until Close.
// Enable installs the rebuild and schedule hooks and arms the aggregator;
// Disable removes them and drops whatever the current frame had buffered.
// Everything runs on the host's UI thread.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"rebuildtrace/internal/aggregate"
	"rebuildtrace/internal/assert"
	"rebuildtrace/internal/dedup"
	"rebuildtrace/internal/frame"
	"rebuildtrace/internal/hook"
	"rebuildtrace/internal/report"
	"rebuildtrace/internal/stack"
)

// ErrNilHost is returned by New when no host is given.
var ErrNilHost = errors.New("tracker: nil host")

// Host is the part of the rendering engine the tracker needs.
type Host interface {
	aggregate.FrameScheduler
	HookSlots() *hook.Slots
}

// Controller is the tracker's public face.
type Controller struct {
	host     Host
	cfg      Config
	log      *slog.Logger
	agg      *aggregate.Aggregator
	seen     *dedup.Deduper
	renderer *report.Renderer
	enabled  bool
	closed   bool
}

// New claims host's hook slots and returns a controller. It fails with
// hook.ErrOwned when another tracker already holds them.
func New(host Host, cfg Config) (*Controller, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	if cfg.SubjectDepth <= 0 {
		cfg.SubjectDepth = DefaultSubjectDepth
	}
	if cfg.MutationSymbols == nil {
		cfg.MutationSymbols = stack.DefaultMutationSymbols
	}
	if cfg.Source == nil {
		cfg.Source = stack.RuntimeSource{}
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{host: host, cfg: cfg, log: logger}
	if err := host.HookSlots().Claim(c); err != nil {
		return nil, fmt.Errorf("tracker: claim hook slots: %w", err)
	}

	var dedupOpts []dedup.Option
	if cfg.ResetHistory {
		dedupOpts = append(dedupOpts, dedup.WithHistoryReset())
	}
	c.seen = dedup.New(dedupOpts...)

	aggOpts := []aggregate.Option{
		aggregate.WithMutationSymbols(cfg.MutationSymbols),
		aggregate.WithMaxStackDepth(cfg.MaxStackDepth),
	}
	if cfg.Clock != nil {
		aggOpts = append(aggOpts, aggregate.WithClock(cfg.Clock))
	}
	c.agg = aggregate.New(host, c.handleFrame, aggOpts...)
	c.rebuildRenderer()

	if cfg.Enabled {
		c.Enable()
	}
	return c, nil
}

// Enable installs the hooks and starts collecting frames. Enabling an
// enabled controller does nothing.
func (c *Controller) Enable() {
	if c.enabled {
		return
	}
	slots := c.host.HookSlots()
	assert.That(!c.closed, "tracker: Enable after Close")
	assert.That(slots.Owner() == c, "tracker: hook slots are owned by another tracker")
	if err := slots.Install(c, c.onRebuild, c.onSchedule); err != nil {
		c.log.Error("tracker: cannot install hooks", "err", err)
		return
	}
	c.enabled = true
	c.agg.Enable()
	c.log.Debug("tracker: enabled", "frame", c.agg.FrameNumber())
}

// Disable removes the hooks. Events buffered for the frame in progress
// are dropped. Disabling a disabled controller does nothing.
func (c *Controller) Disable() {
	if !c.enabled {
		return
	}
	pending := c.agg.Pending()
	c.host.HookSlots().Clear(c)
	c.agg.Disable()
	c.enabled = false
	c.log.Debug("tracker: disabled", "frame", c.agg.FrameNumber(), "dropped", pending)
}

// SetEnabled calls Enable or Disable.
func (c *Controller) SetEnabled(on bool) {
	if on {
		c.Enable()
	} else {
		c.Disable()
	}
}

// Enabled reports whether tracking is on.
func (c *Controller) Enabled() bool { return c.enabled }

// Close disables tracking and releases the hook slots so another tracker
// can claim them.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.Disable()
	c.host.HookSlots().Release(c)
	c.closed = true
}

// SetPrintOnFrame toggles per-frame reports.
func (c *Controller) SetPrintOnFrame(on bool) { c.cfg.PrintOnFrame = on }

// SetPrintRebuilds toggles the rebuilt nodes section.
func (c *Controller) SetPrintRebuilds(on bool) {
	c.cfg.PrintRebuilds = on
	c.rebuildRenderer()
}

// SetPrintSchedules toggles the scheduled build roots section.
func (c *Controller) SetPrintSchedules(on bool) {
	c.cfg.PrintSchedules = on
	c.rebuildRenderer()
}

// SetOnFrame replaces the per-frame callback; nil removes it.
func (c *Controller) SetOnFrame(fn func(rec frame.Record)) { c.cfg.OnFrame = fn }

// Config returns a copy of the current configuration.
func (c *Controller) Config() Config { return c.cfg }

// FrameNumber returns the last completed frame number.
func (c *Controller) FrameNumber() int { return c.agg.FrameNumber() }

// State exposes the aggregator state.
func (c *Controller) State() aggregate.State { return c.agg.State() }

// TopScheduleStacks returns the count most frequent causal stacks since the
// last reset.
func (c *Controller) TopScheduleStacks(count int) []dedup.Entry {
	if count <= 0 {
		count = DefaultTopStacks
	}
	return c.seen.TopN(count)
}

// PrintTopScheduleStacks writes the top count causal stacks to the output
// and, when reset is set, clears the occurrence counters afterwards.
func (c *Controller) PrintTopScheduleStacks(count int, reset bool) error {
	lines := c.renderer.RenderTopStacks(c.TopScheduleStacks(count), c.agg.FrameNumber())
	err := report.Write(c.cfg.Output, lines)
	if reset {
		c.ResetStackCounts()
	}
	return err
}

// ResetStackCounts clears occurrence counters. First-seen frames are kept
// unless Config.ResetHistory is set.
func (c *Controller) ResetStackCounts() {
	c.seen.Reset()
}

func (c *Controller) rebuildRenderer() {
	c.renderer = report.New(report.Options{
		Rebuilds:     c.cfg.PrintRebuilds,
		Schedules:    c.cfg.PrintSchedules,
		Color:        c.cfg.Color,
		CorePrefixes: c.cfg.CorePrefixes,
	})
}

func (c *Controller) onRebuild(node hook.Subject, builtOnce bool) {
	c.agg.RecordRebuild(node.AncestorChain(c.cfg.SubjectDepth), builtOnce)
}

func (c *Controller) onSchedule(node hook.Subject) {
	c.agg.RecordSchedule(node.AncestorChain(c.cfg.SubjectDepth), c.cfg.Source.Capture())
}

// handleFrame runs synchronously inside the host's post-frame callback.
func (c *Controller) handleFrame(rec frame.Record) {
	c.notify(rec)
	if !c.cfg.PrintOnFrame {
		report.Observe(rec, c.seen)
		return
	}
	lines := c.renderer.RenderFrame(rec, c.seen)
	if err := report.Write(c.cfg.Output, lines); err != nil {
		c.log.Warn("tracker: report not written", "frame", rec.Number, "err", err)
	}
}

// notify calls OnFrame; a panic there is logged and does not stop tracking.
func (c *Controller) notify(rec frame.Record) {
	if c.cfg.OnFrame == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("tracker: frame callback panicked", "frame", rec.Number, "panic", r)
		}
	}()
	c.cfg.OnFrame(rec)
}
