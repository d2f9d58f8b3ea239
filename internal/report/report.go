// Package report renders frame records and stack statistics as
// line-oriented, markdown-like text.
//
// Layout of a frame report:
//
//	# Rebuild frame #3
//	## Rebuilt nodes (1)
//	- Counter ← App
//	## Scheduled build roots (1)
//	- Counter ← App
//	```
//	> app.(*Counter).SetState (app/counter.go:12)
//	  engine.(*Engine).Pump (engine/engine.go:40)
//	```
//	# END of Rebuild frame #3
//
// Inside stack fences the first column marks user frames with '>' and
// framework frames with a blank.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"rebuildtrace/internal/dedup"
	"rebuildtrace/internal/frame"
	"rebuildtrace/internal/stack"
)

const (
	frameKind = "Rebuild"
	topKind   = "Top schedule stacks"

	markerUser = "> "
	markerCore = "  "
	fence      = "```"
)

// Observer records a stack occurrence and reports whether it is new.
// *dedup.Deduper implements it.
type Observer interface {
	Observe(key stack.Key, frameNumber int) dedup.Observation
}

// Options controls what a Renderer prints.
type Options struct {
	Rebuilds     bool     // include the rebuilt nodes section
	Schedules    bool     // include the scheduled build roots section
	Color        bool     // ANSI colours for markers and headers
	CorePrefixes []string // locations treated as framework frames
}

// Renderer turns records into report lines.
type Renderer struct {
	opts    Options
	header  *color.Color
	user    *color.Color
	core    *color.Color
	seenRef *color.Color
}

// New returns a Renderer for opts.
func New(opts Options) *Renderer {
	r := &Renderer{
		opts:    opts,
		header:  color.New(color.Bold),
		user:    color.New(color.FgYellow),
		core:    color.New(color.FgHiBlack),
		seenRef: color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{r.header, r.user, r.core, r.seenRef} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Options returns the renderer configuration.
func (r *Renderer) Options() Options { return r.opts }

// RenderFrame renders one frame. Every schedule event is passed to seen,
// also when the schedules section is switched off, so counts stay complete.
// A stack seen for the first time is printed in full; a repeated stack is
// printed as a reference to the frame that showed it first.
func (r *Renderer) RenderFrame(rec frame.Record, seen Observer) []string {
	lines := []string{r.header.Sprintf("# %s frame #%d", frameKind, rec.Number)}

	if r.opts.Rebuilds {
		lines = append(lines, r.header.Sprintf("## Rebuilt nodes (%d)", len(rec.Rebuilds)))
		for _, ev := range rec.Rebuilds {
			lines = append(lines, "- "+ev.Subject)
		}
	}

	if r.opts.Schedules {
		lines = append(lines, r.header.Sprintf("## Scheduled build roots (%d)", len(rec.Schedules)))
	}
	for _, ev := range rec.Schedules {
		obs := seen.Observe(ev.Key(), rec.Number)
		if !r.opts.Schedules {
			continue
		}
		if obs.First {
			lines = append(lines, "- "+ev.Subject)
			lines = r.appendStack(lines, ev.Stack)
			continue
		}
		lines = append(lines, "- "+ev.Subject+" "+r.seenRef.Sprintf("(stack first seen in frame #%d, %s)", obs.FirstFrame, times(obs.Count)))
	}

	lines = append(lines, r.header.Sprintf("# END of %s frame #%d", frameKind, rec.Number))
	return lines
}

// RenderTopStacks renders a ranked stack listing. frameNumber is the last
// completed frame, used in the header.
func (r *Renderer) RenderTopStacks(entries []dedup.Entry, frameNumber int) []string {
	lines := []string{r.header.Sprintf("# %s frame #%d", topKind, frameNumber)}
	if len(entries) == 0 {
		lines = append(lines, "- no schedule stacks recorded")
	}
	for i, e := range entries {
		lines = append(lines, r.header.Sprintf("## %d. %s, first seen in frame #%d", i+1, times(e.Count), e.FirstFrame))
		lines = r.appendStack(lines, e.Key.Frames())
	}
	lines = append(lines, r.header.Sprintf("# END of %s frame #%d", topKind, frameNumber))
	return lines
}

func (r *Renderer) appendStack(lines []string, frames []stack.Frame) []string {
	lines = append(lines, fence)
	for _, f := range frames {
		lines = append(lines, r.stackLine(f))
	}
	return append(lines, fence)
}

func (r *Renderer) stackLine(f stack.Frame) string {
	text := f.Symbol
	if f.Location != "" {
		text += " (" + f.Location + ")"
	}
	if stack.Classify(f, r.opts.CorePrefixes) == stack.OriginCore {
		return markerCore + r.core.Sprint(text)
	}
	return r.user.Sprint(markerUser) + text
}

// Observe counts the schedule stacks of rec without rendering anything.
func Observe(rec frame.Record, seen Observer) {
	for _, ev := range rec.Schedules {
		seen.Observe(ev.Key(), rec.Number)
	}
}

// Write prints lines to w, one per line.
func Write(w io.Writer, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func times(n int) string {
	if n == 1 {
		return "1 time"
	}
	return fmt.Sprintf("%d times", n)
}
