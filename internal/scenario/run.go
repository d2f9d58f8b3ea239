package scenario

import (
	"fmt"
	"time"

	"fortio.org/safecast"

	"rebuildtrace/internal/dedup"
	"rebuildtrace/internal/engine"
	"rebuildtrace/internal/frame"
	"rebuildtrace/internal/stack"
	"rebuildtrace/internal/tracker"
)

// frameIntervalMS advances the scenario clock between frames when steps
// carry no explicit at_ms.
const frameIntervalMS = 16

// Progress is reported after every pumped frame.
type Progress struct {
	Scenario string
	Frame    int // engine frames pumped so far
	Total    int
	Tracked  int // last tracked frame number, 0 when none yet
	Events   int // events in the tracked frame just completed
}

// Options configure a replay.
type Options struct {
	// Tracker is the base configuration. Enabled is the tracking state at
	// the first scripted frame; enable/disable steps change it. Source and
	// Clock are overridden by the replay; OnFrame is chained.
	Tracker tracker.Config

	// TopStacks, when positive, is the size of the Result.Top listing.
	TopStacks int

	// OnProgress, if set, runs after every frame.
	OnProgress func(Progress)
}

// Result summarises a replay.
type Result struct {
	Name          string
	EngineFrames  int
	TrackedFrames int
	Rebuilds      int
	Schedules     int
	Top           []dedup.Entry
}

// Run replays s on a fresh engine with a tracker attached. Nodes are
// mounted in an untracked frame before the script starts.
func Run(s *Scenario, opts Options) (Result, error) {
	res := Result{Name: s.Name}
	eng := engine.New()
	if err := mount(eng, s.Nodes); err != nil {
		return res, err
	}
	eng.Pump()

	var nowMS int64
	src := &engine.ScriptedSource{}
	cfg := opts.Tracker
	cfg.Source = src
	cfg.Clock = func() time.Time { return time.UnixMilli(nowMS) }
	cfg.CorePrefixes = append([]string{engine.CorePrefix}, cfg.CorePrefixes...)

	var last frame.Record
	tracked := false
	userOnFrame := cfg.OnFrame
	cfg.OnFrame = func(rec frame.Record) {
		last, tracked = rec, true
		res.Rebuilds += len(rec.Rebuilds)
		res.Schedules += len(rec.Schedules)
		if userOnFrame != nil {
			userOnFrame(rec)
		}
	}

	c, err := tracker.New(eng, cfg)
	if err != nil {
		return res, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	defer c.Close()

	total := s.TotalFrames()
	for fi, f := range s.Frames {
		for rep := 0; rep < f.times(); rep++ {
			nowMS += frameIntervalMS
			for si, st := range f.Steps {
				if err := apply(eng, c, src, st, &nowMS); err != nil {
					return res, fmt.Errorf("scenario %q: frame %d step %d: %w", s.Name, fi+1, si+1, err)
				}
			}
			tracked = false
			eng.Pump()
			if opts.OnProgress != nil {
				p := Progress{Scenario: s.Name, Frame: eng.Frames() - 1, Total: total, Tracked: c.FrameNumber()}
				if tracked {
					p.Events = len(last.Rebuilds) + len(last.Schedules)
				}
				opts.OnProgress(p)
			}
		}
	}

	res.EngineFrames = eng.Frames() - 1
	res.TrackedFrames = c.FrameNumber()
	if opts.TopStacks > 0 {
		res.Top = c.TopScheduleStacks(opts.TopStacks)
	}
	return res, nil
}

func mount(eng *engine.Engine, nodes []NodeSpec) error {
	for _, spec := range nodes {
		var build engine.BuildFunc
		if len(spec.Dirties) > 0 {
			dirties := spec.Dirties
			build = func(n *engine.Node) {
				for _, name := range dirties {
					if target, err := eng.Node(name); err == nil {
						target.MarkNeedsBuild()
					}
				}
			}
		}
		if _, err := eng.Add(spec.Name, spec.Parent, build); err != nil {
			return err
		}
	}
	return nil
}

func apply(eng *engine.Engine, c *tracker.Controller, src *engine.ScriptedSource, st Step, nowMS *int64) error {
	if st.AtMS > 0 {
		at, err := safecast.Conv[int64](st.AtMS)
		if err != nil {
			return fmt.Errorf("at_ms: %w", err)
		}
		*nowMS = at
	}
	switch st.Op {
	case OpSetState, OpMark:
		n, err := eng.Node(st.Node)
		if err != nil {
			return err
		}
		// A stack not taken by the schedule hook (node already dirty,
		// tracker disabled) must not leak into a later capture.
		src.Push(stack.ParseFrames(st.Stack))
		if st.Op == OpSetState {
			n.SetState(nil)
		} else {
			n.MarkNeedsBuild()
		}
		src.Clear()
	case OpEnable:
		c.Enable()
	case OpDisable:
		c.Disable()
	case OpResetCounts:
		c.ResetStackCounts()
	case OpPrintTop:
		return c.PrintTopScheduleStacks(st.Count, st.ResetAfterPrint())
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}
