package tracker

import (
	"io"
	"log/slog"
	"time"

	"rebuildtrace/internal/frame"
	"rebuildtrace/internal/stack"
)

// DefaultTopStacks is the listing size used when PrintTopScheduleStacks is
// called with a non-positive count.
const DefaultTopStacks = 10

// DefaultSubjectDepth bounds the ancestor chain recorded for a node.
const DefaultSubjectDepth = 5

// Config is the tracker's configuration surface.
type Config struct {
	Enabled        bool // start tracking right after New
	PrintOnFrame   bool // render a report for every completed frame
	PrintRebuilds  bool // include rebuilt nodes in frame reports
	PrintSchedules bool // include scheduled build roots in frame reports

	// OnFrame receives every completed frame before it is rendered.
	OnFrame func(rec frame.Record)

	Output io.Writer // report destination; os.Stderr when nil
	Color  bool

	SubjectDepth    int      // ancestor chain depth; DefaultSubjectDepth when 0
	MutationSymbols []string // stack.DefaultMutationSymbols when nil
	CorePrefixes    []string // locations classified as framework frames
	MaxStackDepth   int      // frames kept per causal stack, 0 = all

	// ResetHistory makes ResetStackCounts forget first-seen frames too.
	ResetHistory bool

	Source stack.Source     // causal stack capture; stack.RuntimeSource when nil
	Clock  func() time.Time // event timestamps; time.Now when nil
	Logger *slog.Logger     // slog.Default() when nil
}

// DefaultConfig returns a configuration that prints both report sections
// on every frame. Tracking starts disabled.
func DefaultConfig() Config {
	return Config{
		PrintOnFrame:   true,
		PrintRebuilds:  true,
		PrintSchedules: true,
		SubjectDepth:   DefaultSubjectDepth,
	}
}
