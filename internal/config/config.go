// Package config loads rebuildtrace.toml, the optional configuration file
// of the rebuildtrace CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"rebuildtrace/internal/sink"
	"rebuildtrace/internal/tracker"
)

// FileName is the config file looked up from the working directory upward.
const FileName = "rebuildtrace.toml"

// File is the decoded config file.
type File struct {
	Path    string         `toml:"-"`
	Tracker trackerSection `toml:"tracker"`
	Output  outputSection  `toml:"output"`

	meta toml.MetaData
}

type trackerSection struct {
	Enabled         bool     `toml:"enabled"`
	PrintOnFrame    bool     `toml:"print_on_frame"`
	PrintRebuilds   bool     `toml:"print_rebuilds"`
	PrintSchedules  bool     `toml:"print_schedules"`
	SubjectDepth    int      `toml:"subject_depth"`
	MaxStackDepth   int      `toml:"max_stack_depth"`
	MutationSymbols []string `toml:"mutation_symbols"`
	CorePrefixes    []string `toml:"core_prefixes"`
	ResetHistory    bool     `toml:"reset_history"`
}

type outputSection struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"`
	Mode     string `toml:"mode"`
	Path     string `toml:"path"`
	RingSize int    `toml:"ring_size"`
}

// Find walks from startDir to the filesystem root looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes the file at path. Unknown keys are an error.
func Load(path string) (*File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("tracker") {
		return nil, fmt.Errorf("%s: missing [tracker]", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if f.Tracker.SubjectDepth < 0 || f.Tracker.MaxStackDepth < 0 {
		return nil, fmt.Errorf("%s: [tracker] depths must not be negative", path)
	}
	f.Path = path
	f.meta = meta
	return &f, nil
}

// Apply copies every key present in the file onto cfg. Keys absent from
// the file leave cfg untouched.
func (f *File) Apply(cfg *tracker.Config) {
	t := f.Tracker
	if f.defined("tracker", "enabled") {
		cfg.Enabled = t.Enabled
	}
	if f.defined("tracker", "print_on_frame") {
		cfg.PrintOnFrame = t.PrintOnFrame
	}
	if f.defined("tracker", "print_rebuilds") {
		cfg.PrintRebuilds = t.PrintRebuilds
	}
	if f.defined("tracker", "print_schedules") {
		cfg.PrintSchedules = t.PrintSchedules
	}
	if f.defined("tracker", "subject_depth") {
		cfg.SubjectDepth = t.SubjectDepth
	}
	if f.defined("tracker", "max_stack_depth") {
		cfg.MaxStackDepth = t.MaxStackDepth
	}
	if f.defined("tracker", "mutation_symbols") {
		cfg.MutationSymbols = t.MutationSymbols
	}
	if f.defined("tracker", "core_prefixes") {
		cfg.CorePrefixes = append(cfg.CorePrefixes, t.CorePrefixes...)
	}
	if f.defined("tracker", "reset_history") {
		cfg.ResetHistory = t.ResetHistory
	}
}

// SinkConfig builds the frame sink configuration from [output]. A missing
// section yields a disabled sink.
func (f *File) SinkConfig() (sink.Config, error) {
	if !f.defined("output") {
		return sink.Config{Level: sink.LevelOff}, nil
	}
	o := f.Output
	cfg := sink.Config{Mode: sink.ModeStream, OutputPath: o.Path, RingSize: o.RingSize, Level: sink.LevelSummary}
	var err error
	if o.Level != "" {
		if cfg.Level, err = sink.ParseLevel(o.Level); err != nil {
			return sink.Config{}, fmt.Errorf("%s: [output].level: %w", f.Path, err)
		}
	}
	if cfg.Format, err = sink.ParseFormat(o.Format); err != nil {
		return sink.Config{}, fmt.Errorf("%s: [output].format: %w", f.Path, err)
	}
	if o.Mode != "" {
		if cfg.Mode, err = sink.ParseMode(o.Mode); err != nil {
			return sink.Config{}, fmt.Errorf("%s: [output].mode: %w", f.Path, err)
		}
	}
	return cfg, nil
}

func (f *File) defined(key ...string) bool {
	return f.meta.IsDefined(key...)
}
