// Package scenario loads and replays scripted engine sessions: a node
// tree plus a list of frames, each a list of steps such as set_state or
// disable. Scenarios are written in TOML and can be converted to a compact
// msgpack capture.
package scenario

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"
)

// Step operations.
const (
	OpSetState    = "set_state"    // SetState on node, causal stack from Stack
	OpMark        = "mark"         // MarkNeedsBuild on node
	OpEnable      = "enable"       // enable the tracker
	OpDisable     = "disable"      // disable the tracker
	OpResetCounts = "reset_counts" // reset stack occurrence counters
	OpPrintTop    = "print_top"    // print the top Count stacks, then reset counts unless reset = false
)

// Scenario is a replayable session.
type Scenario struct {
	Name   string      `toml:"name" msgpack:"name"`
	Nodes  []NodeSpec  `toml:"node" msgpack:"nodes"`
	Frames []FrameSpec `toml:"frame" msgpack:"frames"`
}

// NodeSpec declares one node. Dirties lists nodes marked dirty whenever
// this node is built.
type NodeSpec struct {
	Name    string   `toml:"name" msgpack:"name"`
	Parent  string   `toml:"parent" msgpack:"parent,omitempty"`
	Dirties []string `toml:"dirties" msgpack:"dirties,omitempty"`
}

// FrameSpec is one frame, played Repeat times (once when zero).
type FrameSpec struct {
	Repeat int    `toml:"repeat" msgpack:"repeat,omitempty"`
	Steps  []Step `toml:"step" msgpack:"steps,omitempty"`
}

// Step is a single scripted action inside a frame.
type Step struct {
	Op    string   `toml:"op" msgpack:"op"`
	Node  string   `toml:"node" msgpack:"node,omitempty"`
	Stack []string `toml:"stack" msgpack:"stack,omitempty"`
	AtMS  uint64   `toml:"at_ms" msgpack:"at_ms,omitempty"`
	Count int      `toml:"count" msgpack:"count,omitempty"`
	Reset *bool    `toml:"reset" msgpack:"reset,omitempty"` // print_top only; nil means true
}

// ResetAfterPrint reports whether a print_top step clears the counters.
func (st Step) ResetAfterPrint() bool {
	return st.Reset == nil || *st.Reset
}

// TotalFrames returns the number of frames the scenario pumps.
func (s *Scenario) TotalFrames() int {
	total := 0
	for _, f := range s.Frames {
		total += f.times()
	}
	return total
}

func (f FrameSpec) times() int {
	if f.Repeat <= 0 {
		return 1
	}
	return f.Repeat
}

// Validate checks names and operations.
func (s *Scenario) Validate() error {
	if len(s.Nodes) == 0 {
		return fmt.Errorf("scenario %q: no nodes", s.Name)
	}
	known := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if strings.TrimSpace(n.Name) == "" {
			return fmt.Errorf("scenario %q: node %d has no name", s.Name, i)
		}
		if known[n.Name] {
			return fmt.Errorf("scenario %q: duplicate node %q", s.Name, n.Name)
		}
		if n.Parent != "" && !known[n.Parent] {
			return fmt.Errorf("scenario %q: node %q: parent %q must be declared before it", s.Name, n.Name, n.Parent)
		}
		known[n.Name] = true
	}
	for _, n := range s.Nodes {
		for _, d := range n.Dirties {
			if !known[d] {
				return fmt.Errorf("scenario %q: node %q dirties unknown node %q", s.Name, n.Name, d)
			}
		}
	}
	for fi, f := range s.Frames {
		if f.Repeat < 0 {
			return fmt.Errorf("scenario %q: frame %d: negative repeat", s.Name, fi+1)
		}
		for si, st := range f.Steps {
			switch st.Op {
			case OpSetState, OpMark:
				if !known[st.Node] {
					return fmt.Errorf("scenario %q: frame %d step %d: unknown node %q", s.Name, fi+1, si+1, st.Node)
				}
			case OpEnable, OpDisable, OpResetCounts, OpPrintTop:
			default:
				return fmt.Errorf("scenario %q: frame %d step %d: unknown op %q", s.Name, fi+1, si+1, st.Op)
			}
		}
	}
	return nil
}

// Load reads a scenario from a .toml or .msgpack file and validates it.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s *Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		s, err = DecodeTOML(bytes.NewReader(data))
	case ".msgpack", ".mp":
		s, err = DecodeMsgpack(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%s: unsupported scenario extension (want .toml or .msgpack)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeTOML decodes a scenario written in TOML. Unknown keys are an error.
func DecodeTOML(r io.Reader) (*Scenario, error) {
	var s Scenario
	meta, err := toml.NewDecoder(r).Decode(&s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	return &s, nil
}

// DecodeMsgpack decodes a binary scenario capture.
func DecodeMsgpack(r io.Reader) (*Scenario, error) {
	var s Scenario
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode msgpack: %w", err)
	}
	return &s, nil
}

// EncodeMsgpack writes s as a binary capture.
func EncodeMsgpack(w io.Writer, s *Scenario) error {
	if err := msgpack.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("encode scenario %q: %w", s.Name, err)
	}
	return nil
}
