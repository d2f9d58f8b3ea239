// Package engine is a small retained-tree engine used to host the rebuild
// tracker outside a real UI toolkit. It keeps the parts of a build
// pipeline the tracker observes: dirty marking, ordered rebuilds, single
// hook slots and single-shot post-frame callbacks.
package engine

import (
	"errors"
	"fmt"
	"sort"

	"rebuildtrace/internal/hook"
)

// CorePrefix is the location prefix of frames that belong to the engine.
const CorePrefix = "rebuildtrace/internal/engine/"

var (
	// ErrDuplicateNode is returned when a node name is reused.
	ErrDuplicateNode = errors.New("engine: duplicate node")
	// ErrUnknownNode is returned for lookups of names that were never added.
	ErrUnknownNode = errors.New("engine: unknown node")
)

// BuildFunc runs when a node is rebuilt. It may mark other nodes dirty;
// those are built in the same frame.
type BuildFunc func(n *Node)

// Engine owns the node tree and drives frames. Not safe for concurrent use.
type Engine struct {
	slots     hook.Slots
	nodes     map[string]*Node
	order     []*Node
	dirty     []*Node
	postFrame []func()
	frames    int
}

// New returns an empty engine.
func New() *Engine {
	return &Engine{nodes: make(map[string]*Node)}
}

// HookSlots returns the engine's instrumentation slots.
func (e *Engine) HookSlots() *hook.Slots { return &e.slots }

// AddPostFrameCallback registers fn to run once after the next frame.
func (e *Engine) AddPostFrameCallback(fn func()) {
	e.postFrame = append(e.postFrame, fn)
}

// Add creates a node under parent ("" for a root). New nodes are dirty and
// get their first build in the next frame without going through the
// schedule hook.
func (e *Engine) Add(name, parent string, build BuildFunc) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("engine: empty node name")
	}
	if _, ok := e.nodes[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}
	n := &Node{name: name, engine: e, build: build}
	if parent != "" {
		p, ok := e.nodes[parent]
		if !ok {
			return nil, fmt.Errorf("%w: parent %q of %q", ErrUnknownNode, parent, name)
		}
		n.parent = p
		n.depth = p.depth + 1
		p.children = append(p.children, n)
	}
	e.nodes[name] = n
	e.order = append(e.order, n)
	n.dirty = true
	e.dirty = append(e.dirty, n)
	return n, nil
}

// Node looks a node up by name.
func (e *Engine) Node(name string) (*Node, error) {
	n, ok := e.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	return n, nil
}

// Len returns the number of nodes.
func (e *Engine) Len() int { return len(e.order) }

// Frames returns the number of frames pumped so far.
func (e *Engine) Frames() int { return e.frames }

// Pump runs one frame: dirty nodes are rebuilt shallowest first (ties in
// insertion order), then the post-frame callbacks registered before this
// point run once each. Callbacks added while they run wait for the next
// frame.
func (e *Engine) Pump() {
	for len(e.dirty) > 0 {
		batch := e.dirty
		e.dirty = nil
		sort.SliceStable(batch, func(i, j int) bool { return batch[i].depth < batch[j].depth })
		for _, n := range batch {
			e.rebuild(n)
		}
	}
	e.frames++

	callbacks := e.postFrame
	e.postFrame = nil
	for _, cb := range callbacks {
		cb()
	}
}

func (e *Engine) rebuild(n *Node) {
	if !n.dirty {
		return
	}
	builtOnce := n.built
	e.slots.FireRebuild(n, builtOnce)
	n.dirty = false
	n.built = true
	n.builds++
	if n.build != nil {
		n.build(n)
	}
}

// scheduleBuildFor queues n and reports it as a build root.
func (e *Engine) scheduleBuildFor(n *Node) {
	e.dirty = append(e.dirty, n)
	e.slots.FireSchedule(n)
}
