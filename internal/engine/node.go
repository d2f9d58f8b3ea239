package engine

import "strings"

const chainSep = " ← "

// Node is one element of the retained tree.
type Node struct {
	name     string
	parent   *Node
	children []*Node
	depth    int
	engine   *Engine
	build    BuildFunc
	dirty    bool
	built    bool
	builds   int
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the direct children in insertion order.
func (n *Node) Children() []*Node { return n.children }

// Dirty reports whether the node waits for a rebuild.
func (n *Node) Dirty() bool { return n.dirty }

// Builds returns how many times the node has been built.
func (n *Node) Builds() int { return n.builds }

// AncestorChain describes the node followed by its ancestors, at most
// depth names long. A cut chain ends with "…".
func (n *Node) AncestorChain(depth int) string {
	if depth <= 0 {
		depth = 1
	}
	parts := make([]string, 0, depth+1)
	cur := n
	for cur != nil && len(parts) < depth {
		parts = append(parts, cur.name)
		cur = cur.parent
	}
	if cur != nil {
		parts = append(parts, "…")
	}
	return strings.Join(parts, chainSep)
}

// MarkNeedsBuild marks the node dirty and schedules it for the next frame.
// Marking a dirty node again does nothing.
func (n *Node) MarkNeedsBuild() {
	if n.dirty {
		return
	}
	n.dirty = true
	n.engine.scheduleBuildFor(n)
}

// SetState runs mutate and marks the node dirty.
func (n *Node) SetState(mutate func()) {
	if mutate != nil {
		mutate()
	}
	n.MarkNeedsBuild()
}
