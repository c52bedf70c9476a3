// Package plan supplies a minimal plan-tree representation and the pure,
// read-only traversals that the dynamic filter service needs at query
// registration time: which filter ids are produced, which are consumed,
// which build sides are replicated, and which filters are lazy.
//
// Query planning itself is out of scope for dynamic filter coordination —
// the real planner hands the coordination core an already-analyzed plan
// and the filter id sets below. This package exists so that handoff has a
// concrete, testable shape instead of an undefined interface.
package plan

import "github.com/dfcoord/dfcoord/predicate"

// FilterId is the opaque, equatable, hashable token assigned to one
// dynamic filter at planning time.
type FilterId string

// Symbol names a plan-side binding, resolved to a concrete ColHandle once
// a scan operator knows which physical column it reads.
type Symbol string

// FilterDescriptor names which filter id a scan intends to use and which
// plan-side symbol the filter's predicate applies to.
type FilterDescriptor struct {
	FilterId FilterId
	Symbol   Symbol
}

// Node is one element of a plan tree. Visitors must never mutate a Node;
// plan inspection is a pure function of the tree's shape.
type Node interface {
	Children() []Node
}

// JoinNode declares zero or more dynamic filters, one per build-side join
// key, and records whether its build side is broadcast to every probe
// task (a replicated build, per the GLOSSARY).
type JoinNode struct {
	Left, Right     Node
	DynamicFilters  map[FilterId]predicate.ColHandle
	ReplicatedBuild bool
}

func (j *JoinNode) Children() []Node {
	children := make([]Node, 0, 2)
	if j.Left != nil {
		children = append(children, j.Left)
	}
	if j.Right != nil {
		children = append(children, j.Right)
	}
	return children
}

// ScanNode reads a source table, applying zero or more dynamic filter
// descriptors as scan-filter expressions.
type ScanNode struct {
	Table       string
	Descriptors []FilterDescriptor
}

func (s *ScanNode) Children() []Node { return nil }

// FilterNode applies a non-dynamic predicate; it passes dynamic filter
// inspection through to its single child unchanged.
type FilterNode struct {
	Input Node
}

func (f *FilterNode) Children() []Node {
	if f.Input == nil {
		return nil
	}
	return []Node{f.Input}
}

// ExchangeNode marks a stage boundary: data crossing an Exchange moves
// between plan fragments. It does not itself produce or consume filters.
type ExchangeNode struct {
	Input Node
}

func (e *ExchangeNode) Children() []Node {
	if e.Input == nil {
		return nil
	}
	return []Node{e.Input}
}

// Fragment is one stage's subtree of a fragmented plan.
type Fragment struct {
	Root Node
}

// walk visits every node in the tree rooted at n, including n itself, in
// no particular guaranteed order beyond depth-first. It never mutates the
// tree; it is the sole traversal primitive the FilterId-set queries below
// are built on.
func walk(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, child := range n.Children() {
		walk(child, visit)
	}
}
