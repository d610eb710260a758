package schema

import (
	"maps"
	"slices"
)

// RootName is the name of the synthetic root node.
const RootName = "#root#"

// Model is a feature model: a synthetic root whose children are the
// top-level nodes, and the scope used to bound solving.
type Model struct {
	Root  *Node
	Scope *Scope
}

// NewModel returns an empty model with a default scope of 1.
func NewModel() *Model {
	return &Model{
		Root:  &Node{Name: RootName, Card: Card{Low: 1, High: 1}},
		Scope: &Scope{Default: 1},
	}
}

// Abstract declares a top-level abstract type.
func (m *Model) Abstract(name string) *Node {
	n := m.Root.AddChild(name)
	n.Abstract = true
	n.Card = Card{Low: 0, High: Unbounded}
	return n
}

// Concrete declares a top-level concrete node with cardinality 1..1.
func (m *Model) Concrete(name string) *Node {
	return m.Root.AddChild(name)
}

// Top returns the top-level node with the given name, or nil.
func (m *Model) Top(name string) *Node {
	return m.Root.Child(name)
}

// Nodes returns every node of the model in preorder, root excluded.
func (m *Model) Nodes() []*Node {
	var nodes []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			nodes = append(nodes, c)
			walk(c)
		}
	}
	walk(m.Root)
	return nodes
}

// Scope bounds the search space of a solving engine.
type Scope struct {
	// Default bounds unbounded cardinalities of nodes without an explicit entry.
	Default int
	// Cards holds per-node bounds keyed by node name.
	Cards map[string]int
	// IntLow and IntHigh bound the values of unassigned integer references.
	IntLow  int
	IntHigh int
}

// CardOf returns the bound for the named node.
func (s Scope) CardOf(name string) int {
	if n, ok := s.Cards[name]; ok {
		return n
	}
	return s.Default
}

// WithIntRange returns a copy of the scope with the given integer range.
func (s Scope) WithIntRange(low, high int) Scope {
	s.Cards = maps.Clone(s.Cards)
	s.IntLow, s.IntHigh = low, high
	return s
}

// Names returns the node names with an explicit bound, sorted.
func (s Scope) Names() []string {
	return slices.Sorted(maps.Keys(s.Cards))
}
