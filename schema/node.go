package schema

import (
	"fmt"
	"strings"
)

// Primitive is the kind of a primitive reference.
type Primitive uint8

// Primitive reference kinds.
const (
	NoPrimitive Primitive = iota
	Int
	String
	Bool
)

var primitiveNames = [...]string{
	NoPrimitive: "",
	Int:         "int",
	String:      "string",
	Bool:        "bool",
}

// String returns the primitive name.
func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return fmt.Sprintf("Primitive(%d)", p)
}

// ParsePrimitive returns the Primitive for the given name.
func ParsePrimitive(s string) (Primitive, bool) {
	switch strings.ToLower(s) {
	case "int", "integer":
		return Int, true
	case "string":
		return String, true
	case "bool", "boolean":
		return Bool, true
	}
	return NoPrimitive, false
}

// Ref describes what a node refers to: either a primitive value or
// instances of another node type.
type Ref struct {
	Primitive Primitive
	Target    *Node
}

// IsPrimitive reports whether the reference holds a primitive value.
func (r *Ref) IsPrimitive() bool {
	return r != nil && r.Target == nil && r.Primitive != NoPrimitive
}

// String returns the referenced type name.
func (r *Ref) String() string {
	switch {
	case r == nil:
		return ""
	case r.Target != nil:
		return r.Target.Name
	default:
		return r.Primitive.String()
	}
}

// Unbounded marks a cardinality without an upper bound.
const Unbounded = -1

// Card is an inclusive cardinality range. A High of Unbounded is
// bounded by the scope when solving.
type Card struct {
	Low  int
	High int
}

// Contains reports whether n is within the range.
func (c Card) Contains(n int) bool {
	return n >= c.Low && (c.High == Unbounded || n <= c.High)
}

// String returns the Clafer-style rendering of the range.
func (c Card) String() string {
	if c.High == Unbounded {
		return fmt.Sprintf("%d..*", c.Low)
	}
	return fmt.Sprintf("%d..%d", c.Low, c.High)
}

// Constraint is a boolean expression attached to a node.
// Expressions are built by the querylanguage package.
type Constraint interface {
	String() string
}

// Node is a feature in the model.
type Node struct {
	Name        string
	Abstract    bool
	Super       *Node
	Ref         *Ref
	Parent      *Node
	Children    []*Node
	Card        Card
	Group       *Card
	Constraints []Constraint

	subs []*Node
}

func newNode(name string, parent *Node) *Node {
	return &Node{Name: name, Parent: parent, Card: Card{Low: 1, High: 1}}
}

// AddChild appends a concrete child with cardinality 1..1 and returns it.
func (n *Node) AddChild(name string) *Node {
	c := newNode(name, n)
	n.Children = append(n.Children, c)
	return c
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// WithCard sets the node cardinality.
func (n *Node) WithCard(low, high int) *Node {
	n.Card = Card{Low: low, High: high}
	return n
}

// WithGroupCard sets the group cardinality over the node's children.
func (n *Node) WithGroupCard(low, high int) *Node {
	n.Group = &Card{Low: low, High: high}
	return n
}

// RefPrimitive makes the node hold a primitive value.
func (n *Node) RefPrimitive(p Primitive) *Node {
	n.Ref = &Ref{Primitive: p}
	return n
}

// RefTo makes the node reference instances of t.
func (n *Node) RefTo(t *Node) *Node {
	n.Ref = &Ref{Target: t}
	return n
}

// Extends sets the super type of the node.
func (n *Node) Extends(super *Node) *Node {
	if n.Super != nil {
		n.Super.removeSub(n)
	}
	n.Super = super
	if super != nil {
		super.subs = append(super.subs, n)
	}
	return n
}

func (n *Node) removeSub(sub *Node) {
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return
		}
	}
}

// AddConstraint attaches a constraint to the node.
func (n *Node) AddConstraint(c Constraint) {
	n.Constraints = append(n.Constraints, c)
}

// Subs returns the direct subtypes of the node in declaration order.
func (n *Node) Subs() []*Node {
	return n.subs
}

// IsConcrete reports whether the node can be instantiated.
func (n *Node) IsConcrete() bool {
	return n != nil && !n.Abstract
}

// IsRoot reports whether n is the synthetic model root.
func (n *Node) IsRoot() bool {
	return n != nil && n.Parent == nil
}

// IsA reports whether n is t or one of its (transitive) subtypes.
func (n *Node) IsA(t *Node) bool {
	for s := n; s != nil; s = s.Super {
		if s == t {
			return true
		}
	}
	return false
}

// Inherited returns the children instantiated for n: the children of its
// super types, outermost first, followed by its own.
func (n *Node) Inherited() []*Node {
	var chain []*Node
	for s := n; s != nil; s = s.Super {
		chain = append(chain, s)
	}
	var children []*Node
	for i := len(chain) - 1; i >= 0; i-- {
		children = append(children, chain[i].Children...)
	}
	return children
}

// Path returns the dotted path of the node from the root.
func (n *Node) Path() string {
	var parts []string
	for p := n; p != nil && !p.IsRoot(); p = p.Parent {
		parts = append(parts, p.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// String returns the node name.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return n.Name
}
