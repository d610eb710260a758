package schema

import (
	"fmt"

	"github.com/syssam/featgen"
)

// FindByName resolves name relative to start. The search is breadth first
// over children, super types, subtypes and reference targets; start itself
// is not a candidate. Zero matches yield a not-found error and two or more distinct
// matches an ambiguity error.
func FindByName(start *Node, name string) (*Node, error) {
	if start == nil {
		return nil, featgen.NewNotFoundError(name, "")
	}
	var (
		found   []*Node
		visited = map[*Node]bool{start: true}
		queue   = []*Node{start}
	)
	visit := func(n *Node) {
		if n == nil || visited[n] {
			return
		}
		visited[n] = true
		if n.Name == name {
			found = append(found, n)
		}
		queue = append(queue, n)
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range n.Children {
			visit(c)
		}
		visit(n.Super)
		for _, s := range n.subs {
			visit(s)
		}
		if n.Ref != nil {
			visit(n.Ref.Target)
		}
	}
	switch len(found) {
	case 0:
		return nil, featgen.NewNotFoundError(name, scopeName(start))
	case 1:
		return found[0], nil
	default:
		return nil, featgen.NewAmbiguousError(name, scopeName(start), len(found))
	}
}

func scopeName(n *Node) string {
	if n.IsRoot() {
		return ""
	}
	return n.Name
}

// Subtypes returns the transitive subtypes of t in declaration order,
// depth first.
func Subtypes(t *Node) []*Node {
	var subs []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		for _, s := range n.subs {
			subs = append(subs, s)
			walk(s)
		}
	}
	walk(t)
	return subs
}

// CreateChild adds a concrete child called name under parent that
// references target. It is a no-op returning the existing child when parent
// already has an identical one.
func CreateChild(parent *Node, name string, target *Node) (*Node, error) {
	if parent == nil || target == nil {
		return nil, fmt.Errorf("schema: create %q: missing parent or target", name)
	}
	if c := parent.Child(name); c != nil {
		if c.Ref != nil && c.Ref.Target == target {
			return c, nil
		}
		return nil, fmt.Errorf("schema: %s already has a child named %q", parent.Name, name)
	}
	return parent.AddChild(name).RefTo(target), nil
}
