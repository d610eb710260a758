// Package solver defines the interface between instance generation and a
// model-finding engine, and the instance trees engines produce.
package solver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/featgen/schema"
)

// Engine compiles a constrained feature model into a session that
// enumerates its instances.
type Engine interface {
	Compile(ctx context.Context, m *schema.Model, scope schema.Scope) (Session, error)
}

// Session iterates over the solutions of a compiled model. It follows the
// database/sql.Rows convention:
//
//	for s.Next() {
//		m := s.Current()
//		...
//	}
//	if err := s.Err(); err != nil {
//		...
//	}
//
// Next blocks until the engine produces a solution or is exhausted.
// Distinct calls may yield structurally identical solutions.
type Session interface {
	Next() bool
	Current() *Model
	Err() error
	Close() error
}

// Model is one solution: the instances of the top-level concrete nodes.
type Model struct {
	Top []*Instance
}

// Instance is a node of a solution tree. Leaves may hold a value: an int, a
// string, a bool or a reference to another instance of the same solution.
type Instance struct {
	Type     *schema.Node
	ID       int
	Ref      any
	Children []*Instance
}

// HasChildren reports whether the instance has children.
func (i *Instance) HasChildren() bool {
	return len(i.Children) > 0
}

// HasRef reports whether the instance holds a value.
func (i *Instance) HasRef() bool {
	return i.Ref != nil
}

// Name returns the Clafer-style name of the instance, e.g. "c0_md5$0".
func (i *Instance) Name() string {
	return i.Type.Name + "$" + strconv.Itoa(i.ID)
}

// String renders the instance tree in an indented, human readable form.
func (i *Instance) String() string {
	var b strings.Builder
	i.write(&b, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func (i *Instance) write(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(i.Name())
	switch ref := i.Ref.(type) {
	case nil:
	case *Instance:
		b.WriteString(" -> " + ref.Name())
	case string:
		b.WriteString(" = " + strconv.Quote(ref))
	default:
		fmt.Fprintf(b, " = %v", ref)
	}
	b.WriteByte('\n')
	for _, c := range i.Children {
		c.write(b, depth+1)
	}
}

// Walk calls fn for i and its descendants in preorder.
func (i *Instance) Walk(fn func(*Instance)) {
	fn(i)
	for _, c := range i.Children {
		c.Walk(fn)
	}
}

// Find returns the first top-level instance of the named type, or nil.
func (m *Model) Find(name string) *Instance {
	for _, i := range m.Top {
		if i.Type.Name == name {
			return i
		}
	}
	return nil
}
