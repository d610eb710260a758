// Package compiler translates constraint directives into expressions
// attached to the feature model.
//
// A directive names a subject node, an operand path of attribute nodes, an
// operator and a value. [Compiler.Compile] parses the operator/value pair
// once and dispatches on the resulting shape:
//
//	value     operator  operand path  attached to      constraint
//	int       any       empty         subject          this.ref <op> n
//	int       any       [op0]         subject          this.ref.op0.ref <op> n
//	literal   =         [op0]         subject          this.ref.op0.ref == "literal"
//	a.b       =         empty         task             this.subject.ref == this.a.ref.b.ref.ref
//	min(...)  =         empty         task             this.subject.ref == min(...)
//	token     =         empty         subject          this.ref == global(sub)
//	literal   cmp       [op0]         subject.Parent   this.subject.ref.op0.ref.ref <op> global(v).ref
//	names     ++        [op0, ...]    subject          this.op0.ref in union(...)
//	clauses   |         [op0, ...]    subject.Parent   all suite : this.subject | ...
package compiler

import (
	"fmt"
	"strings"

	"github.com/syssam/featgen"
	"github.com/syssam/featgen/compiler/directive"
	ql "github.com/syssam/featgen/querylanguage"
	"github.com/syssam/featgen/schema"
)

// binder is the name of the variable bound by clause-list constraints.
const binder = "suite"

// Compiler attaches constraints to a model on behalf of a task node.
type Compiler struct {
	model *schema.Model
	task  *schema.Node
}

// New returns a compiler for the given model and task node.
func New(model *schema.Model, task *schema.Node) *Compiler {
	return &Compiler{model: model, task: task}
}

// Task returns the task node constraints are compiled for.
func (c *Compiler) Task() *schema.Node {
	return c.task
}

// Compile attaches the constraints described by the directive to the model.
// An operand path is empty when it has no elements or its first element is
// nil. Any name that cannot be resolved fails the whole call.
func (c *Compiler) Compile(subject *schema.Node, path []*schema.Node, operator, value string) error {
	if subject == nil {
		return fmt.Errorf("compiler: nil subject for %q %q", operator, value)
	}
	d, err := directive.Parse(operator, value)
	if err != nil {
		return err
	}
	if d.Compare && len(path) > 1 {
		return featgen.NewDirectiveError(operator, value,
			fmt.Sprintf("operand path of length %d requires %q or %q", len(path), directive.OpUnion, directive.OpClauses))
	}
	var op0 *schema.Node
	if len(path) > 0 {
		op0 = path[0]
	}
	switch v := d.Value.(type) {
	case directive.Names:
		if op0 == nil {
			return featgen.NewDirectiveError(operator, value, "missing operand")
		}
		return c.union(subject, path, v)
	case directive.Clauses:
		if op0 == nil {
			return featgen.NewDirectiveError(operator, value, "missing operand")
		}
		return c.clauses(subject, path, v)
	case directive.Int:
		left := ql.JoinRef(ql.This())
		if op0 != nil {
			left = ql.JoinRef(ql.Join(ql.JoinRef(ql.This()), op0))
		}
		subject.AddConstraint(ql.Compare(d.Op, left, ql.Constant(v.N)))
		return nil
	}
	switch {
	case d.Op != ql.OpEQ:
		return c.compareGlobal(subject, op0, d.Op, value)
	case op0 != nil:
		subject.AddConstraint(ql.EQ(
			ql.JoinRef(ql.Join(ql.JoinRef(ql.This()), op0)),
			ql.Constant(d.Value.Raw()),
		))
		return nil
	}
	switch v := d.Value.(type) {
	case directive.Path:
		right, err := c.pathRef(subject, v)
		if err != nil {
			return err
		}
		c.task.AddConstraint(ql.EQ(ql.JoinRef(ql.Join(ql.This(), subject)), right))
	case directive.Min:
		sets := make([]ql.Set, 0, len(v.Paths))
		for _, p := range v.Paths {
			right, err := c.pathRef(subject, p)
			if err != nil {
				return err
			}
			sets = append(sets, right)
		}
		c.task.AddConstraint(ql.EQ(ql.JoinRef(ql.Join(ql.This(), subject)), ql.Min(ql.Union(sets...))))
	case directive.Token:
		sub, err := subtypeBySuffix(subject, v.Name)
		if err != nil {
			return err
		}
		subject.AddConstraint(ql.EQ(ql.JoinRef(ql.This()), ql.Global(sub)))
	default:
		return featgen.NewDirectiveError(operator, value, fmt.Sprintf("unexpected value %T", v))
	}
	return nil
}

// pathRef resolves "a.b" relative to the subject's parent and returns
// this.a.ref.b.ref.ref.
func (c *Compiler) pathRef(subject *schema.Node, p directive.Path) (ql.Set, error) {
	a, err := schema.FindByName(subject.Parent, p.Head)
	if err != nil {
		return nil, err
	}
	b, err := schema.FindByName(a, p.Tail)
	if err != nil {
		return nil, err
	}
	return ql.JoinRef(ql.JoinRef(ql.Join(ql.JoinRef(ql.Join(ql.This(), a)), b))), nil
}

// subtypeBySuffix returns the first subtype of the subject's abstract
// reference target whose name ends with suffix.
func subtypeBySuffix(subject *schema.Node, suffix string) (*schema.Node, error) {
	if suffix == "" {
		return nil, featgen.NewDirectiveError("=", suffix, "empty subtype name")
	}
	if subject.Ref == nil || subject.Ref.Target == nil || !subject.Ref.Target.Abstract {
		return nil, featgen.NewDirectiveError("=", suffix,
			fmt.Sprintf("%s does not reference an abstract type", subject.Name))
	}
	target := subject.Ref.Target
	for _, sub := range schema.Subtypes(target) {
		if strings.HasSuffix(sub.Name, suffix) {
			return sub, nil
		}
	}
	return nil, featgen.NewNotFoundError("*"+suffix, target.Name)
}

// compareGlobal compares an attribute of the subject against a node
// resolved from the subject's grandparent.
func (c *Compiler) compareGlobal(subject, op0 *schema.Node, op ql.Op, value string) error {
	if op0 == nil {
		return featgen.NewDirectiveError(op.String(), value, "missing operand")
	}
	if subject.Parent == nil {
		return fmt.Errorf("compiler: %s has no parent to attach to", subject.Name)
	}
	right, err := schema.FindByName(c.scope(subject.Parent.Parent), value)
	if err != nil {
		return err
	}
	subject.Parent.AddConstraint(ql.Compare(op,
		ql.JoinRef(ql.JoinRef(ql.Join(ql.JoinRef(ql.Join(ql.This(), subject)), op0))),
		ql.JoinRef(ql.Global(right)),
	))
	return nil
}

func (c *Compiler) union(subject *schema.Node, path []*schema.Node, names directive.Names) error {
	if len(names.List) == 1 {
		return c.Compile(subject, path[:1], "=", names.List[0])
	}
	sets := make([]ql.Set, 0, len(names.List))
	for _, name := range names.List {
		n, err := schema.FindByName(subject.Parent, name)
		if err != nil {
			return err
		}
		sets = append(sets, ql.Global(n))
	}
	subject.AddConstraint(ql.In(ql.JoinRef(ql.Join(ql.This(), path[0])), ql.Union(sets...)))
	return nil
}

func (c *Compiler) clauses(subject *schema.Node, path []*schema.Node, clauses directive.Clauses) error {
	if len(clauses.List) > len(path) {
		return featgen.NewDirectiveError(directive.OpClauses, clauses.Raw(),
			fmt.Sprintf("%d clauses for %d operands", len(clauses.List), len(path)))
	}
	if subject.Parent == nil {
		return fmt.Errorf("compiler: %s has no parent to attach to", subject.Name)
	}
	local := ql.Local(binder)
	body := make([]ql.Bool, 0, len(clauses.List))
	for i, cl := range clauses.List {
		op := path[i]
		if op == nil {
			return featgen.NewDirectiveError(directive.OpClauses, clauses.Raw(), fmt.Sprintf("missing operand %d", i))
		}
		var start *schema.Node
		if op.Parent != nil {
			start = op.Parent.Parent
		}
		right, err := schema.FindByName(c.scope(start), cl.Name)
		if err != nil {
			return err
		}
		body = append(body, ql.Compare(cl.Op,
			ql.JoinRef(ql.Join(ql.JoinRef(local), op)),
			ql.JoinRef(ql.Global(right)),
		))
	}
	subject.Parent.AddConstraint(ql.All(local, ql.Join(ql.This(), subject), ql.And(body...)))
	return nil
}

// scope returns n, or the model root when n is nil.
func (c *Compiler) scope(n *schema.Node) *schema.Node {
	if n == nil {
		return c.model.Root
	}
	return n
}
