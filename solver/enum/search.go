package enum

import (
	"context"

	ql "github.com/syssam/featgen/querylanguage"
	"github.com/syssam/featgen/schema"
	"github.com/syssam/featgen/solver"
)

// expand chooses the children of every instance in queue, breadth first,
// and calls done once the whole tree is built. It returns false when the
// search must stop.
func (p *plan) expand(queue []*solver.Instance, done func() bool) bool {
	if len(queue) == 0 {
		return done()
	}
	inst, rest := queue[0], queue[1:]
	var types []*schema.Node
	for _, c := range inst.Type.Inherited() {
		if !c.Abstract {
			types = append(types, c)
		}
	}
	return p.counts(inst.Type, types, func(counts []int) bool {
		next := make([]*solver.Instance, len(rest), len(rest)+len(types))
		copy(next, rest)
		inst.Children = nil
		for i, t := range types {
			for range counts[i] {
				c := &solver.Instance{Type: t}
				inst.Children = append(inst.Children, c)
				next = append(next, c)
			}
		}
		ok := p.expand(next, done)
		inst.Children = nil
		return ok
	})
}

// bounds returns the cardinality range of a child type. Unbounded
// cardinalities are capped by the scope.
func (p *plan) bounds(t *schema.Node) (int, int) {
	lo, hi := t.Card.Low, t.Card.High
	if hi == schema.Unbounded {
		hi = max(lo, p.scope.CardOf(t.Name))
	}
	return lo, hi
}

// counts calls fn with every vector of child counts allowed for parent.
func (p *plan) counts(parent *schema.Node, types []*schema.Node, fn func([]int) bool) bool {
	c := make([]int, len(types))
	var rec func(i, total int) bool
	rec = func(i, total int) bool {
		if i == len(types) {
			if parent.Group != nil && !parent.Group.Contains(total) {
				return true
			}
			return fn(c)
		}
		lo, hi := p.bounds(types[i])
		for n := lo; n <= hi; n++ {
			c[i] = n
			if !rec(i+1, total+n) {
				return false
			}
		}
		return true
	}
	return rec(0, 0)
}

// binding is a rule together with the instances it is checked on.
type binding struct {
	rule   *rule
	owners []*solver.Instance
}

// assign enumerates the reference values of a complete structure and yields
// every assignment that satisfies all constraints.
func (p *plan) assign(ctx context.Context, root *solver.Instance, errp *error, yield func(*solver.Model) bool) bool {
	var all []*solver.Instance
	for _, c := range root.Children {
		c.Walk(func(i *solver.Instance) { all = append(all, i) })
	}
	e := &env{all: all}
	var checks []binding
	for _, r := range p.rules {
		b := binding{rule: r}
		if r.owner == p.model.Root {
			b.owners = []*solver.Instance{root}
		} else {
			for _, i := range all {
				if i.Type.IsA(r.owner) {
					b.owners = append(b.owners, i)
				}
			}
		}
		if r.structural {
			for _, o := range b.owners {
				if !e.holds(o, r.expr) {
					return true
				}
			}
			continue
		}
		checks = append(checks, b)
	}
	fixed, ok := p.fixed(e, checks)
	if !ok {
		return true
	}
	var (
		slots   []*solver.Instance
		domains [][]any
	)
	for _, i := range all {
		if i.Type.Ref == nil {
			continue
		}
		slots = append(slots, i)
		if v, ok := fixed[i]; ok {
			domains = append(domains, []any{v})
		} else {
			domains = append(domains, p.domain(i.Type.Ref, all))
		}
	}
	var rec func(k int) bool
	rec = func(k int) bool {
		if k == len(slots) {
			if err := ctx.Err(); err != nil {
				*errp = err
				return false
			}
			for _, b := range checks {
				for _, o := range b.owners {
					if !e.holds(o, b.rule.expr) {
						return true
					}
				}
			}
			return yield(snapshot(root))
		}
		for _, v := range domains[k] {
			slots[k].Ref = v
			if !rec(k + 1) {
				slots[k].Ref = nil
				return false
			}
		}
		slots[k].Ref = nil
		return true
	}
	return rec(0)
}

// fixed collects the values pinned by constraints of the form
// this.a.b.ref == constant. It reports false when two constraints pin the
// same instance to different values.
func (p *plan) fixed(e *env, checks []binding) (map[*solver.Instance]any, bool) {
	fixed := make(map[*solver.Instance]any)
	for _, b := range checks {
		cmp, ok := b.rule.expr.(ql.CompareExpr)
		if !ok || cmp.Op != ql.OpEQ {
			continue
		}
		ref, ok := cmp.Left.(ql.JoinRefExpr)
		if !ok || !pureChain(ref.Set) {
			continue
		}
		c, ok := cmp.Right.(ql.ConstantExpr)
		if !ok {
			continue
		}
		for _, o := range b.owners {
			for _, x := range e.set(o, ref.Set) {
				i, ok := x.(*solver.Instance)
				if !ok || i.Type.Ref == nil || !i.Type.Ref.IsPrimitive() {
					continue
				}
				if v, ok := fixed[i]; ok && v != c.Value {
					return nil, false
				}
				fixed[i] = c.Value
			}
		}
	}
	return fixed, true
}

// pureChain reports whether s is this followed by zero or more joins.
func pureChain(s ql.Set) bool {
	for {
		switch x := s.(type) {
		case ql.ThisExpr:
			return true
		case ql.JoinExpr:
			s = x.Left
		default:
			return false
		}
	}
}

// domain returns the candidate values of an unpinned reference.
func (p *plan) domain(ref *schema.Ref, all []*solver.Instance) []any {
	if ref.Target != nil {
		var d []any
		for _, i := range all {
			if !i.Type.Abstract && i.Type.IsA(ref.Target) {
				d = append(d, i)
			}
		}
		return d
	}
	switch ref.Primitive {
	case schema.Int:
		d := make([]any, 0, p.scope.IntHigh-p.scope.IntLow+1)
		for n := p.scope.IntLow; n <= p.scope.IntHigh; n++ {
			d = append(d, n)
		}
		return d
	case schema.Bool:
		return []any{false, true}
	case schema.String:
		return []any{""}
	}
	return nil
}

// snapshot deep-copies the solution rooted at root and numbers instances
// per type in preorder.
func snapshot(root *solver.Instance) *solver.Model {
	copies := make(map[*solver.Instance]*solver.Instance)
	ids := make(map[*schema.Node]int)
	var clone func(*solver.Instance) *solver.Instance
	clone = func(i *solver.Instance) *solver.Instance {
		c := &solver.Instance{Type: i.Type, ID: ids[i.Type], Ref: i.Ref}
		ids[i.Type]++
		copies[i] = c
		for _, x := range i.Children {
			c.Children = append(c.Children, clone(x))
		}
		return c
	}
	m := &solver.Model{}
	for _, c := range root.Children {
		m.Top = append(m.Top, clone(c))
	}
	for _, c := range copies {
		if ref, ok := c.Ref.(*solver.Instance); ok {
			c.Ref = copies[ref]
		}
	}
	return m
}
