package enum

import (
	ql "github.com/syssam/featgen/querylanguage"
	"github.com/syssam/featgen/solver"
)

// env evaluates expressions over one candidate solution. Set elements are
// *solver.Instance, int, string or bool values.
type env struct {
	all    []*solver.Instance
	locals map[string]*solver.Instance
}

// holds evaluates b with this bound to the given instance.
func (e *env) holds(this *solver.Instance, b ql.Bool) bool {
	switch b := b.(type) {
	case ql.CompareExpr:
		l, r := e.set(this, b.Left), e.set(this, b.Right)
		if b.Op == ql.OpEQ {
			return subset(l, r) && subset(r, l)
		}
		ls, lok := sum(l)
		rs, rok := sum(r)
		if !lok || !rok {
			return false
		}
		switch b.Op {
		case ql.OpLT:
			return ls < rs
		case ql.OpGT:
			return ls > rs
		case ql.OpLTE:
			return ls <= rs
		case ql.OpGTE:
			return ls >= rs
		}
		return false
	case ql.InExpr:
		return subset(e.set(this, b.Left), e.set(this, b.Right))
	case ql.AndExpr:
		for _, x := range b.Exprs {
			if !e.holds(this, x) {
				return false
			}
		}
		return true
	case ql.SomeExpr:
		return len(e.set(this, b.Set)) > 0
	case ql.AllExpr:
		prev, bound := e.locals[b.Local.Name]
		defer func() {
			if bound {
				e.locals[b.Local.Name] = prev
			} else {
				delete(e.locals, b.Local.Name)
			}
		}()
		if e.locals == nil {
			e.locals = make(map[string]*solver.Instance)
		}
		for _, x := range e.set(this, b.Over) {
			i, ok := x.(*solver.Instance)
			if !ok {
				continue
			}
			e.locals[b.Local.Name] = i
			if !e.holds(this, b.Body) {
				return false
			}
		}
		return true
	}
	panic("enum: unexpected boolean expression")
}

// set evaluates s with this bound to the given instance. The result has no
// duplicates and keeps the order elements were found in.
func (e *env) set(this *solver.Instance, s ql.Set) []any {
	switch s := s.(type) {
	case ql.ThisExpr:
		return []any{this}
	case ql.LocalExpr:
		if i, ok := e.locals[s.Name]; ok {
			return []any{i}
		}
		return nil
	case ql.JoinExpr:
		var out []any
		for _, x := range e.set(this, s.Left) {
			i, ok := x.(*solver.Instance)
			if !ok {
				continue
			}
			for _, c := range i.Children {
				if c.Type == s.Node {
					out = append(out, c)
				}
			}
		}
		return out
	case ql.JoinRefExpr:
		var out []any
		for _, x := range e.set(this, s.Set) {
			switch x := x.(type) {
			case *solver.Instance:
				if x.Ref != nil {
					out = append(out, x.Ref)
				}
			default:
				out = append(out, x)
			}
		}
		return dedup(out)
	case ql.GlobalExpr:
		var out []any
		for _, i := range e.all {
			if i.Type.IsA(s.Node) {
				out = append(out, i)
			}
		}
		return out
	case ql.ConstantExpr:
		return []any{s.Value}
	case ql.UnionExpr:
		var out []any
		for _, x := range s.Sets {
			out = append(out, e.set(this, x)...)
		}
		return dedup(out)
	case ql.MinExpr:
		var (
			least int
			found bool
		)
		for _, x := range e.set(this, s.Set) {
			if n, ok := x.(int); ok && (!found || n < least) {
				least, found = n, true
			}
		}
		if !found {
			return nil
		}
		return []any{least}
	}
	panic("enum: unexpected set expression")
}

func dedup(xs []any) []any {
	if len(xs) < 2 {
		return xs
	}
	seen := make(map[any]bool, len(xs))
	out := xs[:0]
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

// subset reports whether every element of a is in b.
func subset(a, b []any) bool {
	for _, x := range a {
		found := false
		for _, y := range b {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sum adds the elements of an integer set. It reports false for an empty
// set or one holding anything but integers.
func sum(xs []any) (int, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	var total int
	for _, x := range xs {
		n, ok := x.(int)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}
