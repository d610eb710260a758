// Package enum implements solver.Engine with a bounded backtracking
// enumerator.
//
// The search runs in two phases. The structure phase chooses, for every
// instance, how many children of each (inherited) child type it has, within
// the node cardinalities, group cardinalities and the scope. Constraints that
// do not dereference any value are checked as soon as a structure is
// complete. The value phase then assigns every reference: integers range over
// the scope's integer bounds, booleans over false and true, strings default
// to "" and node references range over the instances of the target type.
// Values fixed by a constraint of the form this.a.b.ref == constant are
// assigned directly and are not restricted to the integer bounds.
//
// Solutions are produced lazily, one per call to Session.Next.
package enum

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	ql "github.com/syssam/featgen/querylanguage"
	"github.com/syssam/featgen/schema"
	"github.com/syssam/featgen/solver"
)

// Engine is a solver.Engine that enumerates solutions by backtracking.
type Engine struct {
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// rule is a constraint together with the node that owns it.
type rule struct {
	owner      *schema.Node
	expr       ql.Bool
	structural bool
}

type plan struct {
	model *schema.Model
	scope schema.Scope
	rules []*rule
}

// Compile validates the model's constraints and returns a session over its
// solutions. The model must not be modified while the session is open.
func (e *Engine) Compile(ctx context.Context, m *schema.Model, scope schema.Scope) (solver.Session, error) {
	if m == nil || m.Root == nil {
		return nil, fmt.Errorf("enum: nil model")
	}
	if scope.IntLow > scope.IntHigh {
		return nil, fmt.Errorf("enum: empty integer range [%d, %d]", scope.IntLow, scope.IntHigh)
	}
	p := &plan{model: m, scope: scope}
	owners := append([]*schema.Node{m.Root}, m.Nodes()...)
	for _, n := range owners {
		for _, c := range n.Constraints {
			expr, ok := c.(ql.Bool)
			if !ok {
				return nil, fmt.Errorf("enum: %s: unsupported constraint %T", n.Name, c)
			}
			if err := validate(expr); err != nil {
				return nil, fmt.Errorf("enum: %s: %q: %w", n.Name, expr, err)
			}
			p.rules = append(p.rules, &rule{owner: n, expr: expr, structural: !derefs(expr)})
		}
	}
	e.logger.Debug("compiled model", "nodes", len(owners)-1, "constraints", len(p.rules))
	s := &session{}
	s.next, s.stop = iter.Pull(p.solutions(ctx, &s.err))
	return s, nil
}

type session struct {
	next   func() (*solver.Model, bool)
	stop   func()
	cur    *solver.Model
	err    error
	closed bool
}

func (s *session) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	m, ok := s.next()
	if !ok {
		s.cur = nil
		return false
	}
	s.cur = m
	return true
}

func (s *session) Current() *solver.Model { return s.cur }

func (s *session) Err() error { return s.err }

func (s *session) Close() error {
	if !s.closed {
		s.closed = true
		s.stop()
	}
	return nil
}

// solutions returns the lazy sequence of solutions. A cancelled context
// ends the sequence and is reported through errp.
func (p *plan) solutions(ctx context.Context, errp *error) iter.Seq[*solver.Model] {
	return func(yield func(*solver.Model) bool) {
		root := &solver.Instance{Type: p.model.Root}
		p.expand([]*solver.Instance{root}, func() bool {
			if err := ctx.Err(); err != nil {
				*errp = err
				return false
			}
			return p.assign(ctx, root, errp, yield)
		})
	}
}

// validate rejects expressions the evaluator cannot handle.
func validate(b ql.Bool) error {
	var set func(ql.Set) error
	set = func(s ql.Set) error {
		switch s := s.(type) {
		case ql.ThisExpr, ql.LocalExpr:
			return nil
		case ql.JoinExpr:
			if s.Node == nil {
				return fmt.Errorf("join with nil node")
			}
			return set(s.Left)
		case ql.JoinRefExpr:
			return set(s.Set)
		case ql.GlobalExpr:
			if s.Node == nil {
				return fmt.Errorf("global with nil node")
			}
			return nil
		case ql.ConstantExpr:
			switch s.Value.(type) {
			case int, string, bool:
				return nil
			}
			return fmt.Errorf("unsupported constant %T", s.Value)
		case ql.UnionExpr:
			for _, x := range s.Sets {
				if err := set(x); err != nil {
					return err
				}
			}
			return nil
		case ql.MinExpr:
			return set(s.Set)
		}
		return fmt.Errorf("unsupported set expression %T", s)
	}
	var boolean func(ql.Bool) error
	boolean = func(b ql.Bool) error {
		switch b := b.(type) {
		case ql.CompareExpr:
			if err := set(b.Left); err != nil {
				return err
			}
			return set(b.Right)
		case ql.InExpr:
			if err := set(b.Left); err != nil {
				return err
			}
			return set(b.Right)
		case ql.AndExpr:
			for _, x := range b.Exprs {
				if err := boolean(x); err != nil {
					return err
				}
			}
			return nil
		case ql.SomeExpr:
			return set(b.Set)
		case ql.AllExpr:
			if err := set(b.Over); err != nil {
				return err
			}
			return boolean(b.Body)
		}
		return fmt.Errorf("unsupported boolean expression %T", b)
	}
	return boolean(b)
}

// derefs reports whether the expression reads any reference value.
func derefs(b ql.Bool) bool {
	var set func(ql.Set) bool
	set = func(s ql.Set) bool {
		switch s := s.(type) {
		case ql.JoinRefExpr:
			return true
		case ql.JoinExpr:
			return set(s.Left)
		case ql.UnionExpr:
			for _, x := range s.Sets {
				if set(x) {
					return true
				}
			}
		case ql.MinExpr:
			return set(s.Set)
		}
		return false
	}
	switch b := b.(type) {
	case ql.CompareExpr:
		return set(b.Left) || set(b.Right)
	case ql.InExpr:
		return set(b.Left) || set(b.Right)
	case ql.AndExpr:
		for _, x := range b.Exprs {
			if derefs(x) {
				return true
			}
		}
	case ql.SomeExpr:
		return set(b.Set)
	case ql.AllExpr:
		return set(b.Over) || derefs(b.Body)
	}
	return false
}
