// Package querylanguage provides the constraint expressions attached to
// feature model nodes.
//
// Set expressions evaluate to sets of instances or primitive values; boolean
// expressions combine them. Every expression renders to a canonical string:
//
//	EQ(JoinRef(Join(This(), keySize)), Constant(128)).String()
//	// this.c0_keySize.ref == 128
package querylanguage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/featgen/schema"
)

// Set is a set-valued expression.
type Set interface {
	fmt.Stringer
	set()
}

// Bool is a boolean expression. Every Bool satisfies schema.Constraint.
type Bool interface {
	fmt.Stringer
	boolean()
}

// Op is a comparison operator.
type Op int

// Comparison operators.
const (
	OpEQ Op = iota
	OpLT
	OpGT
	OpLTE
	OpGTE
)

var ops = [...]string{
	OpEQ:  "==",
	OpLT:  "<",
	OpGT:  ">",
	OpLTE: "<=",
	OpGTE: ">=",
}

// String returns the operator in its rendered form.
func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(ops) {
		return ops[o]
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// ParseOp maps a user facing operator ("=", "<", ">", "<=", ">=") to Op.
func ParseOp(s string) (Op, bool) {
	switch s {
	case "=", "==":
		return OpEQ, true
	case "<":
		return OpLT, true
	case ">":
		return OpGT, true
	case "<=":
		return OpLTE, true
	case ">=":
		return OpGTE, true
	}
	return 0, false
}

type (
	// ThisExpr is the instance a constraint is evaluated on.
	ThisExpr struct{}

	// JoinExpr selects the children of type Node of every instance in Left.
	JoinExpr struct {
		Left Set
		Node *schema.Node
	}

	// JoinRefExpr dereferences every element of Set.
	JoinRefExpr struct {
		Set Set
	}

	// GlobalExpr is the set of all instances of Node and its subtypes.
	GlobalExpr struct {
		Node *schema.Node
	}

	// ConstantExpr is a singleton primitive value.
	ConstantExpr struct {
		Value any
	}

	// UnionExpr is the union of its operands.
	UnionExpr struct {
		Sets []Set
	}

	// MinExpr is the smallest integer of Set.
	MinExpr struct {
		Set Set
	}

	// LocalExpr is a variable bound by a quantifier.
	LocalExpr struct {
		Name string
	}
)

func (ThisExpr) set()     {}
func (JoinExpr) set()     {}
func (JoinRefExpr) set()  {}
func (GlobalExpr) set()   {}
func (ConstantExpr) set() {}
func (UnionExpr) set()    {}
func (MinExpr) set()      {}
func (LocalExpr) set()    {}

// This returns the expression for the constrained instance.
func This() ThisExpr { return ThisExpr{} }

// Join returns left.node.
func Join(left Set, node *schema.Node) JoinExpr { return JoinExpr{Left: left, Node: node} }

// JoinRef returns s.ref.
func JoinRef(s Set) JoinRefExpr { return JoinRefExpr{Set: s} }

// Global returns all instances of n.
func Global(n *schema.Node) GlobalExpr { return GlobalExpr{Node: n} }

// Constant returns a constant int, string or bool.
func Constant(v any) ConstantExpr { return ConstantExpr{Value: v} }

// Union returns the union of the given sets. A single set is returned as is.
func Union(sets ...Set) Set {
	if len(sets) == 1 {
		return sets[0]
	}
	return UnionExpr{Sets: sets}
}

// Min returns the minimum of s.
func Min(s Set) MinExpr { return MinExpr{Set: s} }

// Local returns a reference to a quantified variable.
func Local(name string) LocalExpr { return LocalExpr{Name: name} }

func (ThisExpr) String() string { return "this" }

func (e JoinExpr) String() string { return e.Left.String() + "." + e.Node.Name }

func (e JoinRefExpr) String() string { return e.Set.String() + ".ref" }

func (e GlobalExpr) String() string { return "global(" + e.Node.Name + ")" }

func (e ConstantExpr) String() string {
	if s, ok := e.Value.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(e.Value)
}

func (e UnionExpr) String() string {
	parts := make([]string, len(e.Sets))
	for i, s := range e.Sets {
		parts[i] = s.String()
	}
	return "union(" + strings.Join(parts, ", ") + ")"
}

func (e MinExpr) String() string { return "min(" + e.Set.String() + ")" }

func (e LocalExpr) String() string { return e.Name }

type (
	// CompareExpr compares two sets with Op.
	CompareExpr struct {
		Op          Op
		Left, Right Set
	}

	// InExpr holds when Left is a subset of Right.
	InExpr struct {
		Left, Right Set
	}

	// AndExpr is the conjunction of its operands.
	AndExpr struct {
		Exprs []Bool
	}

	// SomeExpr holds when Set is not empty.
	SomeExpr struct {
		Set Set
	}

	// AllExpr holds when Body holds for every element of Over bound to Local.
	AllExpr struct {
		Local LocalExpr
		Over  Set
		Body  Bool
	}
)

func (CompareExpr) boolean() {}
func (InExpr) boolean()      {}
func (AndExpr) boolean()     {}
func (SomeExpr) boolean()    {}
func (AllExpr) boolean()     {}

// Compare returns left <op> right.
func Compare(op Op, left, right Set) CompareExpr {
	return CompareExpr{Op: op, Left: left, Right: right}
}

// EQ returns left == right.
func EQ(left, right Set) CompareExpr { return Compare(OpEQ, left, right) }

// LT returns left < right.
func LT(left, right Set) CompareExpr { return Compare(OpLT, left, right) }

// GT returns left > right.
func GT(left, right Set) CompareExpr { return Compare(OpGT, left, right) }

// LTE returns left <= right.
func LTE(left, right Set) CompareExpr { return Compare(OpLTE, left, right) }

// GTE returns left >= right.
func GTE(left, right Set) CompareExpr { return Compare(OpGTE, left, right) }

// In returns left in right.
func In(left, right Set) InExpr { return InExpr{Left: left, Right: right} }

// And returns the conjunction of exprs. A single operand is returned as is.
func And(exprs ...Bool) Bool {
	if len(exprs) == 1 {
		return exprs[0]
	}
	return AndExpr{Exprs: exprs}
}

// Some returns some s.
func Some(s Set) SomeExpr { return SomeExpr{Set: s} }

// All returns all local : over | body.
func All(local LocalExpr, over Set, body Bool) AllExpr {
	return AllExpr{Local: local, Over: over, Body: body}
}

func (e CompareExpr) String() string {
	return e.Left.String() + " " + e.Op.String() + " " + e.Right.String()
}

func (e InExpr) String() string { return e.Left.String() + " in " + e.Right.String() }

func (e AndExpr) String() string {
	parts := make([]string, len(e.Exprs))
	for i, x := range e.Exprs {
		parts[i] = x.String()
	}
	s := strings.Join(parts, " && ")
	if len(parts) > 2 {
		return "(" + s + ")"
	}
	return s
}

func (e SomeExpr) String() string { return "some " + e.Set.String() }

func (e AllExpr) String() string {
	return "all " + e.Local.String() + " : " + e.Over.String() + " | " + e.Body.String()
}
