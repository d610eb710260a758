// Package directive parses the operator/value pairs carried by answer
// dependencies and property constraints into a typed form.
//
// The grammar is:
//
//	directive := cmp value | "++" names | "|" clauses
//	cmp       := "=" | "<" | ">" | "<=" | ">="
//	value     := int | "min(" path {"," path} ")" | path | token
//	path      := name "." name
//	names     := name {";" name}
//	clauses   := cmp name {";" cmp name}
package directive

import (
	"strconv"
	"strings"

	"github.com/syssam/featgen"
	"github.com/syssam/featgen/querylanguage"
)

// Operators that are not comparisons.
const (
	OpUnion   = "++"
	OpClauses = "|"
	OpCreate  = "->"
)

// Value is the parsed right-hand side of a directive.
type Value interface {
	// Raw returns the value as supplied.
	Raw() string
	value()
}

type (
	// Int is an integer literal.
	Int struct {
		N   int
		raw string
	}

	// Path is a dotted pair "a.b".
	Path struct {
		Head, Tail string
		raw        string
	}

	// Min is the aggregate "min(a.b, c.d, ...)".
	Min struct {
		Paths []Path
		raw   string
	}

	// Token is a bare name with no dot.
	Token struct {
		Name string
	}

	// Names is the ";"-separated list of a "++" directive.
	Names struct {
		List []string
		raw  string
	}

	// Clause is one "<cmp> <name>" element of a "|" directive.
	Clause struct {
		Op   querylanguage.Op
		Name string
	}

	// Clauses is the ";"-separated list of a "|" directive.
	Clauses struct {
		List []Clause
		raw  string
	}
)

func (v Int) Raw() string     { return v.raw }
func (v Path) Raw() string    { return v.raw }
func (v Min) Raw() string     { return v.raw }
func (v Token) Raw() string   { return v.Name }
func (v Names) Raw() string   { return v.raw }
func (v Clauses) Raw() string { return v.raw }

func (Int) value()     {}
func (Path) value()    {}
func (Min) value()     {}
func (Token) value()   {}
func (Names) value()   {}
func (Clauses) value() {}

// Directive is a parsed operator/value pair.
type Directive struct {
	// Operator is the operator as supplied.
	Operator string
	// Op is the comparison operator. Valid only when Compare is true.
	Op querylanguage.Op
	// Compare reports whether Operator is a comparison.
	Compare bool
	Value   Value
}

// Parse parses an operator/value pair. Structural "->" directives are not
// handled here.
func Parse(operator, value string) (*Directive, error) {
	d := &Directive{Operator: operator}
	switch operator {
	case OpUnion:
		names, err := parseNames(value)
		if err != nil {
			return nil, featgen.NewDirectiveError(operator, value, err.Error())
		}
		d.Value = names
	case OpClauses:
		clauses, err := parseClauses(value)
		if err != nil {
			return nil, featgen.NewDirectiveError(operator, value, err.Error())
		}
		d.Value = clauses
	default:
		op, ok := querylanguage.ParseOp(operator)
		if !ok || operator == "==" {
			return nil, featgen.NewDirectiveError(operator, value, "unsupported operator")
		}
		v, err := parseValue(value)
		if err != nil {
			return nil, featgen.NewDirectiveError(operator, value, err.Error())
		}
		d.Op, d.Compare, d.Value = op, true, v
	}
	return d, nil
}

type syntaxError string

func (e syntaxError) Error() string { return string(e) }

func parseValue(s string) (Value, error) {
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return Int{N: int(n), raw: s}, nil
	}
	if strings.HasPrefix(s, "min(") {
		if !strings.HasSuffix(s, ")") {
			return nil, syntaxError("unterminated min(")
		}
		m := Min{raw: s}
		for _, part := range strings.Split(s[len("min("):len(s)-1], ",") {
			p, err := parsePath(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			m.Paths = append(m.Paths, p)
		}
		return m, nil
	}
	if strings.Contains(s, ".") {
		return parsePath(s)
	}
	return Token{Name: s}, nil
}

func parsePath(s string) (Path, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Path{}, syntaxError("path " + strconv.Quote(s) + " must have the form a.b")
	}
	head, tail := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if head == "" || tail == "" {
		return Path{}, syntaxError("path " + strconv.Quote(s) + " has an empty segment")
	}
	return Path{Head: head, Tail: tail, raw: s}, nil
}

func parseNames(s string) (Names, error) {
	n := Names{raw: s}
	for _, name := range strings.Split(s, ";") {
		name = strings.TrimSpace(name)
		if name == "" {
			return Names{}, syntaxError("empty name in list")
		}
		n.List = append(n.List, name)
	}
	return n, nil
}

func parseClauses(s string) (Clauses, error) {
	c := Clauses{raw: s}
	for _, clause := range strings.Split(s, ";") {
		fields := strings.Fields(clause)
		if len(fields) != 2 {
			return Clauses{}, syntaxError("clause " + strconv.Quote(clause) + ` must have the form "<cmp> <name>"`)
		}
		op, ok := querylanguage.ParseOp(fields[0])
		if !ok || fields[0] == "==" {
			return Clauses{}, syntaxError("clause " + strconv.Quote(clause) + " has an unsupported operator")
		}
		c.List = append(c.List, Clause{Op: op, Name: fields[1]})
	}
	return c, nil
}
