package load

import (
	"fmt"
	"sort"
	"strings"

	"github.com/syssam/featgen"
	ql "github.com/syssam/featgen/querylanguage"
	"github.com/syssam/featgen/schema"
)

// builder carries the state of a single Build call.
type builder struct {
	model  *schema.Model
	byName map[string][]*schema.Node
	errs   []error
}

// Build creates a fresh schema.Model from the declaration. The declaration
// is not modified, so Build may be called repeatedly to obtain independent
// models.
func (m *Model) Build() (*schema.Model, error) {
	b := &builder{model: schema.NewModel(), byName: make(map[string][]*schema.Node)}
	if s := m.Scope; s != nil {
		b.model.Scope = &schema.Scope{
			Default: s.Default,
			IntLow:  s.IntLow,
			IntHigh: s.IntHigh,
			Cards:   make(map[string]int, len(s.Cards)),
		}
		for k, v := range s.Cards {
			b.model.Scope.Cards[k] = v
		}
	}
	type pending struct {
		decl *Node
		node *schema.Node
	}
	var all []pending
	var declare func(parent *schema.Node, decls []*Node)
	declare = func(parent *schema.Node, decls []*Node) {
		for _, d := range decls {
			if d.Name == "" {
				b.errorf("node under %s has no name", parent.Name)
				continue
			}
			if parent.Child(d.Name) != nil {
				b.errorf("duplicate node %q under %s", d.Name, parent.Name)
				continue
			}
			n := parent.AddChild(d.Name)
			if d.Abstract {
				if !parent.IsRoot() {
					b.errorf("abstract node %q must be declared at the top level", d.Name)
				}
				n.Abstract = true
				n.Card = schema.Card{Low: 0, High: schema.Unbounded}
			}
			if d.Card != nil {
				n.WithCard(d.Card.Low, d.Card.High)
			}
			if d.Group != nil {
				n.WithGroupCard(d.Group.Low, d.Group.High)
			}
			b.byName[d.Name] = append(b.byName[d.Name], n)
			all = append(all, pending{decl: d, node: n})
			declare(n, d.Children)
		}
	}
	declare(b.model.Root, m.Nodes)

	for _, p := range all {
		b.link(p.decl, p.node)
	}
	for _, p := range all {
		b.constrain(p.decl, p.node)
	}
	for _, t := range m.Tasks {
		if n := b.model.Top(t.Name); n == nil || n.Abstract {
			b.errorf("task %q is not a concrete top-level node", t.Name)
		}
	}
	if err := featgen.NewAggregateError(b.errs...); err != nil {
		return nil, err
	}
	return b.model, nil
}

func (b *builder) errorf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf("load: "+format, args...))
}

// lookup resolves a type name declared anywhere in the model.
func (b *builder) lookup(name, from string) (*schema.Node, error) {
	switch nodes := b.byName[name]; len(nodes) {
	case 0:
		return nil, featgen.NewNotFoundError(name, from)
	case 1:
		return nodes[0], nil
	default:
		return nil, featgen.NewAmbiguousError(name, from, len(nodes))
	}
}

func (b *builder) link(d *Node, n *schema.Node) {
	if d.Extends != "" {
		super, err := b.lookup(d.Extends, d.Name)
		switch {
		case err != nil:
			b.errs = append(b.errs, err)
		case !super.Abstract:
			b.errorf("%s extends concrete node %s", d.Name, super.Name)
		case super.IsA(n):
			b.errorf("%s extends %s in a cycle", d.Name, super.Name)
		default:
			n.Extends(super)
		}
	}
	if d.Ref == "" {
		return
	}
	if p, ok := schema.ParsePrimitive(d.Ref); ok {
		n.RefPrimitive(p)
		return
	}
	target, err := b.lookup(d.Ref, d.Name)
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	n.RefTo(target)
}

func (b *builder) constrain(d *Node, n *schema.Node) {
	if d.Value != nil {
		v, err := constant(d.Value)
		if err != nil {
			b.errorf("%s: %v", d.Name, err)
		} else {
			n.AddConstraint(ql.EQ(ql.JoinRef(ql.This()), ql.Constant(v)))
		}
	}
	keys := make([]string, 0, len(d.Values))
	for k := range d.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		chain, err := b.chain(n, k)
		if err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		v, err := constant(d.Values[k])
		if err != nil {
			b.errorf("%s.%s: %v", d.Name, k, err)
			continue
		}
		n.AddConstraint(ql.EQ(ql.JoinRef(chain), ql.Constant(v)))
	}
	for _, path := range d.Some {
		chain, err := b.chain(n, path)
		if err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		n.AddConstraint(ql.Some(chain))
	}
}

// chain resolves a dotted path of attribute names into this.a.b...
func (b *builder) chain(n *schema.Node, path string) (ql.Set, error) {
	var (
		set ql.Set = ql.This()
		cur        = n
	)
	for _, name := range strings.Split(path, ".") {
		next, err := schema.FindByName(cur, name)
		if err != nil {
			return nil, fmt.Errorf("load: %s: path %q: %w", n.Name, path, err)
		}
		set = ql.Join(set, next)
		cur = next
	}
	return set, nil
}
