package instance

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/syssam/featgen/solver"
)

// securityLevel returns the integer value of the first direct child whose
// type name contains "security", or -1.
func securityLevel(inst *solver.Instance) int {
	for _, c := range inst.Children {
		if !strings.Contains(c.Type.Name, "security") {
			continue
		}
		if n, ok := c.Ref.(int); ok {
			return n
		}
	}
	return -1
}

// rank returns the instances ordered by descending security level. Equal
// levels keep their order. If ranking fails the input order is returned.
func rank(logger *slog.Logger, insts []*solver.Instance) (ranked []*solver.Instance) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("instances not sorted by security level", "err", fmt.Errorf("%v", r))
			ranked = slices.Clone(insts)
		}
	}()
	ranked = slices.Clone(insts)
	slices.SortStableFunc(ranked, func(a, b *solver.Instance) int {
		return cmp.Compare(securityLevel(b), securityLevel(a))
	})
	return ranked
}

// DisplayName joins the names found depth first under inst with "+". A
// leaf whose type name ends with "_name" contributes its string value
// without quotes, and a leaf referencing another instance contributes that
// instance's name.
func DisplayName(inst *solver.Instance) string {
	return nameOf(inst, make(map[*solver.Instance]bool))
}

func nameOf(inst *solver.Instance, visiting map[*solver.Instance]bool) string {
	if visiting[inst] {
		return ""
	}
	visiting[inst] = true
	defer delete(visiting, inst)
	switch {
	case inst.HasChildren():
		var parts []string
		for _, c := range inst.Children {
			if s := nameOf(c, visiting); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "+")
	case inst.HasRef():
		switch v := inst.Ref.(type) {
		case *solver.Instance:
			return nameOf(v, visiting)
		case string:
			if strings.HasSuffix(inst.Type.Name, "_name") {
				return strings.ReplaceAll(v, `"`, "")
			}
		}
	}
	return ""
}

// names assigns unique display names to the ranked instances of the task
// type. It returns the names in assignment order.
func (g *Generator) names(ranked []*solver.Instance) (map[string]*solver.Instance, []string) {
	display := make(map[string]*solver.Instance)
	var order []string
	for _, inst := range ranked {
		base := DisplayName(inst)
		if base == "" || inst.Type != g.task {
			continue
		}
		name := base
		for n := 2; ; n++ {
			if _, taken := display[name]; !taken {
				break
			}
			name = fmt.Sprintf("%s(%02d)", base, n)
			g.lastCount = n
		}
		display[name] = inst
		order = append(order, name)
		g.lastName = base
	}
	return display, order
}
