package gen

import (
	"fmt"
	"go/token"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/featgen/instance"
	"github.com/syssam/featgen/schema"
	"github.com/syssam/featgen/solver"
)

// Source provides named instances in rank order. *instance.Result
// implements it.
type Source interface {
	Ranked() []string
	Get(name string) (*solver.Instance, bool)
}

// File is a generated Go file.
type File struct {
	// Name is the file name relative to the target directory.
	Name string
	*jen.File
}

// Generator emits Go files for generated instances.
type Generator struct {
	cfg *Config
}

// New creates a Generator.
func New(opts ...Option) (*Generator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &Generator{cfg: cfg}, nil
}

// Config returns a copy of the generator configuration.
func (g *Generator) Config() Config {
	return *g.cfg
}

var featurePrefix = regexp.MustCompile(`^c\d+_`)

// Strip removes the "c<N>_" prefix of a feature name.
func Strip(feature string) string {
	return featurePrefix.ReplaceAllString(feature, "")
}

// TypeName returns the exported Go identifier of a feature.
func TypeName(feature string) string {
	if s := inflect.Camelize(Strip(feature)); token.IsIdentifier(s) {
		return s
	}
	return Ident(Strip(feature))
}

// Ident converts a display name such as "PBKDF+SHA-256+AES" into an
// exported Go identifier ("PbkdfSha256Aes").
func Ident(name string) string {
	caser := cases.Title(language.English)
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, w := range words {
		b.WriteString(caser.String(w))
	}
	id := b.String()
	if id == "" || !unicode.IsLetter([]rune(id)[0]) {
		id = "Instance" + id
	}
	return id
}

// field is a struct field of a generated task type.
type field struct {
	feature string
	ident   string
	kind    schema.Primitive
	many    bool
}

func (f *field) typ() jen.Code {
	var c *jen.Statement
	switch f.kind {
	case schema.Int:
		c = jen.Int()
	case schema.Bool:
		c = jen.Bool()
	default:
		c = jen.String()
	}
	if f.many {
		return jen.Index().Add(c)
	}
	return c
}

// Task renders the instances of src as a file for the task type.
func (g *Generator) Task(task *schema.Node, src Source) (*File, error) {
	names := src.Ranked()
	if len(names) == 0 {
		return nil, NewGenerationError(task.Name, "", "", ErrNoInstances)
	}
	insts := make([]*solver.Instance, len(names))
	for i, name := range names {
		inst, ok := src.Get(name)
		if !ok {
			return nil, NewGenerationError(task.Name, "", fmt.Sprintf("instance %q not found", name), nil)
		}
		insts[i] = inst
	}
	fields := collect(insts)
	typeName := TypeName(task.Name)
	file := &File{
		Name: inflect.Underscore(typeName) + ".go",
		File: jen.NewFile(g.cfg.Package),
	}
	f := file.File
	if g.cfg.Header != "" {
		f.HeaderComment(g.cfg.Header)
	}
	f.HeaderComment("Code generated by featgen. DO NOT EDIT.")

	f.Commentf("%s is a configuration of the %s task.", typeName, typeName)
	f.Type().Id(typeName).StructFunc(func(grp *jen.Group) {
		for _, fd := range fields {
			grp.Id(fd.ident).Add(fd.typ())
		}
	})

	used := map[string]bool{typeName: true}
	idents := make([]string, len(names))
	for i, name := range names {
		id := unique(used, Ident(name))
		idents[i] = id
		f.Commentf("%s is %q.", id, name)
		f.Var().Id(id).Op("=").Id(typeName).Values(values(fields, insts[i]))
	}

	list := unique(used, inflect.Pluralize(typeName))
	f.Commentf("%s holds every %s configuration by display name.", list, typeName)
	f.Var().Id(list).Op("=").Map(jen.String()).Id(typeName).Values(jen.DictFunc(func(d jen.Dict) {
		for i, name := range names {
			d[jen.Lit(name)] = jen.Id(idents[i])
		}
	}))
	order := unique(used, typeName+"Names")
	f.Commentf("%s lists the display names by descending security level.", order)
	f.Var().Id(order).Op("=").Index().String().ValuesFunc(func(grp *jen.Group) {
		for _, name := range names {
			grp.Lit(name)
		}
	})
	return file, nil
}

// collect returns the fields of the task type in first-seen order.
func collect(insts []*solver.Instance) []*field {
	var (
		fields []*field
		index  = make(map[string]*field)
		idents = make(map[string]bool)
	)
	for _, inst := range insts {
		counts := make(map[string]int)
		for _, c := range inst.Children {
			counts[c.Type.Name]++
			fd, ok := index[c.Type.Name]
			if !ok {
				fd = &field{feature: c.Type.Name, kind: schema.String}
				if c.Type.Ref.IsPrimitive() {
					fd.kind = c.Type.Ref.Primitive
				}
				index[c.Type.Name] = fd
				fields = append(fields, fd)
			}
			if counts[c.Type.Name] > 1 {
				fd.many = true
			}
		}
	}
	for _, fd := range fields {
		name := TypeName(fd.feature)
		if fd.many {
			name = inflect.Pluralize(name)
		}
		fd.ident = unique(idents, name)
	}
	return fields
}

func values(fields []*field, inst *solver.Instance) jen.Dict {
	d := jen.Dict{}
	for _, fd := range fields {
		var vs []jen.Code
		for _, c := range inst.Children {
			if c.Type.Name != fd.feature {
				continue
			}
			if v := value(fd.kind, c); v != nil {
				vs = append(vs, v)
			}
		}
		switch {
		case len(vs) == 0:
		case fd.many:
			d[jen.Id(fd.ident)] = jen.Add(fd.typ()).Values(vs...)
		default:
			d[jen.Id(fd.ident)] = vs[0]
		}
	}
	return d
}

// value returns the literal held by c, or nil.
func value(kind schema.Primitive, c *solver.Instance) jen.Code {
	switch v := c.Ref.(type) {
	case int:
		if kind == schema.Int {
			return jen.Lit(v)
		}
		return jen.Lit(strconv.Itoa(v))
	case bool:
		if kind == schema.Bool {
			return jen.Lit(v)
		}
		return jen.Lit(strconv.FormatBool(v))
	case string:
		return jen.Lit(strings.Trim(v, `"`))
	case *solver.Instance:
		if name := instance.DisplayName(v); name != "" {
			return jen.Lit(name)
		}
		return jen.Lit(TypeName(v.Type.Name))
	}
	if kind != schema.String {
		return nil
	}
	if name := instance.DisplayName(c); name != "" {
		return jen.Lit(name)
	}
	return nil
}

// unique returns name, or name with the smallest numeric suffix not in used,
// and marks the result as used.
func unique(used map[string]bool, name string) string {
	id := name
	for n := 2; used[id]; n++ {
		id = name + strconv.Itoa(n)
	}
	used[id] = true
	return id
}
