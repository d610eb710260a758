package instance

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/featgen/schema"
	"github.com/syssam/featgen/solver"
)

func TestStringHash(t *testing.T) {
	tests := []struct {
		in   string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"ab", 3105},
		{"hello", 99162322},
		{"SHA-256", -1523887726},
		{"é", 233},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stringHash(tt.in), tt.in)
	}
}

func TestFingerprint(t *testing.T) {
	m := schema.NewModel()
	algo := m.Concrete("c0_algo")
	name := algo.AddChild("c0_name").RefPrimitive(schema.String)
	size := algo.AddChild("c0_size").RefPrimitive(schema.Int)
	flag := algo.AddChild("c0_flag").RefPrimitive(schema.Bool)
	mark := algo.AddChild("c0_mark")

	leaf := func(n *schema.Node, v any) *solver.Instance { return &solver.Instance{Type: n, Ref: v} }
	tests := []struct {
		name string
		inst *solver.Instance
		want int64
	}{
		{"Int", leaf(size, 128), 128},
		{"True", leaf(flag, true), 1231},
		{"False", leaf(flag, false), 1237},
		{"String", leaf(name, "ab"), 3105},
		{"NoValue", leaf(mark, nil), int64(stringHash("c0_mark"))},
		{"Reference", leaf(name, &solver.Instance{Type: algo}), int64(stringHash("c0_algo"))},
		{"Children", &solver.Instance{Type: algo, Children: []*solver.Instance{leaf(size, 2), leaf(size, 3)}}, 37 * 6},
		{"ZeroCollapses", &solver.Instance{Type: algo, Children: []*solver.Instance{leaf(size, 0), leaf(name, "ab")}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fingerprint(tt.inst))
			assert.Equal(t, Fingerprint(tt.inst), Fingerprint(tt.inst))
		})
	}

	t.Run("StructurallyEqual", func(t *testing.T) {
		build := func() *solver.Instance {
			return &solver.Instance{Type: algo, Children: []*solver.Instance{
				leaf(name, `"SHA256"`), leaf(size, 256), leaf(flag, true),
			}}
		}
		assert.Equal(t, Fingerprint(build()), Fingerprint(build()))
	})
}

func TestRankRecovers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := schema.NewModel()
	task := m.Concrete("c0_Task")
	level := task.AddChild("c0_security").RefPrimitive(schema.Int)

	a := &solver.Instance{Type: task, Children: []*solver.Instance{{Type: level, Ref: 1}}}
	broken := &solver.Instance{Type: task, Children: []*solver.Instance{{Ref: 9}}}
	b := &solver.Instance{Type: task, Children: []*solver.Instance{{Type: level, Ref: 3}}}
	in := []*solver.Instance{a, broken, b}

	ranked := rank(logger, in)
	require.Len(t, ranked, 3)
	assert.Equal(t, in, ranked)
	assert.Contains(t, buf.String(), "instances not sorted by security level")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestDisplayName(t *testing.T) {
	m := schema.NewModel()
	algo := m.Concrete("c0_algo")
	name := algo.AddChild("c0_name").RefPrimitive(schema.String)
	desc := algo.AddChild("c0_description").RefPrimitive(schema.String)
	status := algo.AddChild("c0_status")
	secure := status.AddChild("c0_secure")
	task := m.Concrete("c0_Task")
	alg := task.AddChild("c0_alg").RefTo(algo)
	self := task.AddChild("c0_self").RefTo(task)

	sha := &solver.Instance{Type: algo, Children: []*solver.Instance{
		{Type: name, Ref: `"SHA-256"`},
		{Type: desc, Ref: `"digest"`},
		{Type: status, Children: []*solver.Instance{{Type: secure}}},
	}}
	aes := &solver.Instance{Type: algo, Children: []*solver.Instance{{Type: name, Ref: `"AES"`}}}
	inst := &solver.Instance{Type: task, Children: []*solver.Instance{
		{Type: alg, Ref: sha},
		{Type: alg, Ref: aes},
	}}
	assert.Equal(t, "SHA-256+AES", DisplayName(inst))

	loop := &solver.Instance{Type: task}
	loop.Children = []*solver.Instance{{Type: self, Ref: loop}, {Type: alg, Ref: aes}}
	assert.Equal(t, "AES", DisplayName(loop))

	assert.Empty(t, DisplayName(&solver.Instance{Type: desc, Ref: `"x"`}))
}
