package instance_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/featgen"
	"github.com/syssam/featgen/instance"
	"github.com/syssam/featgen/question"
	"github.com/syssam/featgen/schema"
	"github.com/syssam/featgen/solver"
)

// script is an engine replaying fixed solutions.
type script struct {
	models     []*solver.Model
	loop       bool
	compileErr error
	nextErr    error
	// panics, when set, is raised by Next once the models are used up.
	panics     string
	scopes     []schema.Scope
	pulled     int
}

func (e *script) Compile(_ context.Context, _ *schema.Model, scope schema.Scope) (solver.Session, error) {
	e.scopes = append(e.scopes, scope)
	if e.compileErr != nil {
		return nil, e.compileErr
	}
	return &replay{e: e}, nil
}

type replay struct {
	e   *script
	i   int
	cur *solver.Model
}

func (r *replay) Next() bool {
	switch {
	case r.i < len(r.e.models):
		r.cur = r.e.models[r.i]
	case r.e.loop && len(r.e.models) > 0:
		r.cur = r.e.models[len(r.e.models)-1]
	case r.e.panics != "":
		panic(r.e.panics)
	default:
		return false
	}
	r.i++
	r.e.pulled++
	return true
}

func (r *replay) Current() *solver.Model { return r.cur }

func (r *replay) Err() error {
	if r.i >= len(r.e.models) {
		return r.e.nextErr
	}
	return nil
}

func (r *replay) Close() error { return nil }

type fixture struct {
	model *schema.Model
	task  *schema.Node
	name  *schema.Node
	level *schema.Node
	other *schema.Node
}

func newFixture() *fixture {
	m := schema.NewModel()
	task := m.Concrete("c0_Task")
	f := &fixture{
		model: m,
		task:  task,
		name:  task.AddChild("c0_name").RefPrimitive(schema.String),
		level: task.AddChild("c0_security").RefPrimitive(schema.Int),
		other: m.Concrete("c0_Other"),
	}
	return f
}

// solution returns a solution whose task instance is named name. A nil
// level omits the security child.
func (f *fixture) solution(name string, level any) *solver.Model {
	inst := &solver.Instance{Type: f.task}
	if name != "" {
		inst.Children = append(inst.Children, &solver.Instance{Type: f.name, Ref: `"` + name + `"`})
	}
	if level != nil {
		inst.Children = append(inst.Children, &solver.Instance{Type: f.level, Ref: level})
	}
	return &solver.Model{Top: []*solver.Instance{{Type: f.other}, inst}}
}

func (f *fixture) generator(t *testing.T, e solver.Engine, opts ...instance.Option) *instance.Generator {
	t.Helper()
	g, err := instance.New(f.model, "c0_Task", "Test", append([]instance.Option{instance.WithEngine(e)}, opts...)...)
	require.NoError(t, err)
	return g
}

func TestGenerateDistinct(t *testing.T) {
	f := newFixture()
	e := &script{}
	for _, name := range []string{"E", "C", "A", "D", "B"} {
		e.models = append(e.models, f.solution(name, nil))
	}
	g := f.generator(t, e)
	res := g.Generate(context.Background(), nil)
	require.NoError(t, res.Err())
	assert.Equal(t, 5, res.Len())
	assert.Equal(t, 5, g.InstanceCount())
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, res.Names())
	assert.Equal(t, []string{"E", "C", "A", "D", "B"}, res.Ranked())
	inst, ok := res.Get("C")
	require.True(t, ok)
	assert.Same(t, e.models[1].Top[1], inst)
	assert.Len(t, g.Instances(), 5)
}

func TestGenerateLimits(t *testing.T) {
	f := newFixture()
	distinct := func(n int) []*solver.Model {
		var ms []*solver.Model
		for i := range n {
			ms = append(ms, f.solution(fmt.Sprintf("A%03d", i), nil))
		}
		return ms
	}
	t.Run("DefaultMaxInstances", func(t *testing.T) {
		e := &script{models: distinct(150)}
		res := f.generator(t, e).Generate(context.Background(), nil)
		require.NoError(t, res.Err())
		assert.Equal(t, instance.DefaultMaxInstances, res.Len())
		assert.Equal(t, instance.DefaultMaxInstances, e.pulled)
	})
	t.Run("MaxInstances", func(t *testing.T) {
		e := &script{models: distinct(30)}
		res := f.generator(t, e, instance.WithMaxInstances(10)).Generate(context.Background(), nil)
		assert.Equal(t, 10, res.Len())
	})
	t.Run("Repeats", func(t *testing.T) {
		e := &script{models: distinct(3), loop: true}
		g := f.generator(t, e, instance.WithMaxRedundant(50))
		res := g.Generate(context.Background(), nil)
		require.NoError(t, res.Err())
		assert.Equal(t, 3, res.Len())
		assert.Equal(t, 53, e.pulled)
	})
	t.Run("DefaultMaxRedundant", func(t *testing.T) {
		e := &script{models: distinct(2), loop: true}
		res := f.generator(t, e).Generate(context.Background(), nil)
		assert.Equal(t, 2, res.Len())
		assert.Equal(t, 2+instance.DefaultMaxRedundant, e.pulled)
	})
	t.Run("EmptySolutions", func(t *testing.T) {
		e := &script{models: []*solver.Model{f.solution("A", nil), {}}, loop: true}
		res := f.generator(t, e, instance.WithMaxRedundant(5)).Generate(context.Background(), nil)
		require.NoError(t, res.Err())
		assert.Equal(t, []string{"A"}, res.Names())
		assert.Equal(t, 6, e.pulled)
	})
	t.Run("RepeatCounterResets", func(t *testing.T) {
		ms := distinct(3)
		e := &script{models: []*solver.Model{ms[0], ms[0], ms[0], ms[1], ms[1], ms[1], ms[2]}}
		res := f.generator(t, e, instance.WithMaxRedundant(3)).Generate(context.Background(), nil)
		assert.Equal(t, 3, res.Len())
	})
	t.Run("Duplicates", func(t *testing.T) {
		e := &script{models: []*solver.Model{f.solution("A", 1), f.solution("A", 1), f.solution("A", 2)}}
		g := f.generator(t, e)
		res := g.Generate(context.Background(), nil)
		assert.Equal(t, 2, g.InstanceCount())
		assert.Equal(t, []string{"A", "A(02)"}, res.Names())

		res = g.Generate(context.Background(), nil)
		assert.Equal(t, 2, g.InstanceCount(), "instances are kept across calls")
		assert.Equal(t, 2, res.Len())
	})
}

func TestNaming(t *testing.T) {
	f := newFixture()
	t.Run("Collision", func(t *testing.T) {
		e := &script{models: []*solver.Model{f.solution("SHA256", 1), f.solution("SHA256", 3), f.solution("MD5", 2)}}
		g := f.generator(t, e)
		res := g.Generate(context.Background(), nil)
		assert.Equal(t, []string{"MD5", "SHA256", "SHA256(02)"}, res.Names())
		first, _ := res.Get("SHA256")
		second, _ := res.Get("SHA256(02)")
		assert.NotSame(t, first, second)
		assert.Equal(t, 3, first.Children[1].Ref)
		assert.Equal(t, "SHA256", g.LastName())
		assert.Equal(t, 2, g.LastCount())
	})
	t.Run("Unnamed", func(t *testing.T) {
		e := &script{models: []*solver.Model{f.solution("", 4), f.solution("AES", nil)}}
		g := f.generator(t, e)
		res := g.Generate(context.Background(), nil)
		assert.Equal(t, 2, g.InstanceCount())
		assert.Equal(t, []string{"AES"}, res.Names())
		assert.Equal(t, []string{"AES"}, res.Ranked(), "an unnamed instance takes no slot")
		assert.Equal(t, "AES", g.LastName())
	})
	t.Run("OtherType", func(t *testing.T) {
		other := &solver.Instance{Type: f.other, Children: []*solver.Instance{{Type: f.name, Ref: `"X"`}}}
		e := &script{models: []*solver.Model{{Top: []*solver.Instance{other}}, {}}}
		g := f.generator(t, e)
		res := g.Generate(context.Background(), nil)
		assert.Equal(t, 1, g.InstanceCount())
		assert.Zero(t, res.Len())
	})
}

func TestRanking(t *testing.T) {
	f := newFixture()
	e := &script{models: []*solver.Model{f.solution("A", 1), f.solution("B", nil), f.solution("C", 3)}}
	res := f.generator(t, e).Generate(context.Background(), nil)
	require.Equal(t, []string{"C", "A", "B"}, res.Ranked())
	var levels []any
	for _, name := range res.Ranked() {
		inst, _ := res.Get(name)
		var level any = -1
		if len(inst.Children) > 1 {
			level = inst.Children[1].Ref
		}
		levels = append(levels, level)
	}
	assert.Equal(t, []any{3, 1, -1}, levels)
}

func TestGenerateConstraints(t *testing.T) {
	f := newFixture()
	algo := f.model.Abstract("c0_Algorithm")
	algos := f.model.Concrete("c0_Algorithms")
	algos.AddChild("c0_aes").Extends(algo)
	f.task.AddChild("c0_cipher").RefTo(algo)

	q1 := &question.Question{ID: 1, Text: "level", Answers: []*question.Answer{{
		Value:        "high",
		Dependencies: []*question.Dependency{{Algorithm: "c0_security", Operator: "=", Value: "3"}},
	}}}
	q0 := &question.Question{ID: 0, Text: "extra", Answers: []*question.Answer{{
		Value:        "yes",
		Dependencies: []*question.Dependency{{Algorithm: "c0_extra", Operator: "->", Value: "c0_Algorithm"}},
	}}}
	e := &script{models: []*solver.Model{f.solution("A", 3)}}
	g := f.generator(t, e)
	res := g.Generate(context.Background(), map[*question.Question]*question.Answer{
		q1: q1.Answers[0],
		q0: q0.Answers[0],
	})
	require.NoError(t, res.Err())

	require.Len(t, f.level.Constraints, 1)
	assert.Equal(t, "this.ref == 3", f.level.Constraints[0].String())
	extra := f.task.Child("c0_extra")
	require.NotNil(t, extra)
	assert.Same(t, algo, extra.Ref.Target)

	t.Run("ConstrainError", func(t *testing.T) {
		q := &question.Question{ID: 2, Answers: []*question.Answer{{
			Dependencies: []*question.Dependency{{Algorithm: "c0_missing", Operator: "=", Value: "1"}},
		}}}
		res := g.Generate(context.Background(), map[*question.Question]*question.Answer{q: q.Answers[0]})
		require.Error(t, res.Err())
		assert.True(t, featgen.IsNotFound(res.Err()))
		var genErr *featgen.GenerationError
		require.ErrorAs(t, res.Err(), &genErr)
		assert.Equal(t, instance.PhaseConstrain, genErr.Phase)
		assert.Equal(t, []string{"A"}, res.Names(), "earlier instances survive a failed call")
	})
	t.Run("InvalidOperator", func(t *testing.T) {
		q := &question.Question{ID: 3, Answers: []*question.Answer{{
			Dependencies: []*question.Dependency{{Algorithm: "c0_security", Operator: "!=", Value: "1"}},
		}}}
		res := g.Generate(context.Background(), map[*question.Question]*question.Answer{q: q.Answers[0]})
		assert.True(t, featgen.IsDirectiveError(res.Err()))
	})
}

func TestGenerateAdvanced(t *testing.T) {
	f := newFixture()
	algo := f.model.Abstract("c0_Algorithm")
	size := algo.AddChild("c0_keySize").RefPrimitive(schema.Int)
	f.model.Concrete("c0_Algorithms").AddChild("c0_aes").Extends(algo)
	cipher := f.task.AddChild("c0_cipher").RefTo(algo)

	e := &script{}
	for _, name := range []string{"A", "B", "C", "D"} {
		e.models = append(e.models, f.solution(name, nil))
	}
	g := f.generator(t, e, instance.WithMaxInstances(2))
	res := g.GenerateAdvanced(context.Background(), []question.PropertyConstraint{
		{Parent: "c0_cipher", Child: "c0_keySize", Operator: ">=", Value: "128", Enabled: true},
		{Parent: "c0_cipher", Child: "c0_keySize", Operator: "<", Value: "512", Enabled: false},
		{Parent: "c0_cipher", Child: "c0_keySize", Operator: "=", Value: "1", Enabled: true, GroupConstraint: true},
		{Parent: "c0_cipher", Child: "c0_Algorithm", Operator: "=", Value: "1", Enabled: true},
	})
	require.NoError(t, res.Err())
	assert.Equal(t, 4, res.Len(), "the advanced flow is not capped")
	require.Len(t, cipher.Constraints, 1)
	assert.Equal(t, "this.ref.c0_keySize.ref >= 128", cipher.Constraints[0].String())
	assert.Empty(t, size.Constraints)

	res = g.GenerateAdvanced(context.Background(), []question.PropertyConstraint{
		{Parent: "c0_cipher", Child: "c0_missing", Operator: "=", Value: "1", Enabled: true},
	})
	assert.True(t, featgen.IsNotFound(res.Err()))
	assert.Equal(t, 4, res.Len())
}

func TestGenerateFailures(t *testing.T) {
	f := newFixture()
	t.Run("Compile", func(t *testing.T) {
		e := &script{compileErr: errors.New("unsatisfiable")}
		res := f.generator(t, e).Generate(context.Background(), nil)
		require.Error(t, res.Err())
		assert.True(t, featgen.IsSolveError(res.Err()))
		assert.True(t, featgen.IsGenerationError(res.Err()))
		assert.Zero(t, res.Len())
	})
	t.Run("Next", func(t *testing.T) {
		e := &script{models: []*solver.Model{f.solution("A", nil)}, nextErr: errors.New("model finder limit")}
		res := f.generator(t, e).Generate(context.Background(), nil)
		assert.True(t, featgen.IsSolveError(res.Err()))
		assert.Equal(t, []string{"A"}, res.Names())
	})
	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e := &script{models: []*solver.Model{f.solution("A", nil)}}
		res := f.generator(t, e).Generate(ctx, nil)
		assert.ErrorIs(t, res.Err(), context.Canceled)
		assert.Zero(t, e.pulled)
	})
	t.Run("EnginePanic", func(t *testing.T) {
		e := &script{models: []*solver.Model{f.solution("A", nil), f.solution("B", nil)}, panics: "engine fault"}
		g := f.generator(t, e)
		var res *instance.Result
		require.NotPanics(t, func() { res = g.Generate(context.Background(), nil) })
		require.Error(t, res.Err())
		assert.ErrorContains(t, res.Err(), "engine fault")
		var genErr *featgen.GenerationError
		require.ErrorAs(t, res.Err(), &genErr)
		assert.Equal(t, instance.PhaseSolve, genErr.Phase)
		assert.Equal(t, []string{"A", "B"}, res.Names())
		assert.Equal(t, 2, g.InstanceCount())
	})
	t.Run("AdvancedEnginePanic", func(t *testing.T) {
		e := &script{models: []*solver.Model{f.solution("A", nil)}, panics: "engine fault"}
		var res *instance.Result
		require.NotPanics(t, func() { res = f.generator(t, e).GenerateAdvanced(context.Background(), nil) })
		assert.ErrorContains(t, res.Err(), "engine fault")
		assert.Equal(t, []string{"A"}, res.Names())
	})
	t.Run("NilDependency", func(t *testing.T) {
		answers := map[*question.Question]*question.Answer{
			{ID: 0}: {Value: "x", Dependencies: []*question.Dependency{nil}},
		}
		var res *instance.Result
		require.NotPanics(t, func() { res = f.generator(t, &script{}).Generate(context.Background(), answers) })
		var genErr *featgen.GenerationError
		require.ErrorAs(t, res.Err(), &genErr)
		assert.Equal(t, instance.PhaseConstrain, genErr.Phase)
		assert.Zero(t, res.Len())
	})
	t.Run("NoScope", func(t *testing.T) {
		m := schema.NewModel()
		m.Scope = nil
		m.Concrete("c0_Task")
		g, err := instance.New(m, "c0_Task", "", instance.WithEngine(&script{}))
		require.NoError(t, err)
		_, err = g.Scope()
		assert.ErrorIs(t, err, featgen.ErrNoScope)
		assert.ErrorIs(t, g.Generate(context.Background(), nil).Err(), featgen.ErrNoScope)
	})
}

func TestScope(t *testing.T) {
	f := newFixture()
	g := f.generator(t, &script{})
	s, err := g.Scope()
	require.NoError(t, err)
	assert.Equal(t, instance.DefaultIntLow, s.IntLow)
	assert.Equal(t, instance.DefaultIntHigh, s.IntHigh)

	f.model.Scope.IntLow, f.model.Scope.IntHigh = 0, 3
	s, err = g.Scope()
	require.NoError(t, err)
	assert.Equal(t, [2]int{0, 3}, [2]int{s.IntLow, s.IntHigh})

	e := &script{}
	g = f.generator(t, e, instance.WithIntRange(-1, 300))
	g.Generate(context.Background(), nil)
	require.Len(t, e.scopes, 1)
	assert.Equal(t, [2]int{-1, 300}, [2]int{e.scopes[0].IntLow, e.scopes[0].IntHigh})
	assert.Equal(t, [2]int{0, 3}, [2]int{f.model.Scope.IntLow, f.model.Scope.IntHigh})
}

func TestGeneratorAccessors(t *testing.T) {
	f := newFixture()
	f.model.Concrete("c0_Other2")
	e := &script{models: []*solver.Model{f.solution("SHA256", nil), f.solution("SHA256", 2)}}
	g := f.generator(t, e)
	assert.Same(t, f.model, g.Model())
	assert.Equal(t, "c0_Task", g.TaskName())
	assert.Equal(t, "Test", g.TaskDescription())
	g.SetTaskDescription("Hash data")
	assert.Equal(t, "Hash data", g.TaskDescription())

	g.Generate(context.Background(), nil)
	assert.Equal(t, 2, g.InstanceCount())
	assert.Equal(t, "SHA256", g.LastName())
	assert.Equal(t, 2, g.LastCount())

	g.Reset()
	assert.Zero(t, g.InstanceCount())
	assert.Empty(t, g.Instances())
	assert.Empty(t, g.LastName())
	assert.Zero(t, g.LastCount())
	assert.Equal(t, "c0_Task", g.TaskName())

	require.NoError(t, g.SetTaskName("c0_Other2"))
	assert.Equal(t, "c0_Other2", g.TaskName())
	err := g.SetTaskName("c0_Missing")
	assert.True(t, featgen.IsNotFound(err))
	assert.Equal(t, "c0_Other2", g.TaskName())
}

func TestNewErrors(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name  string
		model *schema.Model
		task  string
		opts  []instance.Option
		check func(error) bool
	}{
		{"NilModel", nil, "c0_Task", nil, instance.IsConfigError},
		{"UnknownTask", f.model, "c0_Missing", nil, featgen.IsNotFound},
		{"MaxInstances", f.model, "c0_Task", []instance.Option{instance.WithMaxInstances(0)}, instance.IsConfigError},
		{"MaxRedundant", f.model, "c0_Task", []instance.Option{instance.WithMaxRedundant(-1)}, instance.IsConfigError},
		{"IntRange", f.model, "c0_Task", []instance.Option{instance.WithIntRange(2, 1)}, instance.IsConfigError},
		{"NilEngine", f.model, "c0_Task", []instance.Option{instance.WithEngine(nil)}, instance.IsConfigError},
		{"NilLogger", f.model, "c0_Task", []instance.Option{instance.WithLogger(nil)}, instance.IsConfigError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := instance.New(tt.model, tt.task, "", tt.opts...)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
	assert.ErrorIs(t, instance.NewConfigError("MaxInstances", 0, "must be positive"), instance.ErrInvalidConfig)
}
