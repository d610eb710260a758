// Package instance generates named, ranked and deduplicated instances of a
// task node of a feature model.
//
// A Generator owns the model for the duration of a session. Both entry
// points first translate their input into constraints attached to the
// model, then enumerate solutions with a solver.Engine:
//
//	g, err := instance.New(model, "c0_PasswordBasedEncryption", "Encrypt data based on a password")
//	if err != nil {
//		return err
//	}
//	res := g.Generate(ctx, answers)
//	if err := res.Err(); err != nil {
//		log.Println("partial result:", err)
//	}
//	for _, name := range res.Names() {
//		inst, _ := res.Get(name)
//		fmt.Println(name, inst)
//	}
//
// Constraints accumulate on the model across calls, as do the distinct
// instances found. Reset clears the instances but keeps the model.
//
// A Generator is not safe for concurrent use.
package instance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/featgen"
	"github.com/syssam/featgen/compiler"
	"github.com/syssam/featgen/compiler/directive"
	"github.com/syssam/featgen/question"
	"github.com/syssam/featgen/schema"
	"github.com/syssam/featgen/solver"
	"github.com/syssam/featgen/solver/enum"
)

// Generation phases reported by GenerationError.
const (
	PhaseConstrain = "constrain"
	PhaseSolve     = "solve"
)

// Generator generates instances of a task node.
type Generator struct {
	cfg      Config
	logger   *slog.Logger
	session  string
	model    *schema.Model
	task     *schema.Node
	desc     string
	compiler *compiler.Compiler

	unique  []*solver.Instance
	seen    map[int64]bool
	display map[string]*solver.Instance

	lastName  string
	lastCount int
}

// New returns a generator for the named top-level task node of the model.
func New(model *schema.Model, task, desc string, opts ...Option) (*Generator, error) {
	if model == nil || model.Root == nil {
		return nil, NewConfigError("Model", nil, "model cannot be nil")
	}
	cfg := Config{
		Logger:       slog.Default(),
		MaxInstances: DefaultMaxInstances,
		MaxRedundant: DefaultMaxRedundant,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Engine == nil {
		cfg.Engine = enum.New(enum.WithLogger(cfg.Logger))
	}
	g := &Generator{
		cfg:     cfg,
		session: uuid.NewString(),
		model:   model,
		desc:    desc,
		seen:    make(map[int64]bool),
		display: make(map[string]*solver.Instance),
	}
	if err := g.SetTaskName(task); err != nil {
		return nil, err
	}
	return g, nil
}

// Model returns the model instances are generated from.
func (g *Generator) Model() *schema.Model {
	return g.model
}

// TaskName returns the name of the task node.
func (g *Generator) TaskName() string {
	return g.task.Name
}

// SetTaskName selects another top-level task node.
func (g *Generator) SetTaskName(name string) error {
	task := g.model.Top(name)
	if task == nil {
		return featgen.NewNotFoundError(name, "")
	}
	g.task = task
	g.compiler = compiler.New(g.model, task)
	g.logger = g.cfg.Logger.With("session", g.session, "task", name)
	return nil
}

// TaskDescription returns the task description.
func (g *Generator) TaskDescription() string {
	return g.desc
}

// SetTaskDescription sets the task description.
func (g *Generator) SetTaskDescription(desc string) {
	g.desc = desc
}

// Scope returns the scope passed to the engine: the model scope with the
// configured integer bounds. A model without integer bounds gets
// DefaultIntLow and DefaultIntHigh.
func (g *Generator) Scope() (schema.Scope, error) {
	if g.model.Scope == nil {
		return schema.Scope{}, featgen.ErrNoScope
	}
	s := *g.model.Scope
	switch {
	case g.cfg.IntRange:
		s = s.WithIntRange(g.cfg.IntLow, g.cfg.IntHigh)
	case s.IntLow == 0 && s.IntHigh == 0:
		s = s.WithIntRange(DefaultIntLow, DefaultIntHigh)
	}
	return s, nil
}

// InstanceCount returns the number of distinct instances found so far.
func (g *Generator) InstanceCount() int {
	return len(g.unique)
}

// Instances returns the display names and instances of the last call.
func (g *Generator) Instances() map[string]*solver.Instance {
	return g.display
}

// LastName returns the base display name assigned last.
func (g *Generator) LastName() string {
	return g.lastName
}

// LastCount returns the counter of the last name collision, or zero.
func (g *Generator) LastCount() int {
	return g.lastCount
}

// Reset clears the instances found so far. The model, including the
// constraints attached by earlier calls, and the task are kept.
func (g *Generator) Reset() {
	g.unique = nil
	g.seen = make(map[int64]bool)
	g.display = make(map[string]*solver.Instance)
	g.lastName, g.lastCount = "", 0
}

// Generate applies the dependencies of the given answers to the model and
// generates instances. Answers are applied in question order.
func (g *Generator) Generate(ctx context.Context, answers map[*question.Question]*question.Answer) (res *Result) {
	logger := g.logger.With("mode", "basic")
	phase := PhaseConstrain
	defer g.recoverPanic(logger, &phase, &res)
	for _, q := range question.Sorted(answers) {
		a := answers[q]
		if a == nil {
			continue
		}
		for _, dep := range a.Dependencies {
			if err := g.apply(dep); err != nil {
				return g.finish(logger, phase, fmt.Errorf("question %d: %w", q.ID, err))
			}
			logger.Debug("applied dependency", "question", q.ID, "dependency", dep.String())
		}
	}
	phase = PhaseSolve
	err := g.enumerate(ctx, logger, g.cfg.MaxInstances, g.cfg.MaxRedundant)
	return g.finish(logger, phase, err)
}

// GenerateAdvanced applies the enabled property constraints to the model
// and generates instances. Unlike Generate it enumerates every solution.
func (g *Generator) GenerateAdvanced(ctx context.Context, props []question.PropertyConstraint) (res *Result) {
	logger := g.logger.With("mode", "advanced")
	phase := PhaseConstrain
	defer g.recoverPanic(logger, &phase, &res)
	for _, p := range props {
		if p.Skip() {
			continue
		}
		if err := g.applyProperty(logger, p); err != nil {
			return g.finish(logger, phase, err)
		}
	}
	phase = PhaseSolve
	err := g.enumerate(ctx, logger, 0, 0)
	return g.finish(logger, phase, err)
}

// recoverPanic turns a panic raised while constraining or solving into a
// failed Result holding the instances found before it.
func (g *Generator) recoverPanic(logger *slog.Logger, phase *string, res **Result) {
	if r := recover(); r != nil {
		*res = g.finish(logger, *phase, fmt.Errorf("panic: %v", r))
	}
}

func (g *Generator) apply(dep *question.Dependency) error {
	if dep.Operator == directive.OpCreate {
		target, err := schema.FindByName(g.model.Root, dep.Value)
		if err != nil {
			return err
		}
		_, err = schema.CreateChild(g.task, dep.Algorithm, target)
		return err
	}
	alg, err := schema.FindByName(g.task, dep.Algorithm)
	if err != nil {
		return err
	}
	var path []*schema.Node
	if dep.Operand != "" {
		for _, name := range strings.Split(dep.Operand, ";") {
			n, err := schema.FindByName(alg.Parent, strings.TrimSpace(name))
			if err != nil {
				return err
			}
			path = append(path, n)
		}
	}
	return g.compiler.Compile(alg, path, dep.Operator, dep.Value)
}

func (g *Generator) applyProperty(logger *slog.Logger, p question.PropertyConstraint) error {
	parent, err := schema.FindByName(g.task, p.Parent)
	if err != nil {
		return err
	}
	child, err := schema.FindByName(g.task, p.Child)
	if err != nil {
		return err
	}
	if !child.IsConcrete() {
		logger.Debug("skipped abstract property", "parent", p.Parent, "child", p.Child)
		return nil
	}
	return g.compiler.Compile(parent, []*schema.Node{child}, p.Operator, p.Value)
}

// enumerate pulls solutions until the session is exhausted, maxInstances
// distinct instances are known or maxRedundant consecutive solutions were
// repeats. Zero limits are ignored.
func (g *Generator) enumerate(ctx context.Context, logger *slog.Logger, maxInstances, maxRedundant int) error {
	scope, err := g.Scope()
	if err != nil {
		return err
	}
	s, err := g.cfg.Engine.Compile(ctx, g.model, scope)
	if err != nil {
		return featgen.NewSolveError("compile", err)
	}
	defer s.Close()
	var pulled, redundant int
	for maxInstances == 0 || len(g.unique) < maxInstances {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.Next() {
			break
		}
		pulled++
		inst := g.pick(s.Current())
		var fp int64
		if inst != nil {
			fp = Fingerprint(inst)
		}
		// A solution without a top-level instance counts as a repeat.
		if inst == nil || g.seen[fp] {
			redundant++
			if maxRedundant > 0 && redundant >= maxRedundant {
				logger.Debug("stopped on repeated instances", "redundant", redundant)
				break
			}
			continue
		}
		g.seen[fp] = true
		g.unique = append(g.unique, inst)
		redundant = 0
	}
	if err := s.Err(); err != nil {
		return featgen.NewSolveError("next", err)
	}
	logger.Debug("enumerated solutions", "pulled", pulled, "distinct", len(g.unique))
	return nil
}

// pick returns the instance of the task node, or the last top-level
// instance when the solution has none.
func (g *Generator) pick(m *solver.Model) *solver.Instance {
	if m == nil || len(m.Top) == 0 {
		return nil
	}
	if inst := m.Find(g.task.Name); inst != nil {
		return inst
	}
	return m.Top[len(m.Top)-1]
}

// finish ranks and names the distinct instances and wraps err.
func (g *Generator) finish(logger *slog.Logger, phase string, err error) *Result {
	display, ranked := g.names(rank(logger, g.unique))
	g.display = display
	if err != nil {
		err = featgen.NewGenerationError(g.task.Name, phase, err)
		logger.Error("generation failed", "err", err, "instances", len(display))
	} else {
		logger.Info("generated instances", "instances", len(display), "distinct", len(g.unique))
	}
	return newResult(display, ranked, err)
}
