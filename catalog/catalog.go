// Package catalog indexes the tasks of a set of model files together with
// their questionnaires.
package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/syssam/featgen/compiler/load"
	"github.com/syssam/featgen/instance"
	"github.com/syssam/featgen/question"
)

// QuestionsDir is the directory, relative to a model directory, holding
// questionnaire files.
const QuestionsDir = "questions"

// Entry is a task that instances can be generated for.
type Entry struct {
	Task        string
	Description string
	// Path is the model file declaring the task.
	Path  string
	Model *load.Model
	// Questions is nil when the task has no questionnaire.
	Questions *question.Questionnaire
}

// Generator builds a fresh feature model and returns a generator for the
// task. Constraints added by one generator never leak into another.
func (e *Entry) Generator(opts ...instance.Option) (*instance.Generator, error) {
	m, err := e.Model.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Path, err)
	}
	return instance.New(m, e.Task, e.Description, opts...)
}

// Catalog is an immutable task index.
type Catalog struct {
	entries map[string]*Entry
}

// New indexes the tasks of files and attaches each questionnaire to the
// task it names. A task declared twice or a questionnaire for an unknown
// task is an error.
func New(files []*load.File, questionnaires ...*question.Questionnaire) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]*Entry)}
	for _, f := range files {
		for _, t := range f.Model.Tasks {
			if prev, ok := c.entries[t.Name]; ok {
				return nil, fmt.Errorf("catalog: task %s declared in %s and %s", t.Name, prev.Path, f.Path)
			}
			c.entries[t.Name] = &Entry{Task: t.Name, Description: t.Description, Path: f.Path, Model: f.Model}
		}
	}
	for _, q := range questionnaires {
		e, ok := c.entries[q.Task]
		if !ok {
			return nil, fmt.Errorf("catalog: questionnaire for unknown task %q", q.Task)
		}
		if e.Questions != nil {
			return nil, fmt.Errorf("catalog: task %s has two questionnaires", q.Task)
		}
		e.Questions = q
	}
	return c, nil
}

// LoadDir reads the model files of dir and the questionnaires of its
// questions subdirectory, if present.
func LoadDir(ctx context.Context, dir string) (*Catalog, error) {
	files, err := load.ReadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	var qs []*question.Questionnaire
	entries, err := os.ReadDir(filepath.Join(dir, QuestionsDir))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("catalog: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := load.FormatOf(e.Name()); err != nil {
			continue
		}
		q, err := question.LoadFile(filepath.Join(dir, QuestionsDir, e.Name()))
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return New(files, qs...)
}

// Get returns the entry of a task.
func (c *Catalog) Get(task string) (*Entry, bool) {
	e, ok := c.entries[task]
	return e, ok
}

// Entries returns every entry ordered by task name.
func (c *Catalog) Entries() []*Entry {
	es := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		es = append(es, e)
	}
	slices.SortFunc(es, func(a, b *Entry) int { return cmp.Compare(a.Task, b.Task) })
	return es
}

// Len returns the number of tasks.
func (c *Catalog) Len() int {
	return len(c.entries)
}
