// Package question defines the questionnaire answers and property
// descriptors that drive instance generation, and reads them from YAML or
// JSON files.
package question

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/syssam/featgen/compiler/load"
)

// Question is one question of a task questionnaire.
type Question struct {
	ID      int       `json:"id" yaml:"id"`
	Text    string    `json:"text" yaml:"text"`
	Answers []*Answer `json:"answers" yaml:"answers"`
}

// Answer is a possible answer to a question. Choosing it applies its
// dependencies to the feature model.
type Answer struct {
	Value        string        `json:"value" yaml:"value"`
	Default      bool          `json:"default,omitempty" yaml:"default,omitempty"`
	Dependencies []*Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Dependency is a directive attached to an answer.
//
// The "->" operator adds a child named Algorithm to the task node that
// references the node named Value. Every other operator constrains the
// node named Algorithm; Operand holds ";" separated attribute names.
type Dependency struct {
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Operand   string `json:"operand,omitempty" yaml:"operand,omitempty"`
	Operator  string `json:"operator" yaml:"operator"`
	Value     string `json:"value" yaml:"value"`
}

func (d *Dependency) String() string {
	return fmt.Sprintf("%s[%s] %s %s", d.Algorithm, d.Operand, d.Operator, d.Value)
}

// PropertyConstraint is a property descriptor of the advanced flow.
type PropertyConstraint struct {
	Parent   string `json:"parent" yaml:"parent"`
	Child    string `json:"child" yaml:"child"`
	Operator string `json:"operator" yaml:"operator"`
	Value    string `json:"value" yaml:"value"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	// GroupConstraint marks descriptors that stand for a whole group.
	GroupConstraint bool `json:"group,omitempty" yaml:"group,omitempty"`
}

// Skip reports whether the descriptor is ignored by generation.
func (p PropertyConstraint) Skip() bool {
	return !p.Enabled || p.GroupConstraint
}

// Questionnaire is the content of a question file.
type Questionnaire struct {
	Task      string      `json:"task,omitempty" yaml:"task,omitempty"`
	Questions []*Question `json:"questions" yaml:"questions"`
}

// Properties is the content of a property file.
type Properties struct {
	Task        string               `json:"task,omitempty" yaml:"task,omitempty"`
	Constraints []PropertyConstraint `json:"constraints" yaml:"constraints"`
}

func decode(data []byte, format load.Format, v any) error {
	switch format {
	case load.YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("question: decoding yaml: %w", err)
		}
	case load.JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("question: decoding json: %w", err)
		}
	default:
		return fmt.Errorf("question: unsupported format %q", format)
	}
	return nil
}

func readFile(path string, v any) error {
	format, err := load.FormatOf(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("question: %w", err)
	}
	if err := decode(data, format, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Parse decodes a questionnaire and validates it.
func Parse(data []byte, format load.Format) (*Questionnaire, error) {
	q := &Questionnaire{}
	if err := decode(data, format, q); err != nil {
		return nil, err
	}
	if err := q.validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// LoadFile reads a questionnaire file.
func LoadFile(path string) (*Questionnaire, error) {
	q := &Questionnaire{}
	if err := readFile(path, q); err != nil {
		return nil, err
	}
	if err := q.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

func (q *Questionnaire) validate() error {
	ids := make(map[int]bool, len(q.Questions))
	for _, x := range q.Questions {
		if ids[x.ID] {
			return fmt.Errorf("question: duplicate question id %d", x.ID)
		}
		ids[x.ID] = true
		if len(x.Answers) == 0 {
			return fmt.Errorf("question: question %d has no answers", x.ID)
		}
		for _, a := range x.Answers {
			for _, d := range a.Dependencies {
				if d.Algorithm == "" || d.Operator == "" {
					return fmt.Errorf("question: question %d: incomplete dependency %s", x.ID, d)
				}
			}
		}
	}
	return nil
}

// Default returns the default answer of the question, or its first answer
// when none is marked.
func (q *Question) Default() *Answer {
	for _, a := range q.Answers {
		if a.Default {
			return a
		}
	}
	return q.Answers[0]
}

// Answer returns the answer with the given value, or nil.
func (q *Question) Answer(value string) *Answer {
	for _, a := range q.Answers {
		if a.Value == value {
			return a
		}
	}
	return nil
}

// Select picks an answer for every question: the answer whose value is
// given in choices under the question id, or the default answer.
func (q *Questionnaire) Select(choices map[int]string) (map[*Question]*Answer, error) {
	picked := make(map[*Question]*Answer, len(q.Questions))
	for _, x := range q.Questions {
		v, ok := choices[x.ID]
		if !ok {
			picked[x] = x.Default()
			continue
		}
		a := x.Answer(v)
		if a == nil {
			return nil, fmt.Errorf("question: question %d has no answer %q", x.ID, v)
		}
		picked[x] = a
	}
	for id := range choices {
		if !slices.ContainsFunc(q.Questions, func(x *Question) bool { return x.ID == id }) {
			return nil, fmt.Errorf("question: unknown question id %d", id)
		}
	}
	return picked, nil
}

// Sorted returns the questions of answers ordered by id, then text.
func Sorted(answers map[*Question]*Answer) []*Question {
	qs := make([]*Question, 0, len(answers))
	for q := range answers {
		qs = append(qs, q)
	}
	slices.SortFunc(qs, func(a, b *Question) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Text, b.Text))
	})
	return qs
}

// ParseProperties decodes a property file.
func ParseProperties(data []byte, format load.Format) (*Properties, error) {
	p := &Properties{}
	if err := decode(data, format, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadProperties reads a property file.
func LoadProperties(path string) (*Properties, error) {
	p := &Properties{}
	if err := readFile(path, p); err != nil {
		return nil, err
	}
	return p, nil
}
