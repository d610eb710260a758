// Package load reads declarative feature models from YAML or JSON files and
// builds them into schema.Model values.
package load

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Model is a feature model as written in a model file.
type Model struct {
	Scope *Scope  `json:"scope,omitempty" yaml:"scope,omitempty"`
	Tasks []*Task `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Nodes []*Node `json:"nodes" yaml:"nodes"`
}

// Scope is the solving scope of a model file.
type Scope struct {
	Default int            `json:"default,omitempty" yaml:"default,omitempty"`
	IntLow  int            `json:"intLow,omitempty" yaml:"intLow,omitempty"`
	IntHigh int            `json:"intHigh,omitempty" yaml:"intHigh,omitempty"`
	Cards   map[string]int `json:"cards,omitempty" yaml:"cards,omitempty"`
}

// Task names a top-level node that instances can be generated for.
type Task struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Node is a feature node as written in a model file.
type Node struct {
	Name     string `json:"name" yaml:"name"`
	Abstract bool   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	// Extends names the abstract super type.
	Extends string `json:"extends,omitempty" yaml:"extends,omitempty"`
	// Ref is "int", "string", "bool" or the name of a node type.
	Ref   string `json:"ref,omitempty" yaml:"ref,omitempty"`
	Card  *Range `json:"card,omitempty" yaml:"card,omitempty"`
	Group *Range `json:"group,omitempty" yaml:"group,omitempty"`
	// Value fixes the node's own reference value.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`
	// Values fixes the reference values of dotted attribute paths.
	Values map[string]any `json:"values,omitempty" yaml:"values,omitempty"`
	// Some lists dotted attribute paths that must be present.
	Some     []string `json:"some,omitempty" yaml:"some,omitempty"`
	Children []*Node  `json:"children,omitempty" yaml:"children,omitempty"`
}

// Range is a cardinality written either as "low..high" ("*" for unbounded)
// or as a two element list.
type Range struct {
	Low  int
	High int
}

// UnmarshalYAML implements yaml.Unmarshaler for Range.
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return r.parse(node.Value)
	case yaml.SequenceNode:
		var list []int
		if err := node.Decode(&list); err != nil {
			return err
		}
		return r.fromList(list)
	default:
		return fmt.Errorf("expected range string or list, got %v", node.Kind)
	}
}

// MarshalYAML implements yaml.Marshaler for Range.
func (r Range) MarshalYAML() (any, error) {
	return r.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Range.
func (r *Range) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return r.parse(s)
	}
	var list []int
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected range string or list: %w", err)
	}
	return r.fromList(list)
}

// MarshalJSON implements json.Marshaler for Range.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// String returns the "low..high" form of the range.
func (r Range) String() string {
	if r.High < 0 {
		return strconv.Itoa(r.Low) + "..*"
	}
	return strconv.Itoa(r.Low) + ".." + strconv.Itoa(r.High)
}

func (r *Range) parse(s string) error {
	lo, hi, ok := strings.Cut(s, "..")
	if !ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid range %q", s)
		}
		r.Low, r.High = n, n
		return r.validate()
	}
	low, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return fmt.Errorf("invalid range %q", s)
	}
	high := -1
	if hi = strings.TrimSpace(hi); hi != "*" {
		if high, err = strconv.Atoi(hi); err != nil {
			return fmt.Errorf("invalid range %q", s)
		}
	}
	r.Low, r.High = low, high
	return r.validate()
}

func (r *Range) fromList(list []int) error {
	if len(list) != 2 {
		return fmt.Errorf("range list must have two elements, got %d", len(list))
	}
	r.Low, r.High = list[0], list[1]
	return r.validate()
}

func (r *Range) validate() error {
	if r.Low < 0 || (r.High >= 0 && r.High < r.Low) {
		return fmt.Errorf("invalid range %s", r)
	}
	return nil
}

// Format is the encoding of a model file.
type Format string

// Supported formats.
const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf returns the format implied by a file name extension.
func FormatOf(path string) (Format, error) {
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return YAML, nil
	case strings.HasSuffix(path, ".json"):
		return JSON, nil
	}
	return "", fmt.Errorf("load: unknown model format for %q", path)
}

// Parse decodes a model file. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Model, error) {
	m := &Model{}
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("load: decoding yaml: %w", err)
		}
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		dec.UseNumber()
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("load: decoding json: %w", err)
		}
	default:
		return nil, fmt.Errorf("load: unsupported format %q", format)
	}
	return m, nil
}

// Encode encodes the model in the given format.
func (m *Model) Encode(format Format) ([]byte, error) {
	switch format {
	case YAML:
		return yaml.Marshal(m)
	case JSON:
		return json.MarshalIndent(m, "", "  ")
	}
	return nil, fmt.Errorf("load: unsupported format %q", format)
}

// constant normalizes a decoded value to int, string or bool.
func constant(v any) (any, error) {
	switch v := v.(type) {
	case int:
		return v, nil
	case int64:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("integer %d out of range", v)
		}
		return int(v), nil
	case uint64:
		if v > math.MaxInt32 {
			return nil, fmt.Errorf("integer %d out of range", v)
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("non-integer number %v", v)
		}
		return constant(int64(v))
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s", v)
		}
		return constant(n)
	case string, bool:
		return v, nil
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", v, v)
}
