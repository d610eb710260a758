package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/featgen/solver"
)

// Snapshot is the serialized form of an instance tree. Instance
// references are stored by the referenced instance's name.
type Snapshot struct {
	Type     string      `msgpack:"t"`
	ID       int         `msgpack:"i"`
	Int      *int        `msgpack:"n,omitempty"`
	Str      *string     `msgpack:"s,omitempty"`
	Bool     *bool       `msgpack:"b,omitempty"`
	Ref      string      `msgpack:"r,omitempty"`
	Children []*Snapshot `msgpack:"c,omitempty"`
}

// NewSnapshot captures inst and its descendants.
func NewSnapshot(inst *solver.Instance) *Snapshot {
	s := &Snapshot{Type: inst.Type.Name, ID: inst.ID}
	switch v := inst.Ref.(type) {
	case int:
		s.Int = &v
	case string:
		s.Str = &v
	case bool:
		s.Bool = &v
	case *solver.Instance:
		s.Ref = v.Name()
	}
	for _, c := range inst.Children {
		s.Children = append(s.Children, NewSnapshot(c))
	}
	return s
}

// Name returns the instance name, e.g. "c0_md5$0".
func (s *Snapshot) Name() string {
	return s.Type + "$" + strconv.Itoa(s.ID)
}

// Value returns the primitive value held by the snapshot, the referenced
// instance name, or nil.
func (s *Snapshot) Value() any {
	switch {
	case s.Int != nil:
		return *s.Int
	case s.Str != nil:
		return *s.Str
	case s.Bool != nil:
		return *s.Bool
	case s.Ref != "":
		return s.Ref
	}
	return nil
}

// String renders the snapshot the way solver.Instance does.
func (s *Snapshot) String() string {
	var b strings.Builder
	s.write(&b, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func (s *Snapshot) write(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(s.Name())
	switch {
	case s.Ref != "":
		b.WriteString(" -> " + s.Ref)
	case s.Str != nil:
		b.WriteString(" = " + strconv.Quote(*s.Str))
	case s.Int != nil, s.Bool != nil:
		fmt.Fprintf(b, " = %v", s.Value())
	}
	b.WriteByte('\n')
	for _, c := range s.Children {
		c.write(b, depth+1)
	}
}

// Encode serializes the snapshot with msgpack.
func (s *Snapshot) Encode() ([]byte, error) {
	return msgpack.Marshal(s)
}

// DecodeSnapshot parses a snapshot produced by Encode.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := msgpack.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("storage: decode snapshot: %w", err)
	}
	return s, nil
}
