package instance

import (
	"maps"
	"slices"

	"github.com/syssam/featgen/solver"
)

// Result is the outcome of one generation call: the named instances and,
// when the call failed, the cause. A failed call still carries every
// instance generated before the failure.
type Result struct {
	instances map[string]*solver.Instance
	ranked    []string
	err       error
}

func newResult(instances map[string]*solver.Instance, ranked []string, err error) *Result {
	return &Result{instances: instances, ranked: ranked, err: err}
}

// Names returns the display names in ascending order.
func (r *Result) Names() []string {
	return slices.Sorted(maps.Keys(r.instances))
}

// Ranked returns the display names by descending security level.
func (r *Result) Ranked() []string {
	return slices.Clone(r.ranked)
}

// Get returns the instance with the given display name.
func (r *Result) Get(name string) (*solver.Instance, bool) {
	inst, ok := r.instances[name]
	return inst, ok
}

// Len returns the number of named instances.
func (r *Result) Len() int {
	return len(r.instances)
}

// Map returns a copy of the name to instance mapping.
func (r *Result) Map() map[string]*solver.Instance {
	return maps.Clone(r.instances)
}

// Err returns the failure cause, or nil.
func (r *Result) Err() error {
	return r.err
}
