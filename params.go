package epiworld

import "github.com/pkg/errors"

// ParamID names a slot in a Model's global parameter table, used by the
// Ref probability-channel variant (spec.md S9 redesign flag: tagged
// variants instead of captured closures over C++ pointers).
type ParamID int

// ParamTable holds the named numeric globals a Model exposes to virus and
// tool probability channels, mirroring the teacher's GlobalParam map but
// addressed by a stable int id instead of a string on every draw.
type ParamTable struct {
	names  map[string]ParamID
	values []float64
}

// NewParamTable returns an empty table.
func NewParamTable() *ParamTable {
	return &ParamTable{names: make(map[string]ParamID)}
}

// Add registers a new named parameter and returns its id. Re-adding an
// existing name updates its value and returns the existing id.
func (t *ParamTable) Add(name string, value float64) ParamID {
	if id, ok := t.names[name]; ok {
		t.values[id] = value
		return id
	}
	id := ParamID(len(t.values))
	t.names[name] = id
	t.values = append(t.values, value)
	return id
}

// Get returns the value stored at id, or 0 if id is out of range.
func (t *ParamTable) Get(id ParamID) float64 {
	if int(id) < 0 || int(id) >= len(t.values) {
		return 0
	}
	return t.values[id]
}

// Set overwrites the value stored at id.
func (t *ParamTable) Set(id ParamID, value float64) {
	if int(id) < 0 || int(id) >= len(t.values) {
		return
	}
	t.values[id] = value
}

// ByName looks a parameter up by its registered name.
func (t *ParamTable) ByName(name string) (ParamID, error) {
	id, ok := t.names[name]
	if !ok {
		return 0, errors.Wrapf(ErrOutOfRange, "no parameter named %q", name)
	}
	return id, nil
}

// ProbKind discriminates the three probability-channel variants (spec.md
// S4.3, S9 redesign flag: a tagged variant instead of a raw closure).
type ProbKind int

const (
	// ProbConstant evaluates to a fixed value set at definition time.
	ProbConstant ProbKind = iota
	// ProbParam reads its value from the Model's global parameter table
	// on every evaluation, so runtime parameter sweeps see updates.
	ProbParam
	// ProbClosure calls an arbitrary (Agent, object, Model) -> float64
	// function on every evaluation.
	ProbClosure
)

// ProbFunc is one probability channel: infectiousness, recovery, death,
// or incubation-duration, attached to a VirusDef or ToolDef.
type ProbFunc struct {
	kind     ProbKind
	constant float64
	param    ParamID
	closure  func(a *Agent, obj interface{}, m *Model) float64
}

// Constant builds a ProbFunc that always evaluates to v.
func Constant(v float64) ProbFunc {
	return ProbFunc{kind: ProbConstant, constant: v}
}

// Param builds a ProbFunc that reads the Model's parameter table.
func Param(id ParamID) ProbFunc {
	return ProbFunc{kind: ProbParam, param: id}
}

// Closure builds a ProbFunc backed by an arbitrary function of the
// carrying agent, the virus or tool instance, and the model.
func Closure(f func(a *Agent, obj interface{}, m *Model) float64) ProbFunc {
	return ProbFunc{kind: ProbClosure, closure: f}
}

// Eval resolves the channel's current value for a given agent/object
// pair. A zero-value ProbFunc (no variant ever assigned) evaluates to 0.
func (p ProbFunc) Eval(a *Agent, obj interface{}, m *Model) float64 {
	switch p.kind {
	case ProbParam:
		return m.params.Get(p.param)
	case ProbClosure:
		if p.closure == nil {
			return 0
		}
		return p.closure(a, obj, m)
	default:
		return p.constant
	}
}
