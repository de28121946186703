// Package comonad implements the observation comonad: a focused value
// carried with its surrounding context and refinement history. Extract
// reads the focus, Duplicate builds a meta-observation of the whole
// observation, and Extend runs a context-aware function over it.
//
// Observations are immutable after construction. Duplicate wraps the
// original without modifying it; the source stays independently usable.
package comonad

import (
	"errors"
	"reflect"
	"sort"
	"time"

	"metaprompt/internal/types"
)

// ErrEmptyObservation is returned when extracting from a nil or
// payload-less observation.
var ErrEmptyObservation = errors.New("comonad extract: empty observation")

// =============================================================================
// OBSERVATION
// =============================================================================

// Observation is the comonadic value: a focus plus everything known
// about how it was produced. The focus is either a plain payload
// (Value) or another observation (Inner); Inner non-nil is the nesting
// discriminator, in which case Value is ignored.
type Observation struct {
	Value     any
	Inner     *Observation
	Context   map[string]any
	History   []*Observation
	Metadata  map[string]any
	Timestamp time.Time
}

// NewObservation builds a depth-zero observation over a plain payload.
func NewObservation(value any, context map[string]any) *Observation {
	return &Observation{
		Value:     value,
		Context:   types.CloneAnyMap(context),
		Metadata:  map[string]any{},
		Timestamp: time.Now(),
	}
}

// IsNested reports whether the focus is itself an observation.
func (o *Observation) IsNested() bool { return o.Inner != nil }

// Current returns the focus: the nested observation when one is
// present, the plain payload otherwise.
func (o *Observation) Current() any {
	if o.Inner != nil {
		return o.Inner
	}
	return o.Value
}

// Equal compares two observations on their focus, context shape, and
// history depth. Timestamps and heuristic metadata are deliberately
// excluded: two observations of the same thing at different moments
// still compare equal.
func (o *Observation) Equal(other *Observation) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o == other {
		return true
	}
	if o.IsNested() != other.IsNested() {
		return false
	}
	if o.IsNested() {
		if !o.Inner.Equal(other.Inner) {
			return false
		}
	} else if !reflect.DeepEqual(o.Value, other.Value) {
		return false
	}
	if len(o.History) != len(other.History) {
		return false
	}
	return len(o.Context) == len(other.Context)
}

// =============================================================================
// COMONAD OPERATIONS
// =============================================================================

// CoKleisli is a context-aware function over a whole observation.
type CoKleisli func(*Observation) any

// Comonad provides extract, duplicate, and extend over observations.
type Comonad struct{}

func New() *Comonad { return &Comonad{} }

// Extract returns the focus of an observation. No side effects.
func (c *Comonad) Extract(w *Observation) (any, error) {
	if w == nil {
		return nil, ErrEmptyObservation
	}
	if w.Inner == nil && w.Value == nil {
		return nil, ErrEmptyObservation
	}
	return w.Current(), nil
}

// Duplicate builds a meta-observation whose focus is w itself. The
// original is shared, not moved: w remains reachable and unmodified.
// History grows by prepending w, and the context and metadata gain
// meta-observation markers describing what was observed.
func (c *Comonad) Duplicate(w *Observation) *Observation {
	if w == nil {
		return nil
	}

	keys := make([]string, 0, len(w.Context))
	for k := range w.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	context := types.CloneAnyMap(w.Context)
	context["meta_observation"] = true
	context["original_context_keys"] = keys
	context["observation_timestamp"] = w.Timestamp
	context["history_depth"] = len(w.History)

	metadata := types.CloneAnyMap(w.Metadata)
	metadata["observation_quality"] = assessObservationQuality(w)
	metadata["completeness"] = assessCompleteness(w)

	history := make([]*Observation, 0, len(w.History)+1)
	history = append(history, w)
	history = append(history, w.History...)

	return &Observation{
		Inner:     w,
		Context:   context,
		History:   history,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}
}

// Extend applies a context-aware function to the whole observation and
// wraps the result, preserving w's context and history. The result is
// marked extended in its metadata.
func (c *Comonad) Extend(f CoKleisli, w *Observation) *Observation {
	if w == nil {
		return nil
	}

	metadata := types.CloneAnyMap(w.Metadata)
	metadata["extended"] = true

	history := make([]*Observation, len(w.History))
	copy(history, w.History)

	result := &Observation{
		Context:   types.CloneAnyMap(w.Context),
		History:   history,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}

	switch v := f(w).(type) {
	case *Observation:
		result.Inner = v
	default:
		result.Value = v
	}
	return result
}

// =============================================================================
// LAW VERIFICATION
// =============================================================================

// VerifyLeftIdentity checks extract(duplicate(w)) == w.
func (c *Comonad) VerifyLeftIdentity(w *Observation) (bool, error) {
	focus, err := c.Extract(c.Duplicate(w))
	if err != nil {
		return false, err
	}
	inner, ok := focus.(*Observation)
	if !ok {
		return false, nil
	}
	return inner.Equal(w), nil
}

// VerifyRightIdentity checks that extracting through the duplicated
// layer recovers the original focus: fmap(extract)(duplicate(w)) == w.
func (c *Comonad) VerifyRightIdentity(w *Observation) (bool, error) {
	duplicated := c.Duplicate(w)
	focus, err := c.Extract(duplicated.Inner)
	if err != nil {
		return false, err
	}
	return equalFocus(focus, w.Current()), nil
}

// VerifyAssociativity checks duplicate(duplicate(w)) against
// fmap(duplicate)(duplicate(w)): both sides must be nested three deep
// with the original observation at the core.
func (c *Comonad) VerifyAssociativity(w *Observation) (bool, error) {
	left := c.Duplicate(c.Duplicate(w))
	if left.Inner == nil || left.Inner.Inner == nil {
		return false, nil
	}

	once := c.Duplicate(w)
	right := c.Duplicate(once.Inner)
	if right.Inner == nil {
		return false, nil
	}

	return left.Inner.Inner.Equal(w) && right.Inner.Equal(w), nil
}

// VerifyExtendExtract checks the corollary extend(extract) == identity
// on the focus.
func (c *Comonad) VerifyExtendExtract(w *Observation) (bool, error) {
	extended := c.Extend(func(obs *Observation) any {
		focus, err := c.Extract(obs)
		if err != nil {
			return nil
		}
		return focus
	}, w)
	return equalFocus(extended.Current(), w.Current()), nil
}

func equalFocus(a, b any) bool {
	ao, aok := a.(*Observation)
	bo, bok := b.(*Observation)
	if aok != bok {
		return false
	}
	if aok {
		return ao.Equal(bo)
	}
	return reflect.DeepEqual(a, b)
}

// =============================================================================
// HEURISTICS
// =============================================================================

// assessObservationQuality scores how informative an observation is
// from the shape of its context and history.
func assessObservationQuality(w *Observation) float64 {
	score := 0.3
	if len(w.Context) > 0 {
		score += 0.2
	}
	if _, ok := w.Context["quality"]; ok {
		score += 0.2
	}
	if len(w.History) > 0 {
		score += 0.2
	}
	if len(w.Metadata) > 0 {
		score += 0.1
	}
	return types.Clamp01(score)
}

// assessCompleteness measures how many of the expected refinement-trace
// keys the context carries.
func assessCompleteness(w *Observation) float64 {
	expected := []string{"prompt", "quality", "meta_level", "timestamp"}
	present := 0
	for _, k := range expected {
		if _, ok := w.Context[k]; ok {
			present++
		}
	}
	return float64(present) / float64(len(expected))
}
