// Package monad implements the recursive meta-prompting monad: unit
// wraps a prompt by executing it and scoring the output, bind chains
// improvement functions with weakest-link quality folding, and join
// integrates an extracted improvement and re-executes.
//
// The categorical laws are runtime-checkable oracles, not static
// guarantees: the completion collaborator may be non-deterministic, so
// equality for law checking is structural with a quality tolerance of
// 0.01 rather than bit-exact.
package monad

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"metaprompt/internal/perception"
	"metaprompt/internal/quality"
	"metaprompt/internal/types"
)

// Quality tolerance for structural equality of wrapped prompts.
const qualityTolerance = 0.01

// BindFunc is a Kleisli arrow: Prompt -> M(Prompt).
type BindFunc func(context.Context, types.Prompt) (types.MonadPrompt, error)

// UnitFunc wraps a plain prompt into monadic context.
type UnitFunc func(context.Context, types.Prompt) (types.MonadPrompt, error)

// JoinFunc flattens a nested wrapped prompt into a single layer.
type JoinFunc func(context.Context, types.MonadPrompt) (types.MonadPrompt, error)

// Monad pairs an injected unit and join. Bind is derived from them; the
// recursive meta-prompting instance comes from NewRecursiveMetaMonad,
// while tests may inject pure unit/join pairs to validate the law
// machinery itself.
type Monad struct {
	unit UnitFunc
	join JoinFunc
}

// New builds a monad from explicit unit and join operations.
func New(unit UnitFunc, join JoinFunc) *Monad {
	return &Monad{unit: unit, join: join}
}

// NewRecursiveMetaMonad wires the monad to a completion collaborator and
// a quality assessor.
//
// Unit executes the prompt and scores the output at depth zero. Join
// extracts an improvement from the nested value, integrates it into the
// base prompt, re-executes, and re-scores; the re-assessment may move
// quality in either direction, unlike bind's tensor step, which never
// rises above the weaker input.
func NewRecursiveMetaMonad(client perception.LLMClient, assessor quality.Assessor) *Monad {
	if assessor == nil {
		assessor = quality.NewHeuristicAssessor()
	}

	unit := func(ctx context.Context, p types.Prompt) (types.MonadPrompt, error) {
		rendered, err := p.Render()
		if err != nil {
			return types.MonadPrompt{}, err
		}
		output, err := client.Complete(ctx, rendered)
		if err != nil {
			return types.MonadPrompt{}, fmt.Errorf("completion collaborator: %w", err)
		}
		return types.MonadPrompt{
			Prompt:    p,
			Quality:   assessor.Assess(output, p),
			MetaLevel: 0,
			History:   nil,
			Timestamp: time.Now(),
		}, nil
	}

	join := func(ctx context.Context, nested types.MonadPrompt) (types.MonadPrompt, error) {
		improvement := quality.ExtractImprovement(nested)
		enhanced := quality.IntegrateImprovement(nested.Prompt, improvement)

		rendered, err := enhanced.Render()
		if err != nil {
			return types.MonadPrompt{}, err
		}
		output, err := client.Complete(ctx, rendered)
		if err != nil {
			return types.MonadPrompt{}, fmt.Errorf("completion collaborator: %w", err)
		}

		return types.MonadPrompt{
			Prompt:    enhanced,
			Quality:   assessor.Assess(output, enhanced),
			MetaLevel: nested.MetaLevel,
			History:   nested.History,
			Timestamp: time.Now(),
		}, nil
	}

	return &Monad{unit: unit, join: join}
}

// Unit wraps a prompt into monadic context. Referentially fresh: every
// call re-executes the collaborator and stamps a new timestamp.
func (m *Monad) Unit(ctx context.Context, p types.Prompt) (types.MonadPrompt, error) {
	return m.unit(ctx, p)
}

// Join flattens one monadic layer.
func (m *Monad) Join(ctx context.Context, nested types.MonadPrompt) (types.MonadPrompt, error) {
	return m.join(ctx, nested)
}

// Bind chains a monadic computation: apply f to the wrapped prompt,
// fold quality with the tensor product (monotonic degradation), advance
// the recursion depth, append the outgoing prompt to history, and
// flatten through join.
func (m *Monad) Bind(ctx context.Context, ma types.MonadPrompt, f BindFunc) (types.MonadPrompt, error) {
	mb, err := f(ctx, ma.Prompt)
	if err != nil {
		return types.MonadPrompt{}, err
	}

	// The history entry records the quality it had when superseded so
	// improvement extraction can detect stagnation later.
	departing := ma.Prompt.WithContext(map[string]any{"quality": ma.Quality.Value})

	history := make([]types.Prompt, 0, len(ma.History)+1)
	history = append(history, ma.History...)
	history = append(history, departing)

	nested := types.MonadPrompt{
		Prompt:    mb.Prompt,
		Quality:   ma.Quality.TensorProduct(mb.Quality),
		MetaLevel: ma.MetaLevel + 1,
		History:   history,
		Timestamp: time.Now(),
	}

	return m.join(ctx, nested)
}

// KleisliCompose composes two monadic functions: (f >=> g)(a) = f(a) >>= g.
func (m *Monad) KleisliCompose(f, g BindFunc) BindFunc {
	return func(ctx context.Context, p types.Prompt) (types.MonadPrompt, error) {
		ma, err := f(ctx, p)
		if err != nil {
			return types.MonadPrompt{}, err
		}
		return m.Bind(ctx, ma, g)
	}
}

// =============================================================================
// LAW VERIFICATION
// =============================================================================

// VerifyLeftIdentity checks bind(unit(a), f) ≈ f(a). Diagnostic: with
// an effectful join the report may legitimately be false; callers treat
// it as an oracle, not an invariant.
func (m *Monad) VerifyLeftIdentity(ctx context.Context, a types.Prompt, f BindFunc) (bool, error) {
	wrapped, err := m.unit(ctx, a)
	if err != nil {
		return false, err
	}
	left, err := m.Bind(ctx, wrapped, f)
	if err != nil {
		return false, err
	}
	right, err := f(ctx, a)
	if err != nil {
		return false, err
	}
	return StructurallyEqual(left, right), nil
}

// VerifyRightIdentity checks bind(m, unit) ≈ m.
func (m *Monad) VerifyRightIdentity(ctx context.Context, ma types.MonadPrompt) (bool, error) {
	left, err := m.Bind(ctx, ma, BindFunc(m.unit))
	if err != nil {
		return false, err
	}
	return StructurallyEqual(left, ma), nil
}

// VerifyAssociativity checks bind(bind(m,f),g) ≈ bind(m, λx. bind(f(x),g)).
func (m *Monad) VerifyAssociativity(ctx context.Context, ma types.MonadPrompt, f, g BindFunc) (bool, error) {
	inner, err := m.Bind(ctx, ma, f)
	if err != nil {
		return false, err
	}
	left, err := m.Bind(ctx, inner, g)
	if err != nil {
		return false, err
	}

	right, err := m.Bind(ctx, ma, func(ctx context.Context, p types.Prompt) (types.MonadPrompt, error) {
		fx, err := f(ctx, p)
		if err != nil {
			return types.MonadPrompt{}, err
		}
		return m.Bind(ctx, fx, g)
	})
	if err != nil {
		return false, err
	}

	return StructurallyEqual(left, right), nil
}

// StructurallyEqual is the equality used for law checking: identical
// prompt hash (template plus prompt meta-level), quality within 0.01,
// and equal wrapper meta-level. Timestamps and history are deliberately
// excluded so re-executions of a non-deterministic collaborator still
// compare equal.
func StructurallyEqual(a, b types.MonadPrompt) bool {
	if HashPrompt(a.Prompt) != HashPrompt(b.Prompt) {
		return false
	}
	diff := a.Quality.Value - b.Quality.Value
	if diff < 0 {
		diff = -diff
	}
	return diff < qualityTolerance && a.MetaLevel == b.MetaLevel
}

// HashPrompt returns the SHA-256 hash of the prompt's template and
// meta-level, the identity used for structural comparison.
func HashPrompt(p types.Prompt) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s_%d", p.Template, p.MetaLevel))
	return hex.EncodeToString(sum[:])
}
