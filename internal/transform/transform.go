// Package transform implements the natural transformation registry:
// conversions between prompts built under different strategies, each
// carrying a quality factor and satisfying a naturality contract.
package transform

import (
	"errors"
	"fmt"
	"strings"

	"metaprompt/internal/types"
)

// Quality factors outside this band indicate a misconfigured
// transformation rather than a legitimate quality estimate.
const (
	minQualityFactor = 0.5
	maxQualityFactor = 2.0
)

var (
	// ErrStrategyMismatch is the precondition failure: the input
	// prompt's strategy tag does not match the transformation's source.
	ErrStrategyMismatch = errors.New("transform: strategy mismatch")

	// ErrNotComposable is returned when two transformations do not
	// chain: the first one's target differs from the second's source.
	ErrNotComposable = errors.New("transform: transformations do not compose")

	// ErrQualityFactorOutOfBounds is returned when a transformation's
	// quality factor leaves the accepted band.
	ErrQualityFactorOutOfBounds = errors.New("transform: quality factor out of bounds")

	// ErrUnknownTransformation is returned on registry lookup misses.
	ErrUnknownTransformation = errors.New("transform: no transformation registered")
)

// =============================================================================
// TAGGED PROMPTS AND STRATEGY FUNCTORS
// =============================================================================

// TaggedPrompt is a rendered prompt annotated with the strategy that
// produced it. The tag is what transformation preconditions check.
type TaggedPrompt struct {
	Content  string
	Strategy types.Strategy
	Metadata map[string]any
}

// StrategyFunctor maps tasks into prompts under one fixed strategy.
type StrategyFunctor interface {
	Strategy() types.Strategy
	Apply(task types.Task) TaggedPrompt
}

// ZeroShotFunctor emits the task description directly.
type ZeroShotFunctor struct{}

func (ZeroShotFunctor) Strategy() types.Strategy { return types.StrategyZeroShot }

func (ZeroShotFunctor) Apply(task types.Task) TaggedPrompt {
	return TaggedPrompt{
		Content:  task.Description,
		Strategy: types.StrategyZeroShot,
		Metadata: map[string]any{},
	}
}

// FewShotFunctor prefixes worked examples before the task.
type FewShotFunctor struct {
	NumExamples int
}

func (FewShotFunctor) Strategy() types.Strategy { return types.StrategyFewShot }

func (f FewShotFunctor) Apply(task types.Task) TaggedPrompt {
	n := f.NumExamples
	if n <= 0 {
		n = 3
	}
	return TaggedPrompt{
		Content:  renderExamples(n) + "\n\nNow, " + task.Description,
		Strategy: types.StrategyFewShot,
		Metadata: map[string]any{"num_examples": n},
	}
}

func renderExamples(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Example %d:\nInput: [example input %d]\nOutput: [example output %d]", i, i, i)
	}
	return b.String()
}

const reasoningScaffold = `

Let's think through this step by step:

1. First, I'll analyze the problem
2. Then, I'll identify the key components
3. Next, I'll work through the solution
4. Finally, I'll verify the result`

const branchingScaffold = `

Let's explore multiple reasoning paths:

Branch A: [First approach]
  - Step A1: ...
  - Step A2: ...
  - Evaluate: [score]

Branch B: [Alternative approach]
  - Step B1: ...
  - Step B2: ...
  - Evaluate: [score]

Select best branch and continue...`

// ChainOfThoughtFunctor appends a step-by-step reasoning scaffold.
type ChainOfThoughtFunctor struct{}

func (ChainOfThoughtFunctor) Strategy() types.Strategy { return types.StrategyChainOfThought }

func (ChainOfThoughtFunctor) Apply(task types.Task) TaggedPrompt {
	return TaggedPrompt{
		Content:  task.Description + reasoningScaffold,
		Strategy: types.StrategyChainOfThought,
		Metadata: map[string]any{"reasoning_steps": 4},
	}
}

// TreeOfThoughtFunctor appends a branching-exploration scaffold.
type TreeOfThoughtFunctor struct{}

func (TreeOfThoughtFunctor) Strategy() types.Strategy { return types.StrategyTreeOfThought }

func (TreeOfThoughtFunctor) Apply(task types.Task) TaggedPrompt {
	return TaggedPrompt{
		Content:  task.Description + branchingScaffold,
		Strategy: types.StrategyTreeOfThought,
		Metadata: map[string]any{"num_branches": 2},
	}
}

// MetaPromptingFunctor wraps the task in a strategy-selection frame.
type MetaPromptingFunctor struct{}

func (MetaPromptingFunctor) Strategy() types.Strategy { return types.StrategyMetaPrompting }

func (MetaPromptingFunctor) Apply(task types.Task) TaggedPrompt {
	content := fmt.Sprintf(`Task: %s

Meta-analysis:
1. What type of problem is this?
2. What strategy would be most effective?
3. What are the key constraints?

Strategy Selection:
Based on the analysis, I'll use [selected strategy] because [reasoning].

Execution:
[Apply selected strategy]`, task.Description)
	return TaggedPrompt{
		Content:  content,
		Strategy: types.StrategyMetaPrompting,
		Metadata: map[string]any{"adaptive": true},
	}
}

// =============================================================================
// NATURAL TRANSFORMATIONS
// =============================================================================

// NaturalTransformation converts prompts built under the source
// strategy into prompts under the target strategy. QualityFactor is the
// expected multiplicative effect on downstream quality.
type NaturalTransformation struct {
	Source        types.Strategy
	Target        types.Strategy
	Transform     func(TaggedPrompt) TaggedPrompt
	QualityFactor float64
}

// Apply runs the transformation. The input's strategy tag must equal
// the source strategy; anything else is a precondition violation.
func (nt NaturalTransformation) Apply(p TaggedPrompt) (TaggedPrompt, error) {
	if p.Strategy != nt.Source {
		return TaggedPrompt{}, fmt.Errorf("%w: expected %s prompt, got %s",
			ErrStrategyMismatch, nt.Source, p.Strategy)
	}
	return nt.Transform(p), nil
}

// Identity returns the identity transformation for a strategy: a no-op
// under Apply, quality factor 1.
func Identity(s types.Strategy) NaturalTransformation {
	return NaturalTransformation{
		Source:        s,
		Target:        s,
		Transform:     func(p TaggedPrompt) TaggedPrompt { return p },
		QualityFactor: 1.0,
	}
}

// Compose builds the vertical composition beta after alpha. Quality
// factors multiply; the product must stay within the accepted band.
func Compose(alpha, beta NaturalTransformation) (NaturalTransformation, error) {
	if alpha.Target != beta.Source {
		return NaturalTransformation{}, fmt.Errorf("%w: %s→%s then %s→%s",
			ErrNotComposable, alpha.Source, alpha.Target, beta.Source, beta.Target)
	}
	factor := alpha.QualityFactor * beta.QualityFactor
	if factor < minQualityFactor || factor > maxQualityFactor {
		return NaturalTransformation{}, fmt.Errorf("%w: composed factor %.4f",
			ErrQualityFactorOutOfBounds, factor)
	}
	return NaturalTransformation{
		Source:        alpha.Source,
		Target:        beta.Target,
		Transform:     func(p TaggedPrompt) TaggedPrompt { return beta.Transform(alpha.Transform(p)) },
		QualityFactor: factor,
	}, nil
}

func withMetadata(p TaggedPrompt, extra map[string]any) map[string]any {
	merged := types.CloneAnyMap(p.Metadata)
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func zeroShotToChainOfThought() NaturalTransformation {
	return NaturalTransformation{
		Source: types.StrategyZeroShot,
		Target: types.StrategyChainOfThought,
		Transform: func(p TaggedPrompt) TaggedPrompt {
			return TaggedPrompt{
				Content:  p.Content + reasoningScaffold,
				Strategy: types.StrategyChainOfThought,
				Metadata: withMetadata(p, map[string]any{"transformed_from": "zero-shot"}),
			}
		},
		QualityFactor: 1.25,
	}
}

func zeroShotToFewShot() NaturalTransformation {
	return NaturalTransformation{
		Source: types.StrategyZeroShot,
		Target: types.StrategyFewShot,
		Transform: func(p TaggedPrompt) TaggedPrompt {
			return TaggedPrompt{
				Content:  renderExamples(3) + "\n\nNow, " + p.Content,
				Strategy: types.StrategyFewShot,
				Metadata: withMetadata(p, map[string]any{"num_examples": 3, "transformed_from": "zero-shot"}),
			}
		},
		QualityFactor: 1.15,
	}
}

func chainOfThoughtToTreeOfThought() NaturalTransformation {
	return NaturalTransformation{
		Source: types.StrategyChainOfThought,
		Target: types.StrategyTreeOfThought,
		Transform: func(p TaggedPrompt) TaggedPrompt {
			// Strip the reasoning scaffold back to the base task.
			base := strings.TrimSpace(strings.Split(p.Content, "Let's think")[0])
			return TaggedPrompt{
				Content:  base + branchingScaffold,
				Strategy: types.StrategyTreeOfThought,
				Metadata: withMetadata(p, map[string]any{"num_branches": 2, "transformed_from": "chain-of-thought"}),
			}
		},
		QualityFactor: 1.05,
	}
}

func fewShotToChainOfThought() NaturalTransformation {
	return NaturalTransformation{
		Source: types.StrategyFewShot,
		Target: types.StrategyChainOfThought,
		Transform: func(p TaggedPrompt) TaggedPrompt {
			content := p.Content + `

Let's think through this step by step:

1. Looking at the examples above, I notice the pattern
2. The key transformation is...
3. Applying this to the current task...
4. Therefore, the answer is...`
			return TaggedPrompt{
				Content:  content,
				Strategy: types.StrategyChainOfThought,
				Metadata: withMetadata(p, map[string]any{"transformed_from": "few-shot"}),
			}
		},
		QualityFactor: 1.10,
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

type pairKey struct {
	source, target types.Strategy
}

// Registry holds strategy functors and the transformations between
// them, keyed by (source, target).
type Registry struct {
	functors   map[types.Strategy]StrategyFunctor
	transforms map[pairKey]NaturalTransformation
}

// NewRegistry returns a registry pre-populated with the built-in
// strategy functors and transformations.
func NewRegistry() *Registry {
	r := &Registry{
		functors:   map[types.Strategy]StrategyFunctor{},
		transforms: map[pairKey]NaturalTransformation{},
	}

	for _, f := range []StrategyFunctor{
		ZeroShotFunctor{},
		FewShotFunctor{},
		ChainOfThoughtFunctor{},
		TreeOfThoughtFunctor{},
		MetaPromptingFunctor{},
	} {
		r.functors[f.Strategy()] = f
	}

	for _, nt := range []NaturalTransformation{
		zeroShotToChainOfThought(),
		zeroShotToFewShot(),
		chainOfThoughtToTreeOfThought(),
		fewShotToChainOfThought(),
	} {
		// Built-ins are in-band; Register cannot fail here.
		_ = r.Register(nt)
	}
	return r
}

// Register adds a transformation after validating its quality factor.
func (r *Registry) Register(nt NaturalTransformation) error {
	if nt.QualityFactor < minQualityFactor || nt.QualityFactor > maxQualityFactor {
		return fmt.Errorf("%w: %s→%s factor %.4f",
			ErrQualityFactorOutOfBounds, nt.Source, nt.Target, nt.QualityFactor)
	}
	r.transforms[pairKey{nt.Source, nt.Target}] = nt
	return nil
}

// Functor returns the strategy functor registered for a strategy.
func (r *Registry) Functor(s types.Strategy) (StrategyFunctor, bool) {
	f, ok := r.functors[s]
	return f, ok
}

// Lookup returns the transformation registered for a strategy pair.
func (r *Registry) Lookup(source, target types.Strategy) (NaturalTransformation, error) {
	nt, ok := r.transforms[pairKey{source, target}]
	if !ok {
		return NaturalTransformation{}, fmt.Errorf("%w: %s→%s",
			ErrUnknownTransformation, source, target)
	}
	return nt, nil
}

// Apply looks up and runs the transformation for a strategy pair.
func (r *Registry) Apply(source, target types.Strategy, p TaggedPrompt) (TaggedPrompt, error) {
	nt, err := r.Lookup(source, target)
	if err != nil {
		return TaggedPrompt{}, err
	}
	return nt.Apply(p)
}

// =============================================================================
// NATURALITY VERIFICATION
// =============================================================================

// Content-length drift tolerance for semantic equivalence. Exact string
// equality is too strict for natural-language scaffolding.
const naturalityTolerance = 0.3

// VerifyNaturality checks the naturality square for one transformation
// against one task morphism: transforming F(f(task)) must be
// semantically equivalent to building G(f(task)) directly.
func (r *Registry) VerifyNaturality(nt NaturalTransformation, task types.Task, f func(types.Task) types.Task) (bool, error) {
	source, ok := r.Functor(nt.Source)
	if !ok {
		return false, fmt.Errorf("transform: no functor for strategy %s", nt.Source)
	}
	target, ok := r.Functor(nt.Target)
	if !ok {
		return false, fmt.Errorf("transform: no functor for strategy %s", nt.Target)
	}

	mapped := f(task)

	// Top then right: F(f(task)) through the transformation.
	viaTransform, err := nt.Apply(source.Apply(mapped))
	if err != nil {
		return false, err
	}

	// Left then bottom: G applied to f(task) directly.
	direct := target.Apply(mapped)

	return semanticallyEquivalent(viaTransform, direct), nil
}

// semanticallyEquivalent accepts prompts with the same strategy tag
// whose normalized content lengths agree within the tolerance.
func semanticallyEquivalent(a, b TaggedPrompt) bool {
	if a.Strategy != b.Strategy {
		return false
	}
	na, nb := normalize(a.Content), normalize(b.Content)
	longest := max(len(na), len(nb))
	if longest == 0 {
		return true
	}
	drift := len(na) - len(nb)
	if drift < 0 {
		drift = -drift
	}
	return float64(drift) < float64(longest)*naturalityTolerance
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
