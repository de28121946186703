// Package functor maps tasks to initial prompts. The mapping analyzes
// task complexity, dispatches a strategy from the overall score, and
// builds a strategy-specific prompt that carries the task, its
// complexity, and the chosen strategy in context. Task morphisms lift to
// prompt morphisms through the same mapping, which is what makes the
// identity and composition laws hold exactly.
package functor

import (
	"metaprompt/internal/complexity"
	"metaprompt/internal/types"
)

// TaskMorphism transforms one task into another without mutating the
// source.
type TaskMorphism func(types.Task) types.Task

// Functor maps the category of tasks into the category of prompts.
type Functor struct {
	analyze        func(types.Task) types.ComplexityAnalysis
	selectStrategy func(float64) types.Strategy
}

// New returns a functor wired to the default complexity analyzer and
// threshold-based strategy selection.
func New() *Functor {
	return &Functor{
		analyze:        complexity.Analyze,
		selectStrategy: types.SelectStrategy,
	}
}

// NewWith builds a functor with custom analysis and selection, used by
// tests to pin complexity scores.
func NewWith(analyze func(types.Task) types.ComplexityAnalysis, selectStrategy func(float64) types.Strategy) *Functor {
	return &Functor{analyze: analyze, selectStrategy: selectStrategy}
}

// MapObject maps a task to its initial prompt. Deterministic given the
// analyzer and selector: the same task always produces the same prompt.
// A pre-attached complexity analysis is honored; otherwise one is
// computed. An empty description is a valid boundary case and still
// yields a well-formed prompt.
func (f *Functor) MapObject(task types.Task) types.Prompt {
	var analysis types.ComplexityAnalysis
	if task.Complexity != nil {
		analysis = *task.Complexity
	} else {
		analysis = f.analyze(task)
	}
	strategy := f.selectStrategy(analysis.Overall)

	return types.Prompt{
		Template:  templateFor(strategy),
		Variables: map[string]string{"description": task.Description},
		Context: map[string]any{
			"task":        task.Clone(),
			"description": task.Description,
			"complexity":  analysis,
			"strategy":    strategy,
			"constraints": append([]string(nil), task.Constraints...),
			"examples":    append([]string(nil), task.Examples...),
		},
		MetaLevel: 0,
	}
}

// MapMorphism lifts a task morphism to a prompt morphism. The lifted
// morphism recovers the task from the prompt's context, transforms it,
// and re-maps; a prompt built outside this functor has no task to
// recover, so the lifted morphism is the identity there.
func (f *Functor) MapMorphism(m TaskMorphism) func(types.Prompt) types.Prompt {
	return func(p types.Prompt) types.Prompt {
		task, ok := p.Context["task"].(types.Task)
		if !ok {
			return p
		}
		return f.MapObject(m(task))
	}
}

// templateFor returns the strategy-specific prompt scaffold. Every
// template declares exactly one {description} variable.
func templateFor(s types.Strategy) string {
	switch s {
	case types.StrategyMultiApproachSynthesis:
		return `Task: {description}

Develop several candidate approaches, compare their trade-offs, and synthesize the strongest into a single solution.`
	case types.StrategyAutonomousEvolution:
		return `Task: {description}

Draft a solution, critique it, and evolve it through further drafts until no critique finds a real weakness. Present the final form.`
	default:
		return `Task: {description}

Provide a direct, complete solution.`
	}
}

// =============================================================================
// LAW VERIFICATION
// =============================================================================

// VerifyIdentityLaw checks F(id)(t) == F(t). Diagnostic, used by the
// test suite rather than enforced at runtime.
func (f *Functor) VerifyIdentityLaw(task types.Task) bool {
	identity := func(t types.Task) types.Task { return t }
	return promptsEqual(f.MapObject(identity(task)), f.MapObject(task))
}

// VerifyCompositionLaw checks F(g∘f)(t) == (F(g)∘F(f))(t), comparing
// structurally.
func (f *Functor) VerifyCompositionLaw(task types.Task, m1, m2 TaskMorphism) bool {
	left := f.MapObject(m2(m1(task)))

	lifted1 := f.MapMorphism(m1)
	lifted2 := f.MapMorphism(m2)
	right := lifted2(lifted1(f.MapObject(task)))

	return promptsEqual(left, right)
}

// promptsEqual is the structural equality used for law checking: same
// template, same strategy tag, same embedded description, and a non-nil
// context on both sides.
func promptsEqual(a, b types.Prompt) bool {
	if a.Context == nil || b.Context == nil {
		return false
	}
	if a.Template != b.Template {
		return false
	}
	if a.Context["strategy"] != b.Context["strategy"] {
		return false
	}
	return a.Variables["description"] == b.Variables["description"]
}
