// Package types provides the shared value model for the categorical
// meta-prompting engine: tasks, prompts, complexity analyses, quality
// scores, and the closed strategy enumeration.
// This package exists to break import cycles between the functor, monad,
// and quality packages. Every value is immutable once constructed; all
// transformations return new values and never mutate in place.
package types

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// STRATEGY ENUMERATION
// =============================================================================

// Strategy is the closed set of prompting strategies. The first three are
// the complexity-dispatch targets; the rest exist for the natural
// transformation registry.
type Strategy int

const (
	StrategyDirectExecution Strategy = iota
	StrategyMultiApproachSynthesis
	StrategyAutonomousEvolution
	StrategyZeroShot
	StrategyFewShot
	StrategyChainOfThought
	StrategyTreeOfThought
	StrategyMetaPrompting
)

var strategyNames = map[Strategy]string{
	StrategyDirectExecution:        "Direct Execution",
	StrategyMultiApproachSynthesis: "Multi-Approach Synthesis",
	StrategyAutonomousEvolution:    "Autonomous Evolution",
	StrategyZeroShot:               "Zero-Shot",
	StrategyFewShot:                "Few-Shot",
	StrategyChainOfThought:         "Chain-of-Thought",
	StrategyTreeOfThought:          "Tree-of-Thought",
	StrategyMetaPrompting:          "Meta-Prompting",
}

// String returns the human-readable strategy name.
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// SelectStrategy maps an overall complexity score to an execution strategy.
// Thresholds are inclusive on the low end of each band:
// [0, 0.3) direct, [0.3, 0.7) multi-approach, [0.7, 1.0] autonomous.
func SelectStrategy(overall float64) Strategy {
	switch {
	case overall < 0.3:
		return StrategyDirectExecution
	case overall < 0.7:
		return StrategyMultiApproachSynthesis
	default:
		return StrategyAutonomousEvolution
	}
}

// =============================================================================
// TASK MODEL
// =============================================================================

// ComplexityAnalysis is the per-task complexity breakdown. Overall is the
// weighted roll-up and always lies in [0, 1].
type ComplexityAnalysis struct {
	Overall       float64
	Structural    float64
	Cognitive     float64
	Computational float64
	Coordination  float64
}

// Task describes a unit of work to be turned into a prompt. A nil
// Complexity means "not yet analyzed"; the functor fills it in.
type Task struct {
	Description string
	Complexity  *ComplexityAnalysis
	Constraints []string
	Examples    []string
	Metadata    map[string]any
}

// Clone returns a deep copy of the task. Task morphisms use this so the
// source task stays untouched.
func (t Task) Clone() Task {
	out := Task{
		Description: t.Description,
		Constraints: append([]string(nil), t.Constraints...),
		Examples:    append([]string(nil), t.Examples...),
		Metadata:    CloneAnyMap(t.Metadata),
	}
	if t.Complexity != nil {
		c := *t.Complexity
		out.Complexity = &c
	}
	return out
}

// =============================================================================
// PROMPT MODEL
// =============================================================================

// placeholderRe matches {name} template placeholders.
var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Prompt is an immutable prompt template with substitution variables,
// an open context map, and a recursion-depth counter. Enrichments return
// a new Prompt with MetaLevel incremented; the original stays valid.
type Prompt struct {
	Template  string
	Variables map[string]string
	Context   map[string]any
	MetaLevel int
}

// Render substitutes Variables into Template. A placeholder with no
// declared variable is an error: a silently truncated render must never
// reach quality assessment as if it were real model output.
func (p Prompt) Render() (string, error) {
	var missing []string
	rendered := placeholderRe.ReplaceAllStringFunc(p.Template, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := p.Variables[name]; ok {
			return v
		}
		missing = append(missing, name)
		return m
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingVariable, strings.Join(missing, ", "))
	}
	return rendered, nil
}

// WithTemplate returns a copy of the prompt with a new template and the
// same variables, context, and meta level.
func (p Prompt) WithTemplate(template string) Prompt {
	return Prompt{
		Template:  template,
		Variables: CloneStringMap(p.Variables),
		Context:   CloneAnyMap(p.Context),
		MetaLevel: p.MetaLevel,
	}
}

// WithContext returns a copy of the prompt with the given keys merged
// into its context.
func (p Prompt) WithContext(extra map[string]any) Prompt {
	ctx := CloneAnyMap(p.Context)
	for k, v := range extra {
		ctx[k] = v
	}
	return Prompt{
		Template:  p.Template,
		Variables: CloneStringMap(p.Variables),
		Context:   ctx,
		MetaLevel: p.MetaLevel,
	}
}

// =============================================================================
// QUALITY MODEL
// =============================================================================

// QualityScore is a bounded quality measurement with a per-dimension
// breakdown. Value stays consistent with the declared component weights
// when Components is non-empty.
type QualityScore struct {
	Value      float64
	Components map[string]float64
}

// TensorProduct folds two quality scores across a composed step. The
// combination rule is min, not average: a chain is only as strong as its
// weakest link.
func (q QualityScore) TensorProduct(other QualityScore) QualityScore {
	components := make(map[string]float64, len(q.Components))
	for k, v := range q.Components {
		components[k] = v
	}
	for k, v := range other.Components {
		if existing, ok := components[k]; ok {
			components[k] = min(existing, v)
		} else {
			components[k] = v
		}
	}
	return QualityScore{
		Value:      min(q.Value, other.Value),
		Components: components,
	}
}

// =============================================================================
// MONADIC WRAPPER
// =============================================================================

// MonadPrompt is a prompt wrapped in monadic context: quality, recursion
// depth, and the append-only history of prior prompts (oldest first).
// It lives here rather than in the monad package so the quality package
// can consume it without an import cycle.
type MonadPrompt struct {
	Prompt    Prompt
	Quality   QualityScore
	MetaLevel int
	History   []Prompt
	Timestamp time.Time
}

func (m MonadPrompt) String() string {
	return fmt.Sprintf("M(Prompt, q=%.2f, level=%d)", m.Quality.Value, m.MetaLevel)
}

// =============================================================================
// IMPROVEMENT MODEL
// =============================================================================

// ImprovementStrategy selects the scaffold applied when an improvement is
// integrated into a prompt.
type ImprovementStrategy string

const (
	ImproveNone                 ImprovementStrategy = ""
	ImproveAddStructure         ImprovementStrategy = "add_structure"
	ImproveAddReasoningSteps    ImprovementStrategy = "add_reasoning_steps"
	ImproveTryDifferentApproach ImprovementStrategy = "try_different_approach"
)

// Improvement is the structured output of improvement extraction. Flags
// from every matched rule persist together; Strategy holds only the last
// matching rule's choice.
type Improvement struct {
	Flags    map[string]bool
	Strategy ImprovementStrategy
}

// =============================================================================
// MAP HELPERS
// =============================================================================

// CloneStringMap copies a string map; nil in, empty map out.
func CloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CloneAnyMap copies a heterogeneous map; nil in, empty map out. Values
// are copied shallowly, which is enough because stored values are
// themselves immutable by convention.
func CloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
