package quality

import (
	"fmt"

	"metaprompt/internal/types"
)

// Quality below this triggers the structure scaffold.
const clarityThreshold = 0.80

// Fallback when a history entry carries no recorded quality.
const defaultHistoryQuality = 0.5

// ExtractImprovement derives a structured improvement from a wrapped
// prompt's quality, depth, and history. Rules are evaluated in order and
// a later rule's strategy overwrites an earlier one's, while every
// matched rule's flag persists. The last-write-wins ordering is observed
// behavior carried over deliberately; do not reorder without a product
// decision.
func ExtractImprovement(mp types.MonadPrompt) types.Improvement {
	imp := types.Improvement{Flags: make(map[string]bool)}

	if mp.Quality.Value < clarityThreshold {
		imp.Flags["needs_clarity"] = true
		imp.Strategy = types.ImproveAddStructure
	}

	if mp.MetaLevel == 0 {
		imp.Flags["add_meta_reflection"] = true
		imp.Strategy = types.ImproveAddReasoningSteps
	}

	if len(mp.History) > 0 {
		prev := defaultHistoryQuality
		if q, ok := mp.History[len(mp.History)-1].Context["quality"].(float64); ok {
			prev = q
		}
		if mp.Quality.Value <= prev {
			imp.Flags["quality_stagnant"] = true
			imp.Strategy = types.ImproveTryDifferentApproach
		}
	}

	return imp
}

// IntegrateImprovement applies the improvement's scaffold to the prompt
// template. It is a pure transformation: the input prompt is untouched,
// and the result always sits one meta-level deeper with the improvement
// recorded in its context. An absent or unrecognized strategy leaves the
// template unchanged.
func IntegrateImprovement(prompt types.Prompt, imp types.Improvement) types.Prompt {
	template := prompt.Template

	switch imp.Strategy {
	case types.ImproveAddStructure:
		template = fmt.Sprintf(`Let's approach this systematically:

%s

Provide your solution with clear structure:
1. Analysis
2. Approach
3. Solution
4. Verification`, template)

	case types.ImproveAddReasoningSteps:
		template = fmt.Sprintf(`Think step-by-step about this problem:

%s

Show your reasoning process:
- What is the core problem?
- What approach will you use?
- Why is this approach optimal?
- What is the final solution?`, template)

	case types.ImproveTryDifferentApproach:
		template = fmt.Sprintf(`Consider alternative approaches to this problem:

%s

Explore multiple solution strategies:
1. Approach A: [describe]
2. Approach B: [describe]
3. Best approach: [select and justify]
4. Final solution: [implement]`, template)
	}

	enhanced := prompt.WithTemplate(template).WithContext(map[string]any{
		"improved":             true,
		"improvement_strategy": string(imp.Strategy),
	})
	enhanced.MetaLevel = prompt.MetaLevel + 1
	return enhanced
}
