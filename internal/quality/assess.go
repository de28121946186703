// Package quality scores model output against the prompt that produced
// it and derives structured improvements for the next refinement round.
// The scoring is a keyword/shape heuristic, not a semantic evaluator:
// the contract is that scores are bounded, deterministic, and
// reproducible for identical input, not that the judgment is right.
package quality

import (
	"regexp"
	"sort"
	"strings"

	"metaprompt/internal/types"
)

// Component weights for the overall quality roll-up. They sum to 1.0.
const (
	weightCorrectness  = 0.4
	weightClarity      = 0.3
	weightCompleteness = 0.2
	weightEfficiency   = 0.1
)

// Assessor scores model output for a prompt. The default is the
// heuristic below; callers may plug in their own.
type Assessor interface {
	Assess(output string, prompt types.Prompt) types.QualityScore
}

// HeuristicAssessor is the default keyword/shape based Assessor.
type HeuristicAssessor struct{}

// NewHeuristicAssessor returns the default assessor.
func NewHeuristicAssessor() *HeuristicAssessor {
	return &HeuristicAssessor{}
}

// Assess computes the four sub-scores and combines them with fixed
// weights: correctness 0.4, clarity 0.3, completeness 0.2,
// efficiency 0.1.
func (a *HeuristicAssessor) Assess(output string, prompt types.Prompt) types.QualityScore {
	components := map[string]float64{
		"correctness":  assessCorrectness(output),
		"clarity":      assessClarity(output),
		"completeness": assessCompleteness(output, prompt),
		"efficiency":   assessEfficiency(output),
	}

	overall := components["correctness"]*weightCorrectness +
		components["clarity"]*weightClarity +
		components["completeness"]*weightCompleteness +
		components["efficiency"]*weightEfficiency

	return types.QualityScore{
		Value:      types.Clamp01(overall),
		Components: components,
	}
}

var errorKeywords = []string{"error", "cannot", "unable", "impossible", "unclear"}

// assessCorrectness checks for a clear answer of plausible length with
// no failure keywords.
func assessCorrectness(output string) float64 {
	score := 0.5

	if len(strings.TrimSpace(output)) > 10 {
		score += 0.2
	}
	// Too short is likely incomplete.
	if len(output) > 50 {
		score += 0.1
	}
	// Too long is likely rambling.
	if len(output) < 2000 {
		score += 0.1
	}
	if !containsAny(output, errorKeywords) {
		score += 0.1
	}

	return min(score, 1.0)
}

var explanatoryWords = []string{"because", "therefore", "thus", "since", "so"}

// assessClarity rewards structure, lists, readable sentence length, and
// explanatory language.
func assessClarity(output string) float64 {
	score := 0.5

	if strings.Count(output, "\n\n") >= 1 {
		score += 0.15
	}
	if containsAnyExact(output, []string{"- ", "* ", "1.", "2."}) {
		score += 0.15
	}

	sentences := strings.Split(output, ".")
	totalWords := 0
	for _, s := range sentences {
		totalWords += len(strings.Fields(s))
	}
	avg := float64(totalWords) / float64(max(len(sentences), 1))
	if avg >= 10 && avg <= 30 {
		score += 0.1
	}

	if containsAny(output, explanatoryWords) {
		score += 0.1
	}

	return min(score, 1.0)
}

// assessCompleteness measures keyword overlap with the prompt plus
// example and edge-case coverage.
func assessCompleteness(output string, prompt types.Prompt) float64 {
	score := 0.6

	keywords := ExtractKeywords(promptText(prompt))
	outputLower := strings.ToLower(output)
	covered := 0
	for _, kw := range keywords {
		if strings.Contains(outputLower, kw) {
			covered++
		}
	}
	score += 0.2 * float64(covered) / float64(max(len(keywords), 1))

	if strings.Contains(outputLower, "example") || strings.Contains(outputLower, "e.g.") {
		score += 0.1
	}
	if containsAny(output, []string{"edge case", "corner case", "special case"}) {
		score += 0.1
	}

	return min(score, 1.0)
}

var inefficiencyKeywords = []string{"nested loop", "o(n^3)", "brute force", "exponential"}

// assessEfficiency rewards complexity awareness and penalty-free
// approaches; the base assumes the output is reasonable.
func assessEfficiency(output string) float64 {
	score := 0.7

	if containsAny(output, []string{"o(n)", "o(log n)", "complexity", "efficient"}) {
		score += 0.15
	}
	if containsAny(output, []string{"optimize", "improve", "faster", "better"}) {
		score += 0.1
	}
	if !containsAny(output, inefficiencyKeywords) {
		score += 0.05
	}

	return min(score, 1.0)
}

// promptText returns the rendered prompt when the render succeeds and
// the raw template otherwise. Assessment runs after unit/join already
// validated the render, so the fallback only matters for ad hoc prompts
// scored outside the monadic path.
func promptText(p types.Prompt) string {
	if rendered, err := p.Render(); err == nil {
		return rendered
	}
	return p.Template
}

var wordRe = regexp.MustCompile(`\b\w+\b`)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	"is": {}, "are": {}, "was": {}, "were": {},
}

// ExtractKeywords returns the unique significant lowercase words of the
// text, sorted for deterministic iteration.
func ExtractKeywords(text string) []string {
	seen := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopWords[w]; stop || len(w) <= 3 {
			continue
		}
		seen[w] = struct{}{}
	}
	keywords := make([]string, 0, len(seen))
	for w := range seen {
		keywords = append(keywords, w)
	}
	sort.Strings(keywords)
	return keywords
}

func containsAny(text string, needles []string) bool {
	lower := strings.ToLower(text)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// containsAnyExact matches case-sensitively (list markers).
func containsAnyExact(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
