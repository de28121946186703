// Package complexity estimates how demanding a task is before any prompt
// is built. The analysis is a deterministic heuristic over the task text
// and its attached constraints and examples; the functor uses the overall
// score to dispatch a strategy.
package complexity

import (
	"strings"

	"metaprompt/internal/types"
)

// Dimension weights for the overall roll-up. They sum to 1.0.
const (
	weightStructural    = 0.30
	weightCognitive     = 0.30
	weightComputational = 0.25
	weightCoordination  = 0.15
)

var cognitiveSignals = []string{
	"design", "architecture", "distributed", "optimize", "concurrent",
	"real-time", "scalable", "fault-tolerant", "trade-off", "strategy",
}

var computationalSignals = []string{
	"performance", "complexity", "algorithm", "search", "sort",
	"index", "cache", "throughput", "latency", "memory",
}

var coordinationSignals = []string{
	"integrate", "api", "service", "pipeline", "workflow",
	"authentication", "authorization", "deploy", "migrate",
}

// Analyze produces a ComplexityAnalysis for the task. The same task
// always yields the same analysis; every dimension and the overall score
// are clamped to [0, 1].
func Analyze(task types.Task) types.ComplexityAnalysis {
	desc := strings.ToLower(task.Description)
	words := strings.Fields(desc)

	structural := structuralScore(len(words), len(task.Constraints))
	cognitive := signalScore(desc, cognitiveSignals, 0.05)
	computational := signalScore(desc, computationalSignals, 0.05)
	coordination := coordinationScore(desc, task)

	overall := weightStructural*structural +
		weightCognitive*cognitive +
		weightComputational*computational +
		weightCoordination*coordination

	return types.ComplexityAnalysis{
		Overall:       types.Clamp01(overall),
		Structural:    structural,
		Cognitive:     cognitive,
		Computational: computational,
		Coordination:  coordination,
	}
}

// structuralScore grows with description length and constraint count.
// A three-word task scores near zero; a paragraph with several
// constraints approaches one.
func structuralScore(wordCount, constraintCount int) float64 {
	score := float64(wordCount) / 40.0
	score += 0.1 * float64(constraintCount)
	return types.Clamp01(score)
}

// signalScore starts at a small floor and adds a bounded increment per
// detected keyword.
func signalScore(desc string, signals []string, base float64) float64 {
	score := base
	for _, s := range signals {
		if strings.Contains(desc, s) {
			score += 0.15
		}
	}
	return types.Clamp01(score)
}

func coordinationScore(desc string, task types.Task) float64 {
	score := signalScore(desc, coordinationSignals, 0.0)
	// Examples hint at interface surface the solution must honor.
	score += 0.05 * float64(len(task.Examples))
	return types.Clamp01(score)
}
