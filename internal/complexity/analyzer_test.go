package complexity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"metaprompt/internal/types"
)

func TestAnalyze_Bounds(t *testing.T) {
	tasks := []types.Task{
		{Description: ""},
		{Description: "Solve: find max"},
		{Description: "Design a distributed fault-tolerant real-time cache with authentication, " +
			"optimized for throughput and latency, integrating an external API service pipeline " +
			"with careful trade-off analysis across concurrent workloads and memory pressure",
			Constraints: []string{"a", "b", "c", "d", "e"},
			Examples:    []string{"x", "y"}},
	}

	for _, task := range tasks {
		got := Analyze(task)
		assert.GreaterOrEqual(t, got.Overall, 0.0)
		assert.LessOrEqual(t, got.Overall, 1.0)
		for _, dim := range []float64{got.Structural, got.Cognitive, got.Computational, got.Coordination} {
			assert.GreaterOrEqual(t, dim, 0.0)
			assert.LessOrEqual(t, dim, 1.0)
		}
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	task := types.Task{
		Description: "Implement binary search with error handling",
		Constraints: []string{"no recursion"},
	}
	first := Analyze(task)
	second := Analyze(task)
	assert.Equal(t, first, second)
}

func TestAnalyze_Ordering(t *testing.T) {
	trivial := Analyze(types.Task{Description: "Solve: find max"})
	hard := Analyze(types.Task{
		Description: "Design a distributed scalable fault-tolerant architecture to optimize " +
			"concurrent real-time throughput with careful algorithm and cache strategy trade-off " +
			"analysis, then integrate the service pipeline behind an authentication API",
		Constraints: []string{"99.99% uptime", "zero-downtime deploy", "multi-region"},
	})

	assert.Less(t, trivial.Overall, 0.3, "a three-word task should dispatch to direct execution")
	assert.Greater(t, hard.Overall, trivial.Overall)
	assert.Equal(t, types.StrategyDirectExecution, types.SelectStrategy(trivial.Overall))
}
