package transform

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaprompt/internal/types"
)

func sampleTasks() []types.Task {
	return []types.Task{
		{Description: "Explain how photosynthesis works"},
		{Description: "Calculate the derivative of x^2"},
		{Description: "Sort a list of integers in descending order"},
		{Description: "Summarize the causes of the industrial revolution"},
	}
}

func sampleMorphisms() []func(types.Task) types.Task {
	return []func(types.Task) types.Task{
		func(t types.Task) types.Task {
			out := t.Clone()
			out.Description = strings.ToUpper(t.Description)
			return out
		},
		func(t types.Task) types.Task {
			out := t.Clone()
			out.Description = "Please " + t.Description
			return out
		},
		func(t types.Task) types.Task {
			out := t.Clone()
			out.Description = t.Description + " (important)"
			return out
		},
	}
}

func TestNaturalitySquares(t *testing.T) {
	r := NewRegistry()

	pairs := []struct {
		source, target types.Strategy
	}{
		{types.StrategyZeroShot, types.StrategyChainOfThought},
		{types.StrategyZeroShot, types.StrategyFewShot},
		{types.StrategyChainOfThought, types.StrategyTreeOfThought},
	}

	for _, pair := range pairs {
		t.Run(fmt.Sprintf("%s to %s", pair.source, pair.target), func(t *testing.T) {
			nt, err := r.Lookup(pair.source, pair.target)
			require.NoError(t, err)

			for _, task := range sampleTasks() {
				for _, f := range sampleMorphisms() {
					ok, err := r.VerifyNaturality(nt, task, f)
					require.NoError(t, err)
					assert.True(t, ok, "naturality square must commute for %q", task.Description)
				}
			}
		})
	}
}

func TestApply_Precondition(t *testing.T) {
	r := NewRegistry()
	nt, err := r.Lookup(types.StrategyZeroShot, types.StrategyChainOfThought)
	require.NoError(t, err)

	wrong := TaggedPrompt{Content: "anything", Strategy: types.StrategyFewShot}
	_, err = nt.Apply(wrong)
	assert.ErrorIs(t, err, ErrStrategyMismatch)
}

func TestIdentityTransformation(t *testing.T) {
	r := NewRegistry()

	for _, s := range []types.Strategy{types.StrategyZeroShot, types.StrategyChainOfThought} {
		functor, ok := r.Functor(s)
		require.True(t, ok)

		prompt := functor.Apply(types.Task{Description: "Test task"})
		result, err := Identity(s).Apply(prompt)
		require.NoError(t, err)
		assert.Equal(t, prompt, result, "identity must be a no-op under apply")
	}
}

func TestCompose(t *testing.T) {
	r := NewRegistry()

	alpha, err := r.Lookup(types.StrategyZeroShot, types.StrategyChainOfThought)
	require.NoError(t, err)
	beta, err := r.Lookup(types.StrategyChainOfThought, types.StrategyTreeOfThought)
	require.NoError(t, err)

	t.Run("vertical composition chains strategies", func(t *testing.T) {
		composed, err := Compose(alpha, beta)
		require.NoError(t, err)

		zs, ok := r.Functor(types.StrategyZeroShot)
		require.True(t, ok)
		result, err := composed.Apply(zs.Apply(types.Task{Description: "Solve the puzzle"}))
		require.NoError(t, err)

		assert.Equal(t, types.StrategyTreeOfThought, result.Strategy)
		assert.Contains(t, strings.ToLower(result.Content), "branch")
	})

	t.Run("quality factors multiply", func(t *testing.T) {
		composed, err := Compose(alpha, beta)
		require.NoError(t, err)
		assert.InDelta(t, 1.3125, composed.QualityFactor, 0.01)
	})

	t.Run("non-chaining pair is rejected", func(t *testing.T) {
		_, err := Compose(beta, alpha)
		assert.ErrorIs(t, err, ErrNotComposable)
	})

	t.Run("factor escaping the band is rejected", func(t *testing.T) {
		big := NaturalTransformation{
			Source:        types.StrategyZeroShot,
			Target:        types.StrategyChainOfThought,
			Transform:     func(p TaggedPrompt) TaggedPrompt { return p },
			QualityFactor: 1.9,
		}
		chain := NaturalTransformation{
			Source:        types.StrategyChainOfThought,
			Target:        types.StrategyTreeOfThought,
			Transform:     func(p TaggedPrompt) TaggedPrompt { return p },
			QualityFactor: 1.9,
		}
		_, err := Compose(big, chain)
		assert.ErrorIs(t, err, ErrQualityFactorOutOfBounds)
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	t.Run("lookup miss", func(t *testing.T) {
		_, err := r.Lookup(types.StrategyTreeOfThought, types.StrategyZeroShot)
		assert.ErrorIs(t, err, ErrUnknownTransformation)
	})

	t.Run("register validates the quality factor", func(t *testing.T) {
		err := r.Register(NaturalTransformation{
			Source:        types.StrategyMetaPrompting,
			Target:        types.StrategyZeroShot,
			Transform:     func(p TaggedPrompt) TaggedPrompt { return p },
			QualityFactor: 2.5,
		})
		assert.ErrorIs(t, err, ErrQualityFactorOutOfBounds)
	})

	t.Run("built-in factors improve quality within bounds", func(t *testing.T) {
		for _, pair := range []struct {
			source, target types.Strategy
		}{
			{types.StrategyZeroShot, types.StrategyChainOfThought},
			{types.StrategyZeroShot, types.StrategyFewShot},
			{types.StrategyChainOfThought, types.StrategyTreeOfThought},
			{types.StrategyFewShot, types.StrategyChainOfThought},
		} {
			nt, err := r.Lookup(pair.source, pair.target)
			require.NoError(t, err)
			assert.Greater(t, nt.QualityFactor, 1.0)
			assert.LessOrEqual(t, nt.QualityFactor, maxQualityFactor)
		}
	})
}

func TestTransformationPipeline(t *testing.T) {
	r := NewRegistry()

	task := types.Task{Description: "Explain how photosynthesis works"}

	zs, ok := r.Functor(types.StrategyZeroShot)
	require.True(t, ok)

	prompt := zs.Apply(task)
	prompt, err := r.Apply(types.StrategyZeroShot, types.StrategyFewShot, prompt)
	require.NoError(t, err)
	prompt, err = r.Apply(types.StrategyFewShot, types.StrategyChainOfThought, prompt)
	require.NoError(t, err)

	assert.Equal(t, types.StrategyChainOfThought, prompt.Strategy)
	lower := strings.ToLower(prompt.Content)
	assert.Contains(t, lower, "step by step")
	assert.Contains(t, lower, "example")
}

func TestTransformationPreservesTask(t *testing.T) {
	r := NewRegistry()
	task := types.Task{Description: "Calculate the derivative of x^2"}

	for key, nt := range r.transforms {
		functor, ok := r.Functor(key.source)
		require.True(t, ok)

		transformed, err := nt.Apply(functor.Apply(task))
		require.NoError(t, err)

		lower := strings.ToLower(transformed.Content)
		assert.True(t, strings.Contains(lower, "derivative") || strings.Contains(lower, "x^2"),
			"%s to %s lost the task content", key.source, key.target)
	}
}
