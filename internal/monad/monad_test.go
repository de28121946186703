package monad

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaprompt/internal/functor"
	"metaprompt/internal/perception"
	"metaprompt/internal/types"
)

func basePrompt(template string) types.Prompt {
	return types.Prompt{
		Template:  template,
		Variables: map[string]string{"task": "find the maximum element"},
		Context:   map[string]any{"test": true},
	}
}

// lawfulMonad returns a monad with a pure unit (constant quality, no
// collaborator) and a join that flattens the layer bind introduced.
// Against this reference instance all three laws hold, which is what
// validates the verification machinery itself.
func lawfulMonad() *Monad {
	unit := func(_ context.Context, p types.Prompt) (types.MonadPrompt, error) {
		return types.MonadPrompt{
			Prompt:    p,
			Quality:   types.QualityScore{Value: 0.75, Components: map[string]float64{"fixed": 0.75}},
			MetaLevel: 0,
			Timestamp: time.Now(),
		}, nil
	}
	join := func(_ context.Context, nested types.MonadPrompt) (types.MonadPrompt, error) {
		return types.MonadPrompt{
			Prompt:    nested.Prompt,
			Quality:   nested.Quality,
			MetaLevel: nested.MetaLevel - 1,
			History:   nested.History,
			Timestamp: time.Now(),
		}, nil
	}
	return New(unit, join)
}

func enhance(m *Monad, suffix string) BindFunc {
	return func(ctx context.Context, p types.Prompt) (types.MonadPrompt, error) {
		return m.Unit(ctx, p.WithTemplate(p.Template+" "+suffix))
	}
}

func TestMonadLaws_ReferenceInstance(t *testing.T) {
	ctx := context.Background()
	m := lawfulMonad()

	prompts := []types.Prompt{
		basePrompt("Solve: {task}"),
		basePrompt("Step-by-step solution for: {task}"),
		basePrompt("Provide multiple approaches to: {task}"),
	}

	t.Run("left identity", func(t *testing.T) {
		for _, p := range prompts {
			ok, err := m.VerifyLeftIdentity(ctx, p, enhance(m, "(enhanced)"))
			require.NoError(t, err)
			assert.True(t, ok, "left identity violated for %q", p.Template)
		}
	})

	t.Run("right identity", func(t *testing.T) {
		for _, p := range prompts {
			ma, err := m.Unit(ctx, p)
			require.NoError(t, err)
			ok, err := m.VerifyRightIdentity(ctx, ma)
			require.NoError(t, err)
			assert.True(t, ok, "right identity violated for %q", p.Template)
		}
	})

	t.Run("associativity", func(t *testing.T) {
		for _, p := range prompts {
			ma, err := m.Unit(ctx, p)
			require.NoError(t, err)
			ok, err := m.VerifyAssociativity(ctx, ma, enhance(m, "(step 1)"), enhance(m, "(step 2)"))
			require.NoError(t, err)
			assert.True(t, ok, "associativity violated for %q", p.Template)
		}
	})
}

func TestUnit_RecursiveMetaMonad(t *testing.T) {
	ctx := context.Background()
	m := NewRecursiveMetaMonad(perception.NewEchoClient(), nil)

	t.Run("wraps at depth zero with assessed quality", func(t *testing.T) {
		mp, err := m.Unit(ctx, basePrompt("Solve: {task}"))
		require.NoError(t, err)

		assert.Equal(t, 0, mp.MetaLevel)
		assert.Empty(t, mp.History)
		assert.GreaterOrEqual(t, mp.Quality.Value, 0.0)
		assert.LessOrEqual(t, mp.Quality.Value, 1.0)
		assert.NotEmpty(t, mp.Quality.Components)
	})

	t.Run("referentially fresh on every call", func(t *testing.T) {
		first, err := m.Unit(ctx, basePrompt("Solve: {task}"))
		require.NoError(t, err)
		second, err := m.Unit(ctx, basePrompt("Solve: {task}"))
		require.NoError(t, err)
		// Same structural value, but a new wrapping each time.
		assert.True(t, StructurallyEqual(first, second))
		assert.False(t, second.Timestamp.Before(first.Timestamp))
	})

	t.Run("render failure surfaces before the collaborator is called", func(t *testing.T) {
		client := perception.NewEchoClient()
		failing := NewRecursiveMetaMonad(client, nil)
		_, err := failing.Unit(ctx, types.Prompt{Template: "Solve: {task} using {missing}"})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrMissingVariable)
		assert.Zero(t, client.Calls(), "no completion for a malformed render")
	})

	t.Run("collaborator failure propagates", func(t *testing.T) {
		exhausted := NewRecursiveMetaMonad(perception.NewScriptedClient(), nil)
		_, err := exhausted.Unit(ctx, basePrompt("Solve: {task}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "completion collaborator")
	})
}

func TestBind_RecursiveMetaMonad(t *testing.T) {
	ctx := context.Background()
	m := NewRecursiveMetaMonad(perception.NewEchoClient(), nil)

	t.Run("advances depth and appends history", func(t *testing.T) {
		ma, err := m.Unit(ctx, basePrompt("Solve: {task}"))
		require.NoError(t, err)

		mb, err := m.Bind(ctx, ma, enhance(m, "(enhanced)"))
		require.NoError(t, err)

		assert.Equal(t, 1, mb.MetaLevel)
		require.GreaterOrEqual(t, len(mb.History), 1)
		assert.Equal(t, ma.Prompt.Template, mb.History[len(mb.History)-1].Template)
	})

	t.Run("history records the superseded quality", func(t *testing.T) {
		ma, err := m.Unit(ctx, basePrompt("Solve: {task}"))
		require.NoError(t, err)

		mb, err := m.Bind(ctx, ma, enhance(m, "(enhanced)"))
		require.NoError(t, err)

		recorded, ok := mb.History[len(mb.History)-1].Context["quality"].(float64)
		require.True(t, ok)
		assert.InDelta(t, ma.Quality.Value, recorded, 1e-9)
	})

	t.Run("original wrapper is untouched", func(t *testing.T) {
		ma, err := m.Unit(ctx, basePrompt("Solve: {task}"))
		require.NoError(t, err)
		level, histLen := ma.MetaLevel, len(ma.History)

		_, err = m.Bind(ctx, ma, enhance(m, "(enhanced)"))
		require.NoError(t, err)

		assert.Equal(t, level, ma.MetaLevel)
		assert.Equal(t, histLen, len(ma.History))
	})
}

// TestBind_TensorStep observes the intermediate nested value through a
// passthrough join: its quality must be exactly the minimum of the two
// inputs, never more.
func TestBind_TensorStep(t *testing.T) {
	ctx := context.Background()

	qualities := []float64{0.9, 0.4}
	i := 0
	unit := func(_ context.Context, p types.Prompt) (types.MonadPrompt, error) {
		q := qualities[i%len(qualities)]
		i++
		return types.MonadPrompt{Prompt: p, Quality: types.QualityScore{Value: q}, Timestamp: time.Now()}, nil
	}
	passthrough := func(_ context.Context, nested types.MonadPrompt) (types.MonadPrompt, error) {
		return nested, nil
	}
	m := New(unit, passthrough)

	ma, err := m.Unit(ctx, basePrompt("Solve: {task}")) // quality 0.9
	require.NoError(t, err)

	nested, err := m.Bind(ctx, ma, enhance(m, "(enhanced)")) // f yields 0.4
	require.NoError(t, err)

	assert.InDelta(t, 0.4, nested.Quality.Value, 1e-9, "tensor product is the minimum")
	assert.Equal(t, 1, nested.MetaLevel)
	assert.Len(t, nested.History, 1)
}

func TestKleisliCompose(t *testing.T) {
	ctx := context.Background()
	m := NewRecursiveMetaMonad(perception.NewEchoClient(), nil)

	f := enhance(m, "(step 1)")
	g := enhance(m, "(step 2)")

	composed := m.KleisliCompose(f, g)

	p := basePrompt("Solve: {task}")
	viaCompose, err := composed(ctx, p)
	require.NoError(t, err)

	fa, err := f(ctx, p)
	require.NoError(t, err)
	manual, err := m.Bind(ctx, fa, g)
	require.NoError(t, err)

	assert.True(t, StructurallyEqual(viaCompose, manual),
		"Kleisli composition must equal manual bind")
}

func TestStructurallyEqual(t *testing.T) {
	p := basePrompt("Solve: {task}")
	base := types.MonadPrompt{Prompt: p, Quality: types.QualityScore{Value: 0.8}, MetaLevel: 1}

	t.Run("quality within tolerance compares equal", func(t *testing.T) {
		other := base
		other.Quality = types.QualityScore{Value: 0.805}
		assert.True(t, StructurallyEqual(base, other))
	})

	t.Run("quality outside tolerance differs", func(t *testing.T) {
		other := base
		other.Quality = types.QualityScore{Value: 0.82}
		assert.False(t, StructurallyEqual(base, other))
	})

	t.Run("template change differs", func(t *testing.T) {
		other := base
		other.Prompt = p.WithTemplate("Changed: {task}")
		assert.False(t, StructurallyEqual(base, other))
	})

	t.Run("meta level change differs", func(t *testing.T) {
		other := base
		other.MetaLevel = 2
		assert.False(t, StructurallyEqual(base, other))
	})

	t.Run("history and timestamps are ignored", func(t *testing.T) {
		other := base
		other.History = []types.Prompt{p}
		other.Timestamp = time.Now()
		assert.True(t, StructurallyEqual(base, other))
	})
}

// TestConcreteScenario walks the documented end-to-end flow: a trivial
// task dispatches to direct execution, unit wraps it at depth zero, and
// one bind advances the chain to depth one with history recorded.
func TestConcreteScenario(t *testing.T) {
	ctx := context.Background()

	task := types.Task{
		Description: "Solve: find max",
		Complexity:  &types.ComplexityAnalysis{Overall: 0.1},
		Constraints: []string{},
		Examples:    []string{},
	}

	prompt := functor.New().MapObject(task)
	require.Equal(t, "Direct Execution", prompt.Context["strategy"].(types.Strategy).String())

	client := perception.NewEchoClient()
	m := NewRecursiveMetaMonad(client, nil)

	initial, err := m.Unit(ctx, prompt)
	require.NoError(t, err)
	assert.Equal(t, 0, initial.MetaLevel)
	assert.NotEmpty(t, initial.Quality.Components)
	assert.Equal(t, 1, client.Calls())

	improved, err := m.Bind(ctx, initial, enhance(m, "(enhanced)"))
	require.NoError(t, err)
	assert.Equal(t, 1, improved.MetaLevel)
	assert.GreaterOrEqual(t, len(improved.History), 1)
}
