// Package engine drives the refinement loop: map a task to a prompt,
// wrap it, and bind improvement rounds until the quality threshold or
// the depth bound is reached. Each round is observed comonadically and
// optionally persisted as a refinement trace.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"metaprompt/internal/comonad"
	"metaprompt/internal/functor"
	"metaprompt/internal/monad"
	"metaprompt/internal/perception"
	"metaprompt/internal/quality"
	"metaprompt/internal/store"
	"metaprompt/internal/types"
)

const (
	defaultQualityThreshold = 0.90
	defaultMaxDepth         = 5
)

// Engine composes the categorical layers into a runnable refinement
// pipeline. Safe for concurrent Refine calls: all per-run state lives
// on the stack.
type Engine struct {
	functor   *functor.Functor
	monad     *monad.Monad
	comonad   *comonad.Comonad
	logger    *zap.Logger
	threshold float64
	maxDepth  int
	traces    *store.TraceStore
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithQualityThreshold sets the quality at which refinement stops.
func WithQualityThreshold(threshold float64) Option {
	return func(e *Engine) { e.threshold = threshold }
}

// WithMaxDepth bounds the number of improvement rounds.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) { e.maxDepth = depth }
}

// WithTraceStore persists each round to the given store.
func WithTraceStore(s *store.TraceStore) Option {
	return func(e *Engine) { e.traces = s }
}

// New builds an engine around a completion collaborator.
func New(client perception.LLMClient, opts ...Option) *Engine {
	e := &Engine{
		functor:   functor.New(),
		monad:     monad.NewRecursiveMetaMonad(client, quality.NewHeuristicAssessor()),
		comonad:   comonad.New(),
		logger:    zap.NewNop(),
		threshold: defaultQualityThreshold,
		maxDepth:  defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one refinement run.
type Result struct {
	RunID  string
	Task   types.Task
	Final  types.MonadPrompt
	Rounds int

	// Trace is the meta-observation over the run: its history holds one
	// observation per round, most recent first.
	Trace *comonad.Observation
}

// Refine maps the task to an initial prompt and binds improvement
// rounds until the quality threshold is met or the depth bound is hit.
func (e *Engine) Refine(ctx context.Context, task types.Task) (*Result, error) {
	runID := uuid.NewString()
	log := e.logger.With(zap.String("run_id", runID))

	prompt := e.functor.MapObject(task)
	strategy, _ := prompt.Context["strategy"].(types.Strategy)
	log.Info("task mapped",
		zap.String("strategy", strategy.String()),
		zap.String("description", task.Description))

	current, err := e.monad.Unit(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("wrap initial prompt: %w", err)
	}

	obs := e.observe(current, strategy, nil)
	if err := e.record(ctx, runID, task, strategy, 0, current); err != nil {
		return nil, err
	}
	log.Debug("initial wrap", zap.Float64("quality", current.Quality.Value))

	rounds := 0
	for rounds < e.maxDepth && current.Quality.Value < e.threshold {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Re-wrapping the current prompt lets join's improvement
		// extraction and integration do the actual refinement work.
		next, err := e.monad.Bind(ctx, current, e.monad.Unit)
		if err != nil {
			return nil, fmt.Errorf("refinement round %d: %w", rounds+1, err)
		}

		rounds++
		current = next
		obs = e.observe(current, strategy, obs)

		if err := e.record(ctx, runID, task, strategy, rounds, current); err != nil {
			return nil, err
		}
		log.Debug("refinement round",
			zap.Int("round", rounds),
			zap.Float64("quality", current.Quality.Value),
			zap.Int("meta_level", current.MetaLevel))
	}

	log.Info("refinement finished",
		zap.Int("rounds", rounds),
		zap.Float64("quality", current.Quality.Value))

	return &Result{
		RunID:  runID,
		Task:   task,
		Final:  current,
		Rounds: rounds,
		Trace:  e.comonad.Duplicate(obs),
	}, nil
}

// RefineAll runs independent refinement chains in parallel, one per
// task. The chains share no state; the first error cancels the rest.
func (e *Engine) RefineAll(ctx context.Context, tasks []types.Task) ([]*Result, error) {
	results := make([]*Result, len(tasks))

	g, ctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		g.Go(func() error {
			r, err := e.Refine(ctx, task)
			if err != nil {
				return fmt.Errorf("task %q: %w", task.Description, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// observe turns one round's wrapped prompt into an observation chained
// onto the previous rounds.
func (e *Engine) observe(mp types.MonadPrompt, strategy types.Strategy, prev *comonad.Observation) *comonad.Observation {
	obs := comonad.NewObservation(mp.Prompt.Template, map[string]any{
		"prompt":     mp.Prompt.Template,
		"strategy":   strategy.String(),
		"quality":    mp.Quality.Value,
		"meta_level": mp.MetaLevel,
		"timestamp":  time.Now(),
	})
	if prev != nil {
		obs.History = append(obs.History, prev)
		obs.History = append(obs.History, prev.History...)
	}
	return obs
}

// record persists one round when a trace store is configured.
func (e *Engine) record(ctx context.Context, runID string, task types.Task, strategy types.Strategy, round int, mp types.MonadPrompt) error {
	if e.traces == nil {
		return nil
	}

	improvement, _ := mp.Prompt.Context["improvement_strategy"].(string)
	err := e.traces.RecordRound(ctx, store.RefinementRound{
		RunID:       runID,
		Round:       round,
		Task:        task.Description,
		Strategy:    strategy.String(),
		Template:    mp.Prompt.Template,
		Quality:     mp.Quality.Value,
		Components:  mp.Quality.Components,
		MetaLevel:   mp.MetaLevel,
		Improvement: improvement,
	})
	if err != nil {
		return fmt.Errorf("persist round %d: %w", round, err)
	}
	return nil
}
