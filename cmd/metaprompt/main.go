package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"metaprompt/internal/comonad"
	"metaprompt/internal/config"
	"metaprompt/internal/engine"
	"metaprompt/internal/functor"
	"metaprompt/internal/perception"
	"metaprompt/internal/store"
	"metaprompt/internal/transform"
	"metaprompt/internal/types"
)

var (
	// Global flags
	verbose    bool
	configPath string
	provider   string
	apiKey     string

	// Refinement flags
	threshold float64
	maxDepth  int
	traceDB   string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "metaprompt",
	Short: "metaprompt - categorical prompt refinement engine",
	Long: `metaprompt models iterative prompt refinement as a small family of
categorical structures: a functor maps tasks to prompts via
complexity-driven strategy selection, a monad threads recursive
improvement with quality-tensor composition, a comonad observes the
refinement trace, and natural transformations convert prompts between
strategies.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var refineCmd = &cobra.Command{
	Use:   "refine [task description]...",
	Short: "Refine one or more tasks through the improvement loop",
	Long: `Maps each task to an initial prompt, wraps it against the completion
collaborator, and binds improvement rounds until the quality threshold
or the depth bound is reached. Multiple quoted tasks run as independent
chains in parallel.

Example:
  metaprompt refine "Design a rate limiter for a public API"
  metaprompt refine "Solve: find max" "Summarize the design doc"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRefine,
}

var lawsCmd = &cobra.Command{
	Use:   "laws",
	Short: "Verify the categorical laws",
	Long: `Runs the law verifiers: functor identity and composition, comonad
identity and associativity, and the naturality squares of every
registered transformation. Monad laws are execution-dependent and are
checked by the test suite instead.`,
	RunE: runLaws,
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "metaprompt.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "completion provider (echo, gemini)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for the completion provider")

	refineCmd.Flags().Float64Var(&threshold, "threshold", 0, "quality threshold (0 uses config)")
	refineCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum refinement rounds (0 uses config)")
	refineCmd.Flags().StringVar(&traceDB, "trace-db", "", "persist refinement traces to this SQLite file")

	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(lawsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		cfg.LLM.Provider = provider
	}
	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if threshold > 0 {
		cfg.Refinement.QualityThreshold = threshold
	}
	if maxDepth > 0 {
		cfg.Refinement.MaxDepth = maxDepth
	}
	if traceDB != "" {
		cfg.Trace.Enabled = true
		cfg.Trace.DatabasePath = traceDB
	}
	return cfg, nil
}

func buildClient(ctx context.Context, cfg *config.Config) (perception.LLMClient, error) {
	switch cfg.LLM.Provider {
	case "", "echo":
		return perception.NewEchoClient(), nil
	case "gemini":
		return perception.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
	}
}

func runRefine(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := buildClient(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithQualityThreshold(cfg.Refinement.QualityThreshold),
		engine.WithMaxDepth(cfg.Refinement.MaxDepth),
	}
	if cfg.Trace.Enabled {
		traces, err := store.Open(cfg.Trace.DatabasePath)
		if err != nil {
			return err
		}
		defer traces.Close()
		opts = append(opts, engine.WithTraceStore(traces))
	}

	tasks := make([]types.Task, len(args))
	for i, description := range args {
		tasks[i] = types.Task{Description: description}
	}

	results, err := engine.New(client, opts...).RefineAll(ctx, tasks)
	if err != nil {
		return err
	}

	for i, result := range results {
		if i > 0 {
			fmt.Println(strings.Repeat("-", 40))
		}
		strategy, _ := result.Final.Prompt.Context["strategy"].(types.Strategy)
		fmt.Printf("Task:      %s\n", result.Task.Description)
		fmt.Printf("Run:       %s\n", result.RunID)
		fmt.Printf("Strategy:  %s\n", strategy)
		fmt.Printf("Rounds:    %d\n", result.Rounds)
		fmt.Printf("Quality:   %.3f\n", result.Final.Quality.Value)
		fmt.Printf("Depth:     %d\n", result.Final.MetaLevel)
		fmt.Printf("\nFinal prompt template:\n%s\n", result.Final.Prompt.Template)
	}
	return nil
}

func runLaws(cmd *cobra.Command, args []string) error {
	failures := 0
	report := func(name string, ok bool, err error) {
		switch {
		case err != nil:
			failures++
			fmt.Printf("  ERROR %-40s %v\n", name, err)
		case !ok:
			failures++
			fmt.Printf("  FAIL  %s\n", name)
		default:
			fmt.Printf("  ok    %s\n", name)
		}
	}

	tasks := []types.Task{
		{Description: "Solve: find max"},
		{Description: "Design a distributed cache with eviction policies"},
	}
	morphisms := []functor.TaskMorphism{
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

	fmt.Println("Functor laws:")
	f := functor.New()
	for _, task := range tasks {
		report("identity", f.VerifyIdentityLaw(task), nil)
		report("composition", f.VerifyCompositionLaw(task, morphisms[0], morphisms[1]), nil)
	}

	fmt.Println("Comonad laws:")
	c := comonad.New()
	obs := comonad.NewObservation("sample result", map[string]any{
		"prompt": "Solve: find max", "quality": 0.8,
	})
	left, err := c.VerifyLeftIdentity(obs)
	report("left identity", left, err)
	right, err := c.VerifyRightIdentity(obs)
	report("right identity", right, err)
	assoc, err := c.VerifyAssociativity(obs)
	report("associativity", assoc, err)
	identity, err := c.VerifyExtendExtract(obs)
	report("extend(extract) identity", identity, err)

	fmt.Println("Naturality squares:")
	registry := transform.NewRegistry()
	for _, pair := range [][2]types.Strategy{
		{types.StrategyZeroShot, types.StrategyChainOfThought},
		{types.StrategyZeroShot, types.StrategyFewShot},
		{types.StrategyChainOfThought, types.StrategyTreeOfThought},
	} {
		nt, err := registry.Lookup(pair[0], pair[1])
		if err != nil {
			report(fmt.Sprintf("%s to %s", pair[0], pair[1]), false, err)
			continue
		}
		for _, task := range tasks {
			for _, m := range morphisms {
				ok, err := registry.VerifyNaturality(nt, task, m)
				report(fmt.Sprintf("%s to %s", pair[0], pair[1]), ok, err)
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d law check(s) failed", failures)
	}
	fmt.Println("\nAll laws hold.")
	return nil
}
