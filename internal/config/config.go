// Package config loads engine configuration from YAML with environment
// overrides for credentials.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all metaprompt configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Refinement loop configuration
	Refinement RefinementConfig `yaml:"refinement"`

	// Trace persistence
	Trace TraceConfig `yaml:"trace"`
}

// LLMConfig configures the completion collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // echo, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// RefinementConfig bounds the improvement loop.
type RefinementConfig struct {
	QualityThreshold float64 `yaml:"quality_threshold"`
	MaxDepth         int     `yaml:"max_depth"`
}

// TraceConfig controls refinement-trace persistence.
type TraceConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "echo",
			Model:    "gemini-2.5-flash",
		},
		Refinement: RefinementConfig{
			QualityThreshold: 0.90,
			MaxDepth:         5,
		},
		Trace: TraceConfig{
			Enabled:      false,
			DatabasePath: "metaprompt.db",
		},
	}
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "gemini"
		}
	}
	if provider := os.Getenv("METAPROMPT_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if model := os.Getenv("METAPROMPT_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

func (c *Config) validate() error {
	if c.Refinement.QualityThreshold < 0 || c.Refinement.QualityThreshold > 1 {
		return fmt.Errorf("quality_threshold %.2f out of [0,1]", c.Refinement.QualityThreshold)
	}
	if c.Refinement.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1, got %d", c.Refinement.MaxDepth)
	}
	return nil
}
