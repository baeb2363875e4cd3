package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ecoverify-prime/ecoverify/pkg/router"
)

const configFileName = "ecoverify.yaml"

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read ecoverify.yaml from configDir (missing file is tolerated —
//     the built-in defaults stand alone for a zero-config demo run).
//  2. Expand environment variables.
//  3. Parse YAML into a Config.
//  4. Merge the parsed config onto the built-in defaults.
//  5. Validate the result.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.InfoContext(ctx, "initializing configuration")

	user, err := load(configDir)
	if err != nil {
		return nil, err
	}

	merged, err := mergeOnto(defaultConfig(), user)
	if err != nil {
		return nil, fmt.Errorf("config: merge defaults: %w", err)
	}
	merged.configDir = configDir

	if err := merged.Validate(); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "configuration ready",
		"building_id", merged.BuildingID,
		"checkpoint_backend", merged.Runtime.Backend,
	)
	return &merged, nil
}

// load reads and parses configDir/ecoverify.yaml. A missing file
// yields a zero Config (every field absent, so the subsequent merge
// is a pure no-op onto the defaults) rather than an error — the CLI
// is expected to run with no config directory at all for a demo.
func load(configDir string) (Config, error) {
	path := filepath.Join(configDir, configFileName)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, &LoadError{File: path, Err: err}
	}

	expanded := ExpandEnv(raw)

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return Config{}, &LoadError{File: path, Err: fmt.Errorf("%w: %v", ErrInvalidYAML, err)}
	}
	return cfg, nil
}

// Validate checks that the merged configuration is internally
// consistent and usable.
func (c *Config) Validate() error {
	if c.BuildingID == "" {
		return &ValidationError{Field: "building_id", Err: errors.New("must not be empty")}
	}
	switch c.Runtime.Backend {
	case "memory", "postgres":
	default:
		return &ValidationError{Field: "runtime.backend", Err: fmt.Errorf("must be \"memory\" or \"postgres\", got %q", c.Runtime.Backend)}
	}
	if c.Runtime.StepTimeout <= 0 {
		return &ValidationError{Field: "runtime.step_timeout", Err: errors.New("must be positive")}
	}
	if c.Runtime.RecursionCap < 1 {
		return &ValidationError{Field: "runtime.recursion_cap", Err: errors.New("must be at least 1")}
	}
	if c.Runtime.IterationCap < 1 {
		return &ValidationError{Field: "runtime.iteration_cap", Err: errors.New("must be at least 1")}
	}
	if c.Runtime.IterationCap != router.MaxIterations {
		return &ValidationError{Field: "runtime.iteration_cap", Err: fmt.Errorf("must equal the router's built-in cap %d, got %d", router.MaxIterations, c.Runtime.IterationCap)}
	}
	if c.LLMEnabled() && os.Getenv(c.LLM.APIKeyEnv) == "" {
		slog.Warn("config: llm.enabled is true but the referenced API key env var is unset — enrichment will stay disabled",
			"api_key_env", c.LLM.APIKeyEnv)
	}
	return nil
}
