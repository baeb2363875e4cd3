package config

import "time"

// AdapterToggles gates which best-effort external adapters a step may
// call. Every adapter defaults to enabled; operators disable one to
// degrade gracefully (spec.md §7 AdapterFailure: a disabled or failing
// adapter never aborts the thread, its contribution is simply
// omitted). Fields are *bool, not bool, so an explicit "false" in the
// YAML file survives the defaults merge instead of being
// indistinguishable from "unset" (mergo treats a zero bool as empty).
type AdapterToggles struct {
	Telemetry  *bool `yaml:"telemetry,omitempty"`
	Ticket     *bool `yaml:"ticket,omitempty"`
	Regulatory *bool `yaml:"regulatory,omitempty"`
	Settlement *bool `yaml:"settlement,omitempty"`
	Risk       *bool `yaml:"risk,omitempty"`
	FHIR       *bool `yaml:"fhir,omitempty"`
	Edutech    *bool `yaml:"edutech,omitempty"`
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// LLMConfig gates the Detector's single best-effort enrichment call
// (spec.md §9 "LLM enrichment").
type LLMConfig struct {
	Enabled   *bool  `yaml:"enabled,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	Model     string `yaml:"model,omitempty"`
}

// RuntimeConfig covers the graph runtime's tunables — everything
// spec.md §7/§5 leaves "implementation-configurable".
type RuntimeConfig struct {
	// Backend selects the checkpoint store: "memory" or "postgres".
	Backend string `yaml:"backend,omitempty"`
	// StepTimeout bounds a single step dispatch (spec.md §5 per-step
	// wall-clock timeout).
	StepTimeout time.Duration `yaml:"step_timeout,omitempty"`
	// RecursionCap bounds total step dispatches per run (spec.md §4.G).
	RecursionCap int `yaml:"recursion_cap,omitempty"`
	// IterationCap documents the Jurist->Detector self-correction
	// bound (spec.md §4.F). The router enforces this as the pure,
	// dependency-free constant router.MaxIterations; this field exists
	// so operators can assert the deployed build matches the value
	// they expect — Validate rejects a mismatch rather than silently
	// overriding the router's constant.
	IterationCap int `yaml:"iteration_cap,omitempty"`
}

// Config is the umbrella configuration object returned by Initialize
// and threaded through cmd/ecoverify's wiring of the identity store,
// checkpoint store, and graph runtime.
type Config struct {
	configDir string

	// BuildingID is the single monitored building the telemetry
	// simulator and steps default to (spec.md §4.E Detector: "fixed
	// building").
	BuildingID string `yaml:"building_id,omitempty"`
	// IdentityKeyDir is the per-agent PKCS#8 PEM key directory.
	IdentityKeyDir string `yaml:"identity_key_dir,omitempty"`

	Runtime  RuntimeConfig  `yaml:"runtime,omitempty"`
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Adapters AdapterToggles `yaml:"adapters,omitempty"`
}

// ConfigDir returns the directory Initialize loaded this Config from.
func (c *Config) ConfigDir() string { return c.configDir }

// AdapterEnabled reports whether the named adapter is active, falling
// back to enabled when the operator never mentioned it.
func (c *Config) AdapterEnabled(name string) bool {
	switch name {
	case "telemetry":
		return boolOr(c.Adapters.Telemetry, true)
	case "ticket":
		return boolOr(c.Adapters.Ticket, true)
	case "regulatory":
		return boolOr(c.Adapters.Regulatory, true)
	case "settlement":
		return boolOr(c.Adapters.Settlement, true)
	case "risk":
		return boolOr(c.Adapters.Risk, true)
	case "fhir":
		return boolOr(c.Adapters.FHIR, true)
	case "edutech":
		return boolOr(c.Adapters.Edutech, true)
	default:
		return false
	}
}

// LLMEnabled reports whether the optional enrichment call is active.
func (c *Config) LLMEnabled() bool { return boolOr(c.LLM.Enabled, false) }

// Stats summarizes the active configuration for a health check or log
// line, matching the teacher's ConfigStats convention.
type Stats struct {
	BuildingID        string
	CheckpointBackend string
	AdaptersEnabled   int
	LLMEnabled        bool
}

// Stats returns summary statistics for logging/monitoring.
func (c *Config) Stats() Stats {
	enabled := 0
	for _, name := range []string{"telemetry", "ticket", "regulatory", "settlement", "risk", "fhir", "edutech"} {
		if c.AdapterEnabled(name) {
			enabled++
		}
	}
	return Stats{
		BuildingID:        c.BuildingID,
		CheckpointBackend: c.Runtime.Backend,
		AdaptersEnabled:   enabled,
		LLMEnabled:        c.LLMEnabled(),
	}
}

var boolPtrTrue = boolPtr(true)

func boolPtr(b bool) *bool { return &b }

// defaultConfig returns the built-in baseline every loaded config is
// merged onto, matching spec.md's stated defaults (25-dispatch
// recursion cap, 5-iteration self-correction cap, HQ-01 building).
func defaultConfig() Config {
	return Config{
		BuildingID:     "HQ-01",
		IdentityKeyDir: "./data/keys",
		Runtime: RuntimeConfig{
			Backend:      "memory",
			StepTimeout:  30 * time.Second,
			RecursionCap: 25,
			IterationCap: 5,
		},
		LLM: LLMConfig{
			Enabled:   boolPtr(false),
			APIKeyEnv: "ECOVERIFY_LLM_API_KEY",
			Model:     "gpt-4o-mini",
		},
		Adapters: AdapterToggles{
			Telemetry:  boolPtrTrue,
			Ticket:     boolPtrTrue,
			Regulatory: boolPtrTrue,
			Settlement: boolPtrTrue,
			Risk:       boolPtrTrue,
			FHIR:       boolPtrTrue,
			Edutech:    boolPtrTrue,
		},
	}
}
