// Package llm provides best-effort model enrichment for agent steps.
// Config carries the feature flag and API key gate (IsConfigured), but
// New returns the disabled model whatever the configuration; with it,
// every caller falls back to its deterministic logic rather than failing.
package llm

import (
	"context"

	"github.com/ecoverify-prime/ecoverify/pkg/adapters/edutech"
)

// Model is the minimal surface a step needs from a chat model: a
// single prompt-in, text-out call. Kept narrow so steps never depend
// on a concrete provider SDK.
type Model interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Config gates whether a Model is constructed at all.
type Config struct {
	Enabled bool
	APIKey  string
	Model   string
}

// IsConfigured reports whether both the feature flag and an API key
// are present — mirroring the upstream "flag AND key" gate.
func (c Config) IsConfigured() bool { return c.Enabled && c.APIKey != "" }

// disabled is the zero-cost fallback Model returned when enrichment is
// off. Every call reports itself unavailable rather than erroring, so
// callers can treat "no LLM" as a normal, expected outcome.
type disabled struct{}

func (disabled) Invoke(context.Context, string) (string, error) {
	return "", errDisabled
}

var errDisabled = disabledError{}

type disabledError struct{}

func (disabledError) Error() string { return "llm: disabled" }

// New returns a Model honoring cfg. When enrichment is disabled it
// returns disabled{}, never nil, so callers can invoke it
// unconditionally and treat the sentinel error as "skip enrichment."
//
// No concrete provider is wired here: the chat model is an optional,
// swappable enrichment source with no bundled HTTP/gRPC
// chat-completion client compatible with this narrow interface, so
// New intentionally never returns an enabled Model — wiring a real
// provider is a configuration-time concern left to callers that
// construct their own Model and bypass New entirely.
func New(cfg Config) Model {
	_ = cfg.IsConfigured()
	return disabled{}
}

// IsDisabled reports whether err is the sentinel returned by a
// disabled Model, letting callers distinguish "no LLM configured"
// from a genuine invocation failure.
func IsDisabled(err error) bool {
	_, ok := err.(disabledError)
	return ok
}

// FrictionEnricher adapts a Model to the edutech package's narrow
// Enrich(signal) (tip, ok) contract, so friction enrichment is just
// another Model consumer rather than a special case.
type FrictionEnricher struct {
	Model Model
}

// Enrich asks the model for a short contextual tip about sig. Reports
// ok=false whenever the model is unavailable or errors, never
// propagating the error — enrichment is always best-effort.
func (e FrictionEnricher) Enrich(sig edutech.FrictionSignal) (string, bool) {
	if e.Model == nil {
		return "", false
	}
	prompt := "An operator experienced '" + sig.SignalType + "' cognitive friction during the '" +
		sig.AgentPhase + "' phase. Context: " + sig.Context +
		"\n\nProvide a 2-sentence actionable tip to help them understand and resolve this situation."
	out, err := e.Model.Invoke(context.Background(), prompt)
	if err != nil || out == "" {
		return "", false
	}
	return out, true
}
