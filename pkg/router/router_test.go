package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecoverify-prime/ecoverify/pkg/state"
)

func TestAfterDetector(t *testing.T) {
	s := state.Initial()
	assert.Equal(t, End, AfterDetector(s))

	s.Anomalies = []state.Anomaly{{Type: "energy_spike"}}
	assert.Equal(t, "jurist", AfterDetector(s))
}

func TestAfterJurist_CitationFailureLoopsUntilCap(t *testing.T) {
	s := state.Initial()
	s.CurrentPhase = "citation_failure"
	s.IterationCount = MaxIterations - 1
	assert.Equal(t, "detector", AfterJurist(s))

	s.IterationCount = MaxIterations
	assert.Equal(t, End, AfterJurist(s))
}

func TestAfterJurist_NonCompliantGoesToGovernor(t *testing.T) {
	s := state.Initial()
	s.CurrentPhase = "jurist_complete"
	s.ComplianceReport = map[string]any{"status": "non_compliant"}
	assert.Equal(t, "governor", AfterJurist(s))
}

func TestAfterJurist_CompliantGoesToArchitect(t *testing.T) {
	s := state.Initial()
	s.CurrentPhase = "jurist_complete"
	s.ComplianceReport = map[string]any{"status": "compliant"}
	assert.Equal(t, "architect", AfterJurist(s))
}

func TestAfterArchitect_AlwaysGovernor(t *testing.T) {
	assert.Equal(t, "governor", AfterArchitect(state.Initial()))
}

func TestAfterGovernor_ApprovedGoesToFinalizer(t *testing.T) {
	s := state.Initial()
	s.CurrentPhase = "governor_approved"
	assert.Equal(t, "finalizer", AfterGovernor(s))
}

func TestAfterGovernor_RejectedGoesToArchitect(t *testing.T) {
	s := state.Initial()
	s.CurrentPhase = "governor_rejected"
	assert.Equal(t, "architect", AfterGovernor(s))
}

func TestRouterTotality(t *testing.T) {
	validAfterDetector := map[string]bool{"jurist": true, End: true}
	validAfterJurist := map[string]bool{"detector": true, "governor": true, "architect": true, End: true}

	s := state.Initial()
	assert.True(t, validAfterDetector[AfterDetector(s)])

	s.CurrentPhase = "citation_failure"
	assert.True(t, validAfterJurist[AfterJurist(s)])
}
