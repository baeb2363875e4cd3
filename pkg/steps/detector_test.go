package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoverify-prime/ecoverify/pkg/adapters/telemetry"
	"github.com/ecoverify-prime/ecoverify/pkg/citation"
	"github.com/ecoverify-prime/ecoverify/pkg/state"
)

// stubModel is a fixed-response llm.Model for exercising the Detector's
// enrichment hook without a real provider.
type stubModel struct {
	out string
	err error
}

func (m stubModel) Invoke(context.Context, string) (string, error) { return m.out, m.err }

func TestDetector_NominalTelemetryYieldsNoAnomalies(t *testing.T) {
	deps := testDeps(t)
	delta, err := Detector(context.Background(), deps, state.Initial())
	require.NoError(t, err)

	assert.Equal(t, "detector_complete", delta.CurrentPhase)
	assert.Equal(t, 1, delta.IterationCount)
	assert.Len(t, delta.Citations, 2)
	assert.True(t, citation.Present(delta.Citations))
	assert.NotEmpty(t, delta.TelemetryData["energy"])
	assert.NotEmpty(t, delta.TelemetryData["water"])
}

func TestDetector_InjectedSpikeYieldsEnergyAnomaly(t *testing.T) {
	deps := testDeps(t)
	deps.Telemetry.InjectAnomaly(deps.BuildingID(), 0.9)

	delta, err := Detector(context.Background(), deps, state.Initial())
	require.NoError(t, err)

	require.NotEmpty(t, delta.Anomalies)
	a := delta.Anomalies[0]
	assert.Equal(t, "energy_spike", a.Type)
	assert.Equal(t, deps.BuildingID(), a.BuildingID)
	assert.Contains(t, []string{"medium", "high"}, a.Severity)
}

func TestDetector_SignsADecisionTrace(t *testing.T) {
	deps := testDeps(t)
	delta, err := Detector(context.Background(), deps, state.Initial())
	require.NoError(t, err)

	require.Len(t, delta.DecisionTraces, 1)
	assert.Equal(t, detectorAgentID, delta.DecisionTraces[0].AgentID)
	assert.NotEmpty(t, delta.DecisionTraces[0].Signature)
}

func TestDetector_IncrementsIterationFromPriorState(t *testing.T) {
	deps := testDeps(t)
	s := state.Initial()
	s.IterationCount = 3

	delta, err := Detector(context.Background(), deps, s)
	require.NoError(t, err)
	assert.Equal(t, 4, delta.IterationCount)
}

func TestBuildAnomaly_HighSeverityAboveThreshold(t *testing.T) {
	summary := telemetry.Summary{Avg: 100, Peak: 130, AnomalyCount: 2}
	a := buildAnomaly("energy_spike", "HQ-01", summary, 20, "2026-07-31T00:00:00Z")
	assert.Equal(t, "high", a.Severity)
}

func TestBuildAnomaly_MediumSeverityBelowThreshold(t *testing.T) {
	summary := telemetry.Summary{Avg: 100, Peak: 105, AnomalyCount: 1}
	a := buildAnomaly("water_spike", "HQ-01", summary, 25, "2026-07-31T00:00:00Z")
	assert.Equal(t, "medium", a.Severity)
}

func TestDetector_NoModelFallsBackToDeterministicMessage(t *testing.T) {
	deps := testDeps(t)
	deps.Telemetry.InjectAnomaly(deps.BuildingID(), 0.9)

	delta, err := Detector(context.Background(), deps, state.Initial())
	require.NoError(t, err)

	require.NotEmpty(t, delta.UIEvents)
	assert.Contains(t, delta.UIEvents[0].Message, "Energy spike detected")
}

func TestDetector_ModelEnrichesNeuralFeedMessage(t *testing.T) {
	deps := testDeps(t)
	deps.Telemetry.InjectAnomaly(deps.BuildingID(), 0.9)
	deps.AnomalyModel = stubModel{out: "Energy use at HQ-01 spiked well above its recent average."}

	delta, err := Detector(context.Background(), deps, state.Initial())
	require.NoError(t, err)

	require.NotEmpty(t, delta.UIEvents)
	assert.Equal(t, "Energy use at HQ-01 spiked well above its recent average.", delta.UIEvents[0].Message)
}

func TestDetector_ModelErrorFallsBackToDeterministicMessage(t *testing.T) {
	deps := testDeps(t)
	deps.Telemetry.InjectAnomaly(deps.BuildingID(), 0.9)
	deps.AnomalyModel = stubModel{err: errors.New("provider unavailable")}

	delta, err := Detector(context.Background(), deps, state.Initial())
	require.NoError(t, err)

	require.NotEmpty(t, delta.UIEvents)
	assert.Contains(t, delta.UIEvents[0].Message, "Energy spike detected")
}

func TestDetector_ModelEmptyResponseFallsBackToDeterministicMessage(t *testing.T) {
	deps := testDeps(t)
	deps.Telemetry.InjectAnomaly(deps.BuildingID(), 0.9)
	deps.AnomalyModel = stubModel{out: ""}

	delta, err := Detector(context.Background(), deps, state.Initial())
	require.NoError(t, err)

	require.NotEmpty(t, delta.UIEvents)
	assert.Contains(t, delta.UIEvents[0].Message, "Energy spike detected")
}
