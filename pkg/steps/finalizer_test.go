package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoverify-prime/ecoverify/pkg/state"
	"github.com/ecoverify-prime/ecoverify/pkg/trace"
)

func baseFinalizeState() state.ExecutionState {
	s := state.Initial()
	s.Anomalies = []state.Anomaly{{Type: "energy_spike", BuildingID: "HQ-01", Severity: "high", Peak: 200, Avg: 130}}
	s.SimulationResult = map[string]any{"monthly_savings_usd": 500.0, "npv_3yr_usd": 12000.0, "co2_tons_saved_annual": 4.0, "env_reduction_pct": 12.0}
	s.ComplianceReport = map[string]any{"status": "compliant"}
	s.DecisionTraces = []trace.Trace{
		{AgentID: "detector", PayloadHash: "aa11bb22cc33dd44"},
		{AgentID: "jurist", PayloadHash: "bb11cc22dd33ee44"},
	}
	return s
}

func TestFinalizer_SubmitsDraftedTickets(t *testing.T) {
	deps := testDeps(t)
	s := baseFinalizeState()
	ticket := deps.Tickets.Create("t", "d", "High", "HQ-01")
	s.JiraTickets = []state.Ticket{ticket}

	delta, err := Finalizer(context.Background(), deps, s)
	require.NoError(t, err)

	assert.Equal(t, "complete", delta.CurrentPhase)
	submitted, ok := deps.Tickets.Submit(ticket.TicketID)
	assert.True(t, ok)
	assert.Equal(t, "In Progress", submitted.Status)
}

func TestFinalizer_SettlesNonZeroFee(t *testing.T) {
	deps := testDeps(t)
	s := baseFinalizeState()

	delta, err := Finalizer(context.Background(), deps, s)
	require.NoError(t, err)

	require.Len(t, delta.Settlements, 1)
	assert.InDelta(t, 0.5, delta.Settlements[0].AmountUSD, 0.001)
}

func TestFinalizer_NoSettlementWhenNoSavings(t *testing.T) {
	deps := testDeps(t)
	s := baseFinalizeState()
	s.SimulationResult = map[string]any{"monthly_savings_usd": 0.0}

	delta, err := Finalizer(context.Background(), deps, s)
	require.NoError(t, err)
	assert.Empty(t, delta.Settlements)
}

func TestFinalizer_ComputesRiskScore(t *testing.T) {
	deps := testDeps(t)
	s := baseFinalizeState()

	delta, err := Finalizer(context.Background(), deps, s)
	require.NoError(t, err)

	require.Len(t, delta.RiskScores, 1)
	assert.Equal(t, "HQ-01", delta.RiskScores[0].BuildingID)
}

func TestFinalizer_BuildsProofGraphUIEvent(t *testing.T) {
	deps := testDeps(t)
	s := baseFinalizeState()

	delta, err := Finalizer(context.Background(), deps, s)
	require.NoError(t, err)

	var found bool
	for _, e := range delta.UIEvents {
		if e.Type == "proof_graph" {
			found = true
			assert.Contains(t, e.Payload["mermaid"], "graph TD")
		}
	}
	assert.True(t, found)
}

func TestFinalizer_SkipsFHIRWhenClientNil(t *testing.T) {
	deps := testDeps(t)
	deps.FHIR = nil
	s := baseFinalizeState()

	delta, err := Finalizer(context.Background(), deps, s)
	require.NoError(t, err)
	assert.Empty(t, delta.FHIRObservations)
}
