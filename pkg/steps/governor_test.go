package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoverify-prime/ecoverify/pkg/state"
)

func TestGovernor_NilResumePauses(t *testing.T) {
	deps := testDeps(t)
	s := state.Initial()
	s.SimulationResult = map[string]any{"monthly_savings_usd": 500.0}

	result, err := Governor(context.Background(), deps, s, nil)
	require.NoError(t, err)

	assert.True(t, result.Interrupted)
	require.NotNil(t, result.Pending)
	assert.Equal(t, true, result.Pending["requires_approval"])
	assert.Equal(t, "awaiting_approval", result.Delta.CurrentPhase)
}

func TestGovernor_ApprovedResumeRoutesToFinalize(t *testing.T) {
	deps := testDeps(t)
	s := state.Initial()

	result, err := Governor(context.Background(), deps, s, &HumanResponse{Approved: true})
	require.NoError(t, err)

	assert.False(t, result.Interrupted)
	assert.Equal(t, "governor_approved", result.Delta.CurrentPhase)
	require.NotNil(t, result.Delta.GovernorApproval)
	assert.True(t, *result.Delta.GovernorApproval)
	require.Len(t, result.Delta.DecisionTraces, 1)
	assert.Equal(t, governorAgentID, result.Delta.DecisionTraces[0].AgentID)
}

func TestGovernor_RejectedResumeTightensROIAndLoopsToArchitect(t *testing.T) {
	deps := testDeps(t)
	s := state.Initial()
	s.SimulationResult = map[string]any{"monthly_savings_usd": 500.0, "roi_adjustment": 1.0}

	result, err := Governor(context.Background(), deps, s, &HumanResponse{Approved: false, ROIAdjustment: 0.9})
	require.NoError(t, err)

	assert.Equal(t, "governor_rejected", result.Delta.CurrentPhase)
	require.NotNil(t, result.Delta.GovernorApproval)
	assert.False(t, *result.Delta.GovernorApproval)
	assert.Equal(t, 0.9, result.Delta.SimulationResult["roi_adjustment"])
	assert.Equal(t, 500.0, result.Delta.SimulationResult["monthly_savings_usd"])
}

func TestGovernor_RejectedResumeDefaultsROIAdjustmentWhenZero(t *testing.T) {
	deps := testDeps(t)
	s := state.Initial()

	result, err := Governor(context.Background(), deps, s, &HumanResponse{Approved: false})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Delta.SimulationResult["roi_adjustment"])
}
