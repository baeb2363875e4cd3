package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoverify-prime/ecoverify/pkg/router"
	"github.com/ecoverify-prime/ecoverify/pkg/state"
	"github.com/ecoverify-prime/ecoverify/pkg/steps"
	"github.com/ecoverify-prime/ecoverify/pkg/trace"
)

// ────────────────────────────────────────────────────────────
// Scenario 1 — Happy path with anomaly.
// ────────────────────────────────────────────────────────────

func TestE2E_HappyPathWithAnomaly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Deps.Telemetry.InjectAnomaly(h.Deps.BuildingID(), 0.8)

	tid, err := h.Driver.Start(ctx, state.ExecutionState{}, "")
	require.NoError(t, err)

	status, err := h.Driver.Status(ctx, tid)
	require.NoError(t, err)
	require.True(t, status.IsInterrupted)
	assert.Greater(t, status.AnomalyCount, 0)
	assert.Equal(t, "compliant", status.ComplianceStatus)
	assert.Greater(t, status.MonthlySavings, 0.0)

	cp, err := h.Engine.LatestCheckpoint(ctx, tid)
	require.NoError(t, err)
	require.NotEmpty(t, cp.State.JiraTickets)

	require.NoError(t, h.Driver.Resume(ctx, tid, steps.HumanResponse{Approved: true, ROIAdjustment: 1.0}))

	final, err := h.Driver.Status(ctx, tid)
	require.NoError(t, err)
	assert.Equal(t, "complete", final.Phase)
	assert.False(t, final.IsInterrupted)

	cp, err = h.Engine.LatestCheckpoint(ctx, tid)
	require.NoError(t, err)

	var proofGraphs, executionCompletes int
	for _, ev := range cp.State.UIEvents {
		switch ev.Type {
		case "proof_graph":
			proofGraphs++
		case "execution_complete":
			executionCompletes++
		}
	}
	assert.Equal(t, 1, proofGraphs)
	assert.Equal(t, 1, executionCompletes)
}

// ────────────────────────────────────────────────────────────
// Scenario 2 — No-anomaly nominal telemetry terminates directly
// after the Detector, never visiting the Jurist.
// ────────────────────────────────────────────────────────────

func TestE2E_NoAnomaly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tid, err := h.Driver.Start(ctx, state.ExecutionState{}, "nominal")
	require.NoError(t, err)

	cp, err := h.Engine.LatestCheckpoint(ctx, tid)
	require.NoError(t, err)

	require.Len(t, cp.State.DecisionTraces, 1, "only the Detector should have run")
	assert.Equal(t, "detector", cp.State.DecisionTraces[0].AgentID)
	found := 0
	if v, ok := cp.State.DecisionTraces[0].Decision["anomalies_found"].(float64); ok {
		found = int(v)
	}
	assert.Equal(t, 0, found)
	assert.Equal(t, "detector_complete", cp.State.CurrentPhase)
	assert.Equal(t, []string{router.End}, cp.NextCandidates)
}

// ────────────────────────────────────────────────────────────
// Scenario 3 — Citation self-correction. Feeding the Jurist directly
// with anomalies and no citations trips citation_failure and routes
// back to the Detector; because the Detector always produces valid
// citations from real telemetry, the loop self-corrects well inside
// router.MaxIterations rather than ever exhausting it — this asserts
// the cap is respected, not that every run hits it.
// ────────────────────────────────────────────────────────────

func TestE2E_CitationSelfCorrection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	initial := state.ExecutionState{
		Anomalies: []state.Anomaly{{Type: "energy_spike", BuildingID: h.Deps.BuildingID()}},
	}
	tid, err := h.Engine.StartAt(ctx, initial, "citation-thread", "jurist")
	require.NoError(t, err)

	cp, err := h.Engine.LatestCheckpoint(ctx, tid)
	require.NoError(t, err)

	assert.LessOrEqual(t, cp.State.IterationCount, router.MaxIterations)

	history, err := h.Engine.History(ctx, tid)
	require.NoError(t, err)
	sawCitationFailure := false
	for _, snap := range history {
		if snap.State.CurrentPhase == "citation_failure" {
			sawCitationFailure = true
		}
	}
	assert.True(t, sawCitationFailure, "the Jurist must have rejected the missing citations at least once")
}

// ────────────────────────────────────────────────────────────
// Scenario 4 — Rejection loop: a rejected Governor decision re-enters
// the Architect with a tightened ROI adjustment and reduced savings.
// ────────────────────────────────────────────────────────────

func TestE2E_RejectionLoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Deps.Telemetry.InjectAnomaly(h.Deps.BuildingID(), 0.8)

	tid, err := h.Driver.Start(ctx, state.ExecutionState{}, "")
	require.NoError(t, err)

	firstStatus, err := h.Driver.Status(ctx, tid)
	require.NoError(t, err)
	firstSavings := firstStatus.MonthlySavings

	require.NoError(t, h.Driver.Resume(ctx, tid, steps.HumanResponse{Approved: false, ROIAdjustment: 0.8}))

	second, err := h.Driver.Status(ctx, tid)
	require.NoError(t, err)
	require.True(t, second.IsInterrupted, "a rejected action must re-reach the Governor breakpoint")
	assert.Less(t, second.MonthlySavings, firstSavings)

	cp, err := h.Engine.LatestCheckpoint(ctx, tid)
	require.NoError(t, err)
	adj, _ := cp.State.SimulationResult["roi_adjustment"].(float64)
	assert.InDelta(t, 0.72, adj, 0.001, "second Architect dispatch should apply prev(0.8) x 0.9")
}

// ────────────────────────────────────────────────────────────
// Scenario 5 — Tamper detection: mutating one trace's decision flips
// only that trace's verified flag.
// ────────────────────────────────────────────────────────────

func TestE2E_TamperDetection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Deps.Telemetry.InjectAnomaly(h.Deps.BuildingID(), 0.8)

	tid, err := h.Driver.Start(ctx, state.ExecutionState{}, "")
	require.NoError(t, err)
	require.NoError(t, h.Driver.Resume(ctx, tid, steps.HumanResponse{Approved: true, ROIAdjustment: 1.0}))

	traces, err := h.Driver.Traces(ctx, tid)
	require.NoError(t, err)
	require.NotEmpty(t, traces)
	for _, tr := range traces {
		assert.True(t, tr.Verified)
	}

	tampered := traces[0].Trace
	tampered.Decision = cloneDecision(tampered.Decision)
	tampered.Decision["tampered"] = true

	pub, err := h.Identity.GetPublic(tampered.AgentID)
	require.NoError(t, err)
	assert.False(t, trace.Verify(tampered, pub), "a mutated decision must fail re-verification")

	for i, tr := range traces {
		if i == 0 {
			continue
		}
		assert.True(t, tr.Verified, "untouched traces must remain verified")
	}
}

func cloneDecision(d map[string]any) map[string]any {
	out := make(map[string]any, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ────────────────────────────────────────────────────────────
// Scenario 6 — Concurrent threads never cross-contaminate each
// other's decision traces.
// ────────────────────────────────────────────────────────────

func TestE2E_ConcurrentThreads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Deps.Telemetry.InjectAnomaly(h.Deps.BuildingID(), 0.7)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	ids := []string{"concurrent-t1", "concurrent-t2"}
	for i, id := range ids {
		wg.Add(1)
		go func(i int, threadID string) {
			defer wg.Done()
			_, err := h.Driver.Start(ctx, state.ExecutionState{}, threadID)
			errs[i] = err
		}(i, id)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	for _, id := range ids {
		cp, err := h.Engine.LatestCheckpoint(ctx, id)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(cp.State.DecisionTraces), 1)

		var prev time.Time
		for i, tr := range cp.State.DecisionTraces {
			ts, err := time.Parse(time.RFC3339Nano, tr.Timestamp)
			require.NoError(t, err)
			if i > 0 {
				assert.False(t, ts.Before(prev), "decision_traces must be monotonically ordered")
			}
			prev = ts

			pub, err := h.Identity.GetPublic(tr.AgentID)
			require.NoError(t, err)
			assert.True(t, trace.Verify(tr, pub))
		}
	}
}
