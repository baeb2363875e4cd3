package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoverify-prime/ecoverify/pkg/adapters/fhir"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/settlement"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/telemetry"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/ticket"
	"github.com/ecoverify-prime/ecoverify/pkg/graphrt"
	"github.com/ecoverify-prime/ecoverify/pkg/identity"
	"github.com/ecoverify-prime/ecoverify/pkg/state"
	"github.com/ecoverify-prime/ecoverify/pkg/steps"
)

func testDriver(t *testing.T) (*Driver, *steps.Deps, *identity.Store) {
	t.Helper()
	idStore, err := identity.NewStore(t.TempDir())
	require.NoError(t, err)

	deps := steps.Deps{
		Identity:   idStore,
		Telemetry:  telemetry.NewSimulator(),
		Tickets:    ticket.NewDesk(),
		Settlement: settlement.NewLedger("devnet"),
		FHIR:       fhir.NewClient(""),
	}

	engine := graphrt.NewEngine(graphrt.NewMemoryStore(), deps)
	return New(engine, idStore), &deps, idStore
}

func TestStart_AssignsThreadID(t *testing.T) {
	d, _, _ := testDriver(t)

	tid, err := d.Start(context.Background(), state.ExecutionState{}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, tid)
}

func TestStart_IsIdempotentForSameThreadID(t *testing.T) {
	d, _, _ := testDriver(t)

	first, err := d.Start(context.Background(), state.ExecutionState{}, "thread-1")
	require.NoError(t, err)

	second, err := d.Start(context.Background(), state.ExecutionState{}, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStatus_NoAnomalyReachesEndWithoutInterrupt(t *testing.T) {
	d, _, _ := testDriver(t)

	tid, err := d.Start(context.Background(), state.ExecutionState{}, "nominal-thread")
	require.NoError(t, err)

	status, err := d.Status(context.Background(), tid)
	require.NoError(t, err)
	assert.Equal(t, 0, status.AnomalyCount)
	assert.False(t, status.IsInterrupted)
	assert.False(t, status.IsRunning)
	assert.Equal(t, "pending", status.ComplianceStatus)
}

func TestStatus_AnomalyPausesAtGovernor(t *testing.T) {
	d, deps, _ := testDriver(t)
	deps.Telemetry.InjectAnomaly(deps.BuildingID(), 0.9)

	tid, err := d.Start(context.Background(), state.ExecutionState{}, "anomaly-thread")
	require.NoError(t, err)

	status, err := d.Status(context.Background(), tid)
	require.NoError(t, err)
	assert.Greater(t, status.AnomalyCount, 0)
	assert.True(t, status.IsInterrupted)
	assert.Equal(t, "awaiting_approval", status.Phase)
}

func TestStatus_UnknownThreadReturnsThreadNotFound(t *testing.T) {
	d, _, _ := testDriver(t)

	_, err := d.Status(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, graphrt.ErrThreadNotFound)
}

func TestResume_ApprovedReachesComplete(t *testing.T) {
	d, deps, _ := testDriver(t)
	deps.Telemetry.InjectAnomaly(deps.BuildingID(), 0.9)

	tid, err := d.Start(context.Background(), state.ExecutionState{}, "approve-thread")
	require.NoError(t, err)

	require.NoError(t, d.Resume(context.Background(), tid, steps.HumanResponse{Approved: true}))

	status, err := d.Status(context.Background(), tid)
	require.NoError(t, err)
	assert.False(t, status.IsInterrupted)
	assert.Equal(t, "complete", status.Phase)
}

func TestResume_UnknownThreadErrors(t *testing.T) {
	d, _, _ := testDriver(t)

	err := d.Resume(context.Background(), "ghost-thread", steps.HumanResponse{Approved: true})
	assert.ErrorIs(t, err, graphrt.ErrThreadNotFound)
}

func TestTraces_AllVerifiedWhenKeysPersisted(t *testing.T) {
	d, deps, _ := testDriver(t)
	deps.Telemetry.InjectAnomaly(deps.BuildingID(), 0.9)

	tid, err := d.Start(context.Background(), state.ExecutionState{}, "trace-thread")
	require.NoError(t, err)
	require.NoError(t, d.Resume(context.Background(), tid, steps.HumanResponse{Approved: true}))

	traces, err := d.Traces(context.Background(), tid)
	require.NoError(t, err)
	require.NotEmpty(t, traces)
	for _, tr := range traces {
		assert.True(t, tr.Verified, "trace for agent %q should verify", tr.AgentID)
	}
}

func TestTraces_UnknownThreadErrors(t *testing.T) {
	d, _, _ := testDriver(t)

	_, err := d.Traces(context.Background(), "ghost-thread")
	assert.ErrorIs(t, err, graphrt.ErrThreadNotFound)
}

func TestTrace_IndexOutOfRangeErrors(t *testing.T) {
	d, _, _ := testDriver(t)

	tid, err := d.Start(context.Background(), state.ExecutionState{}, "empty-thread")
	require.NoError(t, err)

	all, err := d.Traces(context.Background(), tid)
	require.NoError(t, err)
	_, err = d.Trace(context.Background(), tid, len(all))
	assert.Error(t, err)
}

func TestStream_ReceivesEventsOnceSubscribed(t *testing.T) {
	d, deps, _ := testDriver(t)

	ch, unsubscribe := d.Stream("live-thread")
	defer unsubscribe()

	deps.Telemetry.InjectAnomaly(deps.BuildingID(), 0.9)
	_, err := d.Start(context.Background(), state.ExecutionState{}, "live-thread")
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.NotEmpty(t, ev.Type)
	default:
		t.Fatal("expected at least one buffered ui_event after a run")
	}
}

func TestCancelThread_DoesNotPanicOnUnknownThread(t *testing.T) {
	d, _, _ := testDriver(t)
	d.CancelThread("never-started")
}
