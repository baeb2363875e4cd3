// Package driver is the Driver API: the sole façade-facing surface of
// the graph runtime (spec.md §6). It wraps pkg/graphrt.Engine with the
// five operations an external caller needs — start, stream, resume,
// status, traces — and never grows an HTTP handler of its own; that
// surface is an external, out-of-scope consumer (SPEC_FULL.md §6).
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecoverify-prime/ecoverify/pkg/graphrt"
	"github.com/ecoverify-prime/ecoverify/pkg/identity"
	"github.com/ecoverify-prime/ecoverify/pkg/state"
	"github.com/ecoverify-prime/ecoverify/pkg/steps"
	"github.com/ecoverify-prime/ecoverify/pkg/trace"
)

// Driver wraps an Engine and an identity Store to serve the façade API.
// It holds no state of its own beyond those two references — every
// query re-derives its answer from the engine's current checkpoint.
type Driver struct {
	engine   *graphrt.Engine
	identity *identity.Store
}

// New returns a Driver backed by engine for execution and identity for
// trace re-verification.
func New(engine *graphrt.Engine, identity *identity.Store) *Driver {
	return &Driver{engine: engine, identity: identity}
}

// Start begins a new thread (or returns the existing thread_id
// unchanged if threadID already has a checkpoint — Start is not a
// re-entry point). An empty threadID mints a fresh uuid.
func (d *Driver) Start(ctx context.Context, initial state.ExecutionState, threadID string) (string, error) {
	return d.engine.Start(ctx, initial, threadID)
}

// Stream returns a live channel of UI events for threadID and an
// unsubscribe function the caller must invoke when done listening.
// Event types are the closed set named in spec.md §6: phase_change,
// neural_feed, 3d_update, governor_panel, interrupt, settlement_update,
// risk_alert, edutech_hint, fhir_audit, proof_graph, execution_complete,
// complete.
func (d *Driver) Stream(threadID string) (<-chan state.UIEvent, func()) {
	return d.engine.Subscribe(threadID)
}

// Resume delivers a human decision to a thread paused at the
// Governor's HITL breakpoint.
func (d *Driver) Resume(ctx context.Context, threadID string, response steps.HumanResponse) error {
	return d.engine.Resume(ctx, threadID, response)
}

// StatusResponse is the snapshot spec.md §6 names: phase, run
// liveness, and the headline figures a dashboard would poll for
// without re-deriving them from the raw ExecutionState itself.
type StatusResponse struct {
	ThreadID         string  `json:"thread_id"`
	Phase            string  `json:"phase"`
	IsRunning        bool    `json:"is_running"`
	IsInterrupted    bool    `json:"is_interrupted"`
	AnomalyCount     int     `json:"anomaly_count"`
	ComplianceStatus string  `json:"compliance_status"`
	MonthlySavings   float64 `json:"monthly_savings"`
	RiskScore        float64 `json:"risk_score"`
	SettlementCount  int     `json:"settlement_count"`
	FHIRAuditStatus  string  `json:"fhir_audit_status"`
}

// Status computes the snapshot from the thread's latest checkpoint.
// Returns graphrt.ErrThreadNotFound if threadID has never been started.
func (d *Driver) Status(ctx context.Context, threadID string) (StatusResponse, error) {
	cp, err := d.engine.LatestCheckpoint(ctx, threadID)
	if err != nil {
		if errors.Is(err, graphrt.ErrNoCheckpoint) {
			return StatusResponse{}, graphrt.ErrThreadNotFound
		}
		return StatusResponse{}, err
	}
	s := cp.State

	isInterrupted := len(cp.NextCandidates) > 0 && cp.NextCandidates[0] == "governor" && cp.PendingInterrupt != nil
	isRunning := d.engine.IsRunning(threadID)

	complianceStatus := "pending"
	if s.ComplianceReport != nil {
		if v, ok := s.ComplianceReport["status"].(string); ok && v != "" {
			complianceStatus = v
		}
	}

	var monthlySavings float64
	if s.SimulationResult != nil {
		if v, ok := s.SimulationResult["monthly_savings_usd"].(float64); ok {
			monthlySavings = v
		}
	}

	var riskScore float64
	if n := len(s.RiskScores); n > 0 {
		riskScore = s.RiskScores[n-1].CompositeScore
	}

	fhirStatus := "pending"
	if n := len(s.FHIRObservations); n > 0 {
		if s.FHIRObservations[n-1].Tier != "" {
			fhirStatus = s.FHIRObservations[n-1].Tier
		}
	}

	return StatusResponse{
		ThreadID:         threadID,
		Phase:            s.CurrentPhase,
		IsRunning:        isRunning,
		IsInterrupted:    isInterrupted,
		AnomalyCount:     len(s.Anomalies),
		ComplianceStatus: complianceStatus,
		MonthlySavings:   monthlySavings,
		RiskScore:        riskScore,
		SettlementCount:  len(s.Settlements),
		FHIRAuditStatus:  fhirStatus,
	}, nil
}

// TraceWithVerified pairs a decision trace with its re-verification
// result against the identity store's currently persisted public key.
type TraceWithVerified struct {
	trace.Trace
	Verified bool `json:"verified"`
}

// Traces returns every decision trace accumulated for threadID, each
// re-verified against the identity store's current public key for its
// agent_id — per spec.md §6, "verified" is computed fresh on every
// call, never cached alongside the trace itself. A trace whose agent
// has no persisted key (or whose signature no longer checks out, e.g.
// a tampered payload) carries verified=false without failing the call.
func (d *Driver) Traces(ctx context.Context, threadID string) ([]TraceWithVerified, error) {
	cp, err := d.engine.LatestCheckpoint(ctx, threadID)
	if err != nil {
		if errors.Is(err, graphrt.ErrNoCheckpoint) {
			return nil, graphrt.ErrThreadNotFound
		}
		return nil, err
	}

	traces := cp.State.DecisionTraces
	out := make([]TraceWithVerified, 0, len(traces))
	for _, tr := range traces {
		verified := false
		if pub, pubErr := d.identity.GetPublic(tr.AgentID); pubErr == nil {
			verified = trace.Verify(tr, pub)
		}
		out = append(out, TraceWithVerified{Trace: tr, Verified: verified})
	}
	return out, nil
}

// CancelThread requests cooperative cancellation of threadID, a thin
// pass-through the façade exposes alongside the five spec.md §6
// operations for operator-driven shutdown.
func (d *Driver) CancelThread(threadID string) {
	d.engine.Cancel(threadID)
}

// Trace fetches a single decision trace by its position in the
// thread's DecisionTraces list, re-verified. Useful for a façade that
// wants one record rather than the whole list.
func (d *Driver) Trace(ctx context.Context, threadID string, index int) (TraceWithVerified, error) {
	all, err := d.Traces(ctx, threadID)
	if err != nil {
		return TraceWithVerified{}, err
	}
	if index < 0 || index >= len(all) {
		return TraceWithVerified{}, fmt.Errorf("driver: trace index %d out of range (have %d)", index, len(all))
	}
	return all[index], nil
}
