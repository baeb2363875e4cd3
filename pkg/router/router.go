// Package router implements the pure state→next-step functions that
// drive the cyclic graph. Routers never mutate state and never touch
// adapters; given the same state they always return the same node
// name, so they are trivially unit-testable without a runtime.
package router

import "github.com/ecoverify-prime/ecoverify/pkg/state"

// End is the sentinel "no next step" result.
const End = "__end__"

// MaxIterations bounds the Jurist→Detector self-correction loop (the
// only cycle a router can re-enter); exceeding it terminates the
// thread in a degraded state rather than looping forever.
const MaxIterations = 5

// AfterDetector routes to Jurist when the Detector found anomalies,
// otherwise ends the thread directly (the "nominal telemetry" path).
func AfterDetector(s state.ExecutionState) string {
	if len(s.Anomalies) > 0 {
		return "jurist"
	}
	return End
}

// AfterJurist routes based on citation validity and compliance
// verdict: a citation failure loops back to Detector (capped at
// MaxIterations), a non-compliant verdict escalates immediately to
// the Governor, and a compliant verdict with anomalies proceeds to
// ROI simulation in the Architect.
func AfterJurist(s state.ExecutionState) string {
	if s.CurrentPhase == "citation_failure" {
		if s.IterationCount >= MaxIterations {
			return End
		}
		return "detector"
	}

	status, _ := s.ComplianceReport["status"].(string)
	if status == "non_compliant" {
		return "governor"
	}

	return "architect"
}

// AfterArchitect always routes to the Governor: every state-mutating
// action requires the mandatory human breakpoint before it can
// proceed to finalization.
func AfterArchitect(state.ExecutionState) string {
	return "governor"
}

// AfterGovernor routes based on the Governor's resumed decision: an
// approved action proceeds to Finalizer, a rejected one loops back to
// Architect to re-simulate with the tightened ROI adjustment. It
// should only be called once the Governor has resumed (GovernorResult
// not Interrupted) — calling it while still paused is a caller bug,
// and current_phase will not match either branch.
func AfterGovernor(s state.ExecutionState) string {
	if s.CurrentPhase == "governor_approved" {
		return "finalizer"
	}
	return "architect"
}
