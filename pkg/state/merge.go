package state

import (
	"github.com/ecoverify-prime/ecoverify/pkg/citation"
	"github.com/ecoverify-prime/ecoverify/pkg/trace"
)

// Delta is the partial-update shape every step returns. Field-keyed
// merge semantics (§3 of the design) are applied by Merge, never by
// the step itself: a nil slice/map/pointer means "this step did not
// touch the field" and leaves the corresponding state field
// unchanged; a non-nil (possibly empty) value replaces or appends
// depending on the field's merge policy below.
type Delta struct {
	Messages         []Message
	TelemetryData    map[string]any
	Anomalies        []Anomaly
	Citations        []citation.Block
	DecisionTraces   []trace.Trace
	ComplianceReport map[string]any
	SimulationResult map[string]any
	JiraTickets      []Ticket
	GovernorApproval *bool
	Settlements      []Settlement
	RiskScores       []RiskScore
	FHIRObservations []FHIRObservation
	EdutechHints     []EdutechHint
	UserIntent       map[string]any
	CurrentPhase     string
	ErrorLog         []string
	IterationCount   int
	UIEvents         []UIEvent
}

// Merge applies delta to s and returns the resulting state. s is never
// mutated. Append fields (messages, decision_traces, settlements,
// risk_scores, fhir_observations, edutech_hints, error_log, ui_events)
// concatenate in order; every other field is replaced verbatim when
// present in delta.
func Merge(s ExecutionState, delta Delta) ExecutionState {
	out := s.Clone()

	if delta.Messages != nil {
		out.Messages = append(out.Messages, delta.Messages...)
	}
	if delta.TelemetryData != nil {
		out.TelemetryData = delta.TelemetryData
	}
	if delta.Anomalies != nil {
		out.Anomalies = delta.Anomalies
	}
	if delta.Citations != nil {
		out.Citations = delta.Citations
	}
	if delta.DecisionTraces != nil {
		out.DecisionTraces = append(out.DecisionTraces, delta.DecisionTraces...)
	}
	if delta.ComplianceReport != nil {
		out.ComplianceReport = delta.ComplianceReport
	}
	if delta.SimulationResult != nil {
		out.SimulationResult = delta.SimulationResult
	}
	if delta.JiraTickets != nil {
		out.JiraTickets = delta.JiraTickets
	}
	if delta.GovernorApproval != nil {
		out.GovernorApproval = delta.GovernorApproval
	}
	if delta.Settlements != nil {
		out.Settlements = append(out.Settlements, delta.Settlements...)
	}
	if delta.RiskScores != nil {
		out.RiskScores = append(out.RiskScores, delta.RiskScores...)
	}
	if delta.FHIRObservations != nil {
		out.FHIRObservations = append(out.FHIRObservations, delta.FHIRObservations...)
	}
	if delta.EdutechHints != nil {
		out.EdutechHints = append(out.EdutechHints, delta.EdutechHints...)
	}
	if delta.UserIntent != nil {
		out.UserIntent = delta.UserIntent
	}
	if delta.CurrentPhase != "" {
		out.CurrentPhase = delta.CurrentPhase
	}
	if delta.ErrorLog != nil {
		out.ErrorLog = append(out.ErrorLog, delta.ErrorLog...)
	}
	if delta.IterationCount != 0 {
		out.IterationCount = delta.IterationCount
	}
	if delta.UIEvents != nil {
		out.UIEvents = append(out.UIEvents, delta.UIEvents...)
	}

	return out
}

// Initial returns the zero-value execution state a new thread starts
// from: every slice field initialized to an empty (non-nil) slice so
// Clone and JSON encoding behave uniformly from the first checkpoint.
func Initial() ExecutionState {
	return ExecutionState{
		Messages:         []Message{},
		Anomalies:        []Anomaly{},
		Citations:        []citation.Block{},
		DecisionTraces:   []trace.Trace{},
		JiraTickets:      []Ticket{},
		Settlements:      []Settlement{},
		RiskScores:       []RiskScore{},
		FHIRObservations: []FHIRObservation{},
		EdutechHints:     []EdutechHint{},
		CurrentPhase:     "starting",
		ErrorLog:         []string{},
		UIEvents:         []UIEvent{},
	}
}
