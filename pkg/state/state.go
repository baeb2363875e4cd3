// Package state defines the typed shared execution state that flows
// through the graph runtime, and its field-keyed merge semantics.
// Merging lives entirely here, never inside a step (pkg/steps returns
// only Deltas).
package state

import (
	"github.com/ecoverify-prime/ecoverify/pkg/citation"
	"github.com/ecoverify-prime/ecoverify/pkg/trace"
)

// Message is one dialog entry in the execution's running transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Anomaly is a shape-checked (not enumerated) telemetry anomaly record.
type Anomaly struct {
	Type         string  `json:"type"`
	BuildingID   string  `json:"building_id"`
	Severity     string  `json:"severity"`
	Metric       string  `json:"metric"`
	Peak         float64 `json:"peak"`
	Avg          float64 `json:"avg"`
	AnomalyCount int     `json:"anomaly_count"`
	DetectedAt   string  `json:"detected_at"`
}

// Ticket is a drafted maintenance ticket from the ticket adapter.
type Ticket struct {
	TicketID    string `json:"ticket_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	BuildingID  string `json:"building_id"`
	Status      string `json:"status"`
}

// Settlement is one entry in the mock settlement ledger.
type Settlement struct {
	SettlementID string  `json:"settlement_id"`
	FromAgent    string  `json:"from_agent"`
	ToAgent      string  `json:"to_agent"`
	AmountUSD    float64 `json:"amount_usd"`
	FeeUSD       float64 `json:"fee_usd"`
	TxSignature  string  `json:"tx_signature"`
	CreatedAt    string  `json:"created_at"`
}

// RiskScore is the fintech risk-scoring adapter's output for one anomaly.
type RiskScore struct {
	BuildingID     string  `json:"building_id"`
	Category       string  `json:"category"`
	CompositeScore float64 `json:"composite_score"`
	FinancialUSD   float64 `json:"financial_exposure_usd"`
}

// FHIRObservation is the clinical-energy-audit adapter's output.
type FHIRObservation struct {
	FacilityID   string  `json:"facility_id"`
	FacilityType string  `json:"facility_type"`
	Score        float64 `json:"score"`
	Tier         string  `json:"tier"`
}

// EdutechHint is a friction-detection + upskill recommendation.
type EdutechHint struct {
	SignalType     string `json:"signal_type"`
	Recommendation string `json:"recommendation"`
}

// UIEvent is one observable event emitted by a step. Type determines
// which of the optional fields are populated; the closed set of types
// is enumerated in pkg/driver.
type UIEvent struct {
	Type      string         `json:"type"`
	Agent     string         `json:"agent,omitempty"`
	Message   string         `json:"message,omitempty"`
	Severity  string         `json:"severity,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// ExecutionState is the typed shared record threaded through every
// step. See Delta for the partial-update shape steps actually return.
type ExecutionState struct {
	Messages          []Message         `json:"messages"`
	TelemetryData     map[string]any    `json:"telemetry_data"`
	Anomalies         []Anomaly         `json:"anomalies"`
	Citations         []citation.Block  `json:"citations"`
	DecisionTraces    []trace.Trace     `json:"decision_traces"`
	ComplianceReport  map[string]any    `json:"compliance_report"`
	SimulationResult  map[string]any    `json:"simulation_result"`
	JiraTickets       []Ticket          `json:"jira_tickets"`
	GovernorApproval  *bool             `json:"governor_approval"`
	Settlements       []Settlement      `json:"settlements"`
	RiskScores        []RiskScore       `json:"risk_scores"`
	FHIRObservations  []FHIRObservation `json:"fhir_observations"`
	EdutechHints      []EdutechHint     `json:"edutech_hints"`
	UserIntent        map[string]any    `json:"user_intent"`
	CurrentPhase      string            `json:"current_phase"`
	ErrorLog          []string          `json:"error_log"`
	IterationCount    int               `json:"iteration_count"`
	UIEvents          []UIEvent         `json:"ui_events"`
}

// Clone returns a deep-enough copy of s for safe concurrent reads:
// every slice header is copied so callers can't mutate the runtime's
// canonical state through an aliased slice.
func (s ExecutionState) Clone() ExecutionState {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Anomalies = append([]Anomaly(nil), s.Anomalies...)
	out.Citations = append([]citation.Block(nil), s.Citations...)
	out.DecisionTraces = append([]trace.Trace(nil), s.DecisionTraces...)
	out.JiraTickets = append([]Ticket(nil), s.JiraTickets...)
	out.Settlements = append([]Settlement(nil), s.Settlements...)
	out.RiskScores = append([]RiskScore(nil), s.RiskScores...)
	out.FHIRObservations = append([]FHIRObservation(nil), s.FHIRObservations...)
	out.EdutechHints = append([]EdutechHint(nil), s.EdutechHints...)
	out.ErrorLog = append([]string(nil), s.ErrorLog...)
	out.UIEvents = append([]UIEvent(nil), s.UIEvents...)
	return out
}
