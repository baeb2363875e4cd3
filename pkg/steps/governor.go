package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/ecoverify-prime/ecoverify/pkg/state"
	"github.com/ecoverify-prime/ecoverify/pkg/trace"
)

const governorAgentID = "governor"

// HumanResponse is the operator's verdict on a Governor breakpoint.
// A nil *HumanResponse passed to Governor means "no decision yet" —
// the step pauses instead of resolving.
type HumanResponse struct {
	Approved      bool
	ROIAdjustment float64
}

// GovernorResult distinguishes a pause-for-approval outcome (the
// mandatory human-in-the-loop breakpoint) from a resumed decision.
type GovernorResult struct {
	Delta       state.Delta
	Interrupted bool
	Pending     map[string]any
}

// Governor is the system's single mandatory human-in-the-loop
// breakpoint. Called with resume == nil it emits the approval panel
// and reports Interrupted so the caller pauses and persists Pending.
// Called again with a non-nil resume it records the decision and
// routes onward: approved goes to finalize, rejected loops back to
// architect with a tightened ROI adjustment.
func Governor(ctx context.Context, deps Deps, s state.ExecutionState, resume *HumanResponse) (GovernorResult, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	simulation := s.SimulationResult
	if simulation == nil {
		simulation = map[string]any{}
	}
	compliance := s.ComplianceReport
	if compliance == nil {
		compliance = map[string]any{}
	}

	actionSummary := fmt.Sprintf(
		"Approve maintenance action for %d anomalie(s). Estimated monthly saving: $%.2f. "+
			"CO2 reduction: %.1f tons/yr (%.1f%%). Compliance status: %v. Jira tickets to submit: %d.",
		len(s.Anomalies), floatOr(simulation["monthly_savings_usd"], 0),
		floatOr(simulation["co2_tons_saved_annual"], 0), floatOr(simulation["env_reduction_pct"], 0),
		stringOr(compliance["status"], "unknown"), len(s.JiraTickets),
	)

	if resume == nil {
		pending := map[string]any{
			"action_summary":    actionSummary,
			"estimated_roi":     floatOr(simulation["monthly_savings_usd"], 0),
			"npv_3yr":           floatOr(simulation["npv_3yr_usd"], 0),
			"payback_months":    floatOr(simulation["payback_months"], 0),
			"requires_approval": true,
		}
		return GovernorResult{
			Interrupted: true,
			Pending:     pending,
			Delta: state.Delta{
				CurrentPhase: "awaiting_approval",
				UIEvents: []state.UIEvent{
					{
						Type:      "governor_panel",
						Payload:   pending,
						Timestamp: now,
					},
					{
						Type:      "neural_feed",
						Agent:     "GOVERNOR",
						Message:   "Awaiting human approval for state-mutating action...",
						Severity:  "medium",
						Timestamp: now,
					},
				},
			},
		}, nil
	}

	privKey, err := deps.Identity.Generate(governorAgentID, false)
	if err != nil {
		return GovernorResult{}, fmt.Errorf("governor: load key: %w", err)
	}
	tr, err := trace.Sign(governorAgentID, map[string]any{
		"action":         "human_approval",
		"approved":       resume.Approved,
		"roi_adjustment": resume.ROIAdjustment,
	}, privKey)
	if err != nil {
		return GovernorResult{}, fmt.Errorf("governor: sign trace: %w", err)
	}

	approval := resume.Approved
	if resume.Approved {
		return GovernorResult{
			Delta: state.Delta{
				GovernorApproval: &approval,
				CurrentPhase:     "governor_approved",
				DecisionTraces:   []trace.Trace{tr},
				UIEvents: []state.UIEvent{{
					Type:      "neural_feed",
					Agent:     "GOVERNOR",
					Message:   "Action APPROVED by human operator.",
					Severity:  "low",
					Timestamp: now,
				}},
				Messages: []state.Message{{
					Role:    "assistant",
					Content: "[GOVERNOR] Human operator approved the action. Proceeding to finalization.",
					Name:    "governor",
				}},
			},
		}, nil
	}

	roiAdj := resume.ROIAdjustment
	if roiAdj == 0 {
		roiAdj = 1.0
	}
	updatedSimulation := make(map[string]any, len(simulation)+1)
	for k, v := range simulation {
		updatedSimulation[k] = v
	}
	updatedSimulation["roi_adjustment"] = roiAdj

	return GovernorResult{
		Delta: state.Delta{
			GovernorApproval: &approval,
			CurrentPhase:     "governor_rejected",
			DecisionTraces:   []trace.Trace{tr},
			SimulationResult: updatedSimulation,
			UIEvents: []state.UIEvent{{
				Type:      "neural_feed",
				Agent:     "GOVERNOR",
				Message:   fmt.Sprintf("Action REJECTED. Re-simulating with ROI adjustment x%.2f.", roiAdj),
				Severity:  "medium",
				Timestamp: now,
			}},
			Messages: []state.Message{{
				Role:    "assistant",
				Content: fmt.Sprintf("[GOVERNOR] Action rejected. Re-routing to ARCHITECT with ROI adjustment %.2f.", roiAdj),
				Name:    "governor",
			}},
		},
	}, nil
}

func floatOr(v any, fallback float64) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return fallback
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}
