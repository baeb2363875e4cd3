package steps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecoverify-prime/ecoverify/pkg/adapters/edutech"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/risk"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/settlement"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/telemetry"
	"github.com/ecoverify-prime/ecoverify/pkg/proofgraph"
	"github.com/ecoverify-prime/ecoverify/pkg/state"
)

// Finalizer submits drafted tickets, settles the A2A service fee,
// scores operational and fintech risk, checks for cognitive-friction
// signals, audits clinical energy efficiency, and renders the
// Mermaid proof-graph for the completed thread.
func Finalizer(ctx context.Context, deps Deps, s state.ExecutionState) (state.Delta, error) {
	return span("finalizer", func() (state.Delta, error) {
		now := time.Now().UTC().Format(time.RFC3339)

		var submittedIDs []string
		for _, t := range s.JiraTickets {
			if _, ok := deps.Tickets.Submit(t.TicketID); ok {
				submittedIDs = append(submittedIDs, t.TicketID)
			}
		}

		simulation := s.SimulationResult
		if simulation == nil {
			simulation = map[string]any{}
		}
		complianceStatus := stringOr(s.ComplianceReport["status"], "unknown")

		var settlements []state.Settlement
		fee := round2(floatOr(simulation["monthly_savings_usd"], 0) * 0.001)
		if fee > 0 {
			receipt, err := deps.Settlement.Settle(ctx, settlement.Request{
				FromAgent: "architect",
				ToAgent:   "governor",
				AmountUSD: fee,
				Memo:      fmt.Sprintf("A2A service fee for thread execution — %d anomalies resolved", len(s.Anomalies)),
			})
			if err == nil {
				settlements = append(settlements, state.Settlement{
					SettlementID: receipt.TxSignature,
					FromAgent:    receipt.FromAgent,
					ToAgent:      receipt.ToAgent,
					AmountUSD:    receipt.AmountUSD,
					FeeUSD:       fee,
					TxSignature:  receipt.TxSignature,
					CreatedAt:    receipt.Timestamp,
				})
			} else {
				slog.Debug("adapter failure", "adapter", "settlement", "err", err)
			}
		}

		riskScore := risk.Compute(s.Anomalies, complianceStatus, floatOr(simulation["monthly_savings_usd"], 0))
		var riskScores []state.RiskScore
		buildingID := deps.BuildingID()
		if len(s.Anomalies) > 0 {
			buildingID = s.Anomalies[0].BuildingID
		}
		riskScores = append(riskScores, state.RiskScore{
			BuildingID:     buildingID,
			Category:       riskScore.Category,
			CompositeScore: riskScore.Value,
			FinancialUSD:   floatOr(simulation["monthly_savings_usd"], 0),
		})

		errorLog := s.ErrorLog
		frictionSignals := edutech.Detect(edutech.Metrics{
			SelfCorrectionCount: maxInt(s.IterationCount-1, 0),
			ErrorCount:          len(errorLog),
			TotalActions:        s.IterationCount,
			AgentPhase:          "finalizer",
		})
		var edutechHints []state.EdutechHint
		if len(frictionSignals) > 0 {
			recs := edutech.Generate(frictionSignals, deps.Enricher)
			for i, rec := range recs {
				if i >= len(frictionSignals) {
					break
				}
				edutechHints = append(edutechHints, state.EdutechHint{
					SignalType:     frictionSignals[i].SignalType,
					Recommendation: rec.Topic,
				})
			}
		}

		energyReadings := extractEnergyReadings(s)
		facilityID := buildingID
		var fhirObservations []state.FHIRObservation
		var fhirScore float64
		var fhirRecommendationCount int
		if deps.FHIR != nil {
			audit := deps.FHIR.AuditClinicalEnergy(ctx, facilityID, energyReadings, "data_center", 60_000.0)
			fhirObservations = audit.Observations
			fhirScore = audit.EfficiencyScore
			fhirRecommendationCount = len(audit.Recommendations)
		}

		var settlementAmount float64
		for _, r := range settlements {
			settlementAmount += r.AmountUSD
		}
		agentIDSet := map[string]struct{}{}
		for _, tr := range s.DecisionTraces {
			if tr.AgentID != "" {
				agentIDSet[tr.AgentID] = struct{}{}
			}
		}
		var agentIDs []string
		for id := range agentIDSet {
			agentIDs = append(agentIDs, id)
		}
		genius := risk.CheckGeniusAct("settlement", settlementAmount, agentIDs)
		mica := risk.CheckMiCA("usdc_transfer", settlementAmount*0.92, true)

		mermaid := proofgraph.Build(s.DecisionTraces)

		summary := map[string]any{
			"anomalies_detected":    len(s.Anomalies),
			"compliance_status":     complianceStatus,
			"monthly_savings_usd":   floatOr(simulation["monthly_savings_usd"], 0),
			"npv_3yr_usd":           floatOr(simulation["npv_3yr_usd"], 0),
			"co2_tons_saved_annual": floatOr(simulation["co2_tons_saved_annual"], 0),
			"env_reduction_pct":     floatOr(simulation["env_reduction_pct"], 0),
			"tickets_submitted":     submittedIDs,
			"decision_traces_count": len(s.DecisionTraces),
			"governor_approved":     s.GovernorApproval,
			"fhir_audit_score":      fhirScore,
			"genius_act_compliant":  genius.Compliant,
			"mica_compliant":        mica.Compliant,
			"completed_at":          now,
		}

		uiEvents := []state.UIEvent{
			{Type: "proof_graph", Payload: map[string]any{"mermaid": mermaid}, Timestamp: now},
			{
				Type:  "neural_feed",
				Agent: "SYSTEM",
				Message: fmt.Sprintf("Loop complete: %d anomalie(s) resolved, $%.0f/mo projected saving, %d ticket(s) submitted.",
					len(s.Anomalies), floatOr(simulation["monthly_savings_usd"], 0), len(submittedIDs)),
				Severity:  "low",
				Timestamp: now,
			},
			{Type: "execution_complete", Payload: summary, Timestamp: now},
		}

		if len(settlements) > 0 {
			first := settlements[0]
			uiEvents = append(uiEvents,
				state.UIEvent{
					Type:  "settlement_update",
					Agent: "SYSTEM",
					Message: fmt.Sprintf("USDC settlement: $%.4f (%s)", first.AmountUSD, "confirmed"),
					Payload: map[string]any{
						"tx_signature": first.TxSignature,
						"amount_usdc":  first.AmountUSD,
					},
					Severity:  "low",
					Timestamp: now,
				},
				state.UIEvent{
					Type:      "neural_feed",
					Agent:     "SYSTEM",
					Message:   fmt.Sprintf("A2A settlement: $%.4f USDC", first.AmountUSD),
					Severity:  "low",
					Timestamp: now,
				},
			)
		}

		rsSeverity := "low"
		if riskScore.Value >= 70 {
			rsSeverity = "high"
		} else if riskScore.Value >= 40 {
			rsSeverity = "medium"
		}
		uiEvents = append(uiEvents,
			state.UIEvent{
				Type:      "risk_alert",
				Agent:     "SYSTEM",
				Message:   fmt.Sprintf("Risk score: %.1f/100 (%s)", riskScore.Value, riskScore.Category),
				Severity:  rsSeverity,
				Timestamp: now,
			},
			state.UIEvent{
				Type:      "neural_feed",
				Agent:     "SYSTEM",
				Message:   fmt.Sprintf("Risk Assessment: %.1f/100 — %s", riskScore.Value, riskScore.Recommendation),
				Severity:  rsSeverity,
				Timestamp: now,
			},
		)

		for _, hint := range edutechHints {
			uiEvents = append(uiEvents, state.UIEvent{
				Type:      "edutech_hint",
				Agent:     "SYSTEM",
				Message:   fmt.Sprintf("Upskill: %s", hint.Recommendation),
				Severity:  "low",
				Timestamp: now,
			})
		}

		if deps.FHIR != nil {
			uiEvents = append(uiEvents,
				state.UIEvent{
					Type:  "fhir_audit",
					Agent: "FHIR",
					Message: fmt.Sprintf("FHIR Audit: %s — score %.0f/100", facilityID, fhirScore),
					Severity: func() string {
						if fhirScore < 60 {
							return "medium"
						}
						return "low"
					}(),
					Timestamp: now,
				},
				state.UIEvent{
					Type:      "neural_feed",
					Agent:     "FHIR",
					Message:   fmt.Sprintf("Clinical energy audit: %.0f/100 efficiency, %d recommendation(s)", fhirScore, fhirRecommendationCount),
					Severity:  "low",
					Timestamp: now,
				},
			)
		}

		for _, cr := range []risk.ComplianceResult{genius, mica} {
			severity := "low"
			if !cr.Compliant {
				severity = "high"
			}
			uiEvents = append(uiEvents, state.UIEvent{
				Type:      "neural_feed",
				Agent:     "FINTECH",
				Message:   fmt.Sprintf("%s: %s", cr.Framework, cr.Details),
				Severity:  severity,
				Timestamp: now,
			})
		}

		return state.Delta{
			CurrentPhase:     "complete",
			Settlements:      settlements,
			RiskScores:       riskScores,
			EdutechHints:     edutechHints,
			FHIRObservations: fhirObservations,
			UIEvents:         uiEvents,
			Messages: []state.Message{{
				Role: "assistant",
				Content: fmt.Sprintf(
					"[SYSTEM] Execution complete. %d anomalie(s), $%.2f/mo saving, %d ticket(s) submitted, %d settlement(s).",
					len(s.Anomalies), floatOr(simulation["monthly_savings_usd"], 0), len(submittedIDs), len(settlements),
				),
				Name: "system",
			}},
		}, nil
	})
}

func extractEnergyReadings(s state.ExecutionState) []float64 {
	if raw, ok := s.TelemetryData["energy"]; ok {
		if series, ok := raw.(telemetry.Series); ok && len(series.Readings) > 0 {
			readings := make([]float64, len(series.Readings))
			for i, r := range series.Readings {
				readings[i] = r.Value
			}
			return readings
		}
	}
	for _, a := range s.Anomalies {
		if a.Peak != 0 {
			readings := make([]float64, 0, 10)
			for i := 0; i < 8; i++ {
				readings = append(readings, a.Avg)
			}
			readings = append(readings, a.Peak, a.Peak)
			return readings
		}
	}
	return []float64{145.0, 138.0, 152.0, 180.0, 141.0}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
