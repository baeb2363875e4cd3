package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/ecoverify-prime/ecoverify/pkg/adapters/llm"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/telemetry"
	"github.com/ecoverify-prime/ecoverify/pkg/citation"
	"github.com/ecoverify-prime/ecoverify/pkg/state"
	"github.com/ecoverify-prime/ecoverify/pkg/trace"
)

const detectorAgentID = "detector"

// Detector scans the monitored building's BMS telemetry, cites its raw
// data sources before drawing any conclusion, and signs its findings.
func Detector(ctx context.Context, deps Deps, s state.ExecutionState) (state.Delta, error) {
	return span("detector", func() (state.Delta, error) {
		buildingID := deps.BuildingID()
		now := time.Now().UTC()
		nowISO := now.Format(time.RFC3339)

		energy := deps.Telemetry.Energy(buildingID, 24)
		water := deps.Telemetry.Water(buildingID, 24)

		energyCitation, err := citation.Cite(
			fmt.Sprintf("bms:energy:%s", buildingID),
			energy,
			fmt.Sprintf("Energy avg=%.2f kWh, peak=%.2f kWh", energy.Summary.Avg, energy.Summary.Peak),
		)
		if err != nil {
			return state.Delta{}, fmt.Errorf("detector: cite energy: %w", err)
		}
		waterCitation, err := citation.Cite(
			fmt.Sprintf("bms:water:%s", buildingID),
			water,
			fmt.Sprintf("Water avg=%.2f gal, peak=%.2f gal", water.Summary.Avg, water.Summary.Peak),
		)
		if err != nil {
			return state.Delta{}, fmt.Errorf("detector: cite water: %w", err)
		}

		var anomalies []state.Anomaly
		if energy.Summary.AnomalyCount > 0 {
			anomalies = append(anomalies, buildAnomaly("energy_spike", buildingID, energy.Summary, 20, nowISO))
		}
		if water.Summary.AnomalyCount > 0 {
			anomalies = append(anomalies, buildAnomaly("water_spike", buildingID, water.Summary, 25, nowISO))
		}

		privKey, err := deps.Identity.Generate(detectorAgentID, false)
		if err != nil {
			return state.Delta{}, fmt.Errorf("detector: load key: %w", err)
		}

		tr, err := trace.Sign(detectorAgentID, map[string]any{
			"action":          "anomaly_scan",
			"building_id":     buildingID,
			"anomalies_found": len(anomalies),
			"energy_summary":  energy.Summary,
			"water_summary":   water.Summary,
		}, privKey)
		if err != nil {
			return state.Delta{}, fmt.Errorf("detector: sign trace: %w", err)
		}

		var uiEvents []state.UIEvent
		var messageText string
		if len(anomalies) > 0 {
			primary := anomalies[0]
			anomalyMessage := fmt.Sprintf("Energy spike detected (%s) in %s", primary.Metric, buildingID)
			if enriched, ok := enrichAnomalyMessage(ctx, deps.AnomalyModel, buildingID, primary, energy.Summary); ok {
				anomalyMessage = enriched
			}
			uiEvents = append(uiEvents, state.UIEvent{
				Type:      "neural_feed",
				Agent:     "DETECTOR",
				Message:   anomalyMessage,
				Severity:  primary.Severity,
				Timestamp: nowISO,
			})
		} else {
			uiEvents = append(uiEvents, state.UIEvent{
				Type:      "neural_feed",
				Agent:     "DETECTOR",
				Message:   fmt.Sprintf("Telemetry nominal for %s — no anomalies detected.", buildingID),
				Severity:  "low",
				Timestamp: nowISO,
			})
		}
		messageText = fmt.Sprintf(
			"[DETECTOR] Scanned %s: %d anomalie(s) detected. Energy peak=%.2f kWh, Water peak=%.2f gal.",
			buildingID, len(anomalies), energy.Summary.Peak, water.Summary.Peak,
		)

		return state.Delta{
			TelemetryData: map[string]any{
				"energy": energy,
				"water":  water,
			},
			Anomalies:      anomalies,
			Citations:      []citation.Block{energyCitation, waterCitation},
			DecisionTraces: []trace.Trace{tr},
			CurrentPhase:   "detector_complete",
			IterationCount: s.IterationCount + 1,
			UIEvents:       uiEvents,
			Messages:       []state.Message{{Role: "assistant", Content: messageText, Name: "detector"}},
		}, nil
	})
}

// enrichAnomalyMessage asks model for a one-sentence dashboard summary
// of the primary anomaly, mirroring vanguard.py's try/except enrichment
// of anomaly_message: any nil model, disabled model, error, or empty
// response falls back to the caller's deterministic string.
func enrichAnomalyMessage(ctx context.Context, model llm.Model, buildingID string, primary state.Anomaly, energy telemetry.Summary) (string, bool) {
	if model == nil {
		return "", false
	}
	prompt := fmt.Sprintf(
		"Summarise this energy anomaly in one professional sentence for a dashboard feed: "+
			"Building %s, %s, %s, severity=%s, peak=%.2f kWh, avg=%.2f kWh.",
		buildingID, primary.Type, primary.Metric, primary.Severity, energy.Peak, energy.Avg,
	)
	out, err := model.Invoke(ctx, prompt)
	if err != nil || out == "" {
		return "", false
	}
	return out, true
}

func buildAnomaly(anomalyType, buildingID string, summary telemetry.Summary, highThresholdPct float64, nowISO string) state.Anomaly {
	pctAbove := 0.0
	if summary.Avg > 0 {
		pctAbove = round1(((summary.Peak - summary.Avg) / maxNonZero(summary.Avg)) * 100)
	}
	severity := "medium"
	if pctAbove > highThresholdPct {
		severity = "high"
	}
	return state.Anomaly{
		Type:         anomalyType,
		BuildingID:   buildingID,
		Severity:     severity,
		Metric:       fmt.Sprintf("+%.1f%% above average", pctAbove),
		Peak:         summary.Peak,
		Avg:          summary.Avg,
		AnomalyCount: summary.AnomalyCount,
		DetectedAt:   nowISO,
	}
}

func maxNonZero(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
