package steps

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/ecoverify-prime/ecoverify/pkg/state"
	"github.com/ecoverify-prime/ecoverify/pkg/trace"
)

const architectAgentID = "architect"

const (
	costPerKWh       = 0.18
	costPerGallon    = 0.008
	discountRate     = 0.08
	monthlyHours     = 730
	campusBuildings  = 3
	co2TonsPerKWh    = 0.000417
	waterGalPerKWh   = 0.5
	campusFixCostUSD = 15_000.0
)

type roiDetail struct {
	AnomalyType     string  `json:"anomaly_type"`
	MonthlySavingUS float64 `json:"monthly_saving_usd"`
	CO2TonsSaved    float64 `json:"co2_tons_saved"`
}

// Architect computes ROI/CO2 savings for every detected anomaly,
// generates a deterministic 3D digital-twin scene, and drafts a
// maintenance ticket for the primary anomaly.
func Architect(ctx context.Context, deps Deps, threadID string, s state.ExecutionState) (state.Delta, error) {
	return span("architect", func() (state.Delta, error) {
		now := time.Now().UTC().Format(time.RFC3339)

		roiAdjustment := 1.0
		if s.GovernorApproval != nil && !*s.GovernorApproval && s.SimulationResult != nil {
			if prevAdj, ok := s.SimulationResult["roi_adjustment"].(float64); ok {
				roiAdjustment = prevAdj * 0.9
			} else {
				roiAdjustment = 0.9
			}
		}

		roi := computeROI(s.Anomalies, roiAdjustment)
		scene := generateScene(threadID, s.IterationCount, s.Anomalies)

		var tickets []state.Ticket
		if len(s.Anomalies) > 0 {
			primary := s.Anomalies[0]
			priority := "Medium"
			if primary.Severity == "high" {
				priority = "High"
			}
			t := deps.Tickets.Create(
				fmt.Sprintf("[Auto] %s — %s", titleize(primary.Type), primary.BuildingID),
				fmt.Sprintf(
					"Anomaly detected: %s.\nEstimated monthly saving: $%.2f.\n3-year NPV: $%.2f.\n\nAuto-generated by the ARCHITECT agent.",
					primary.Metric, roi["monthly_savings_usd"], roi["npv_3yr_usd"],
				),
				priority,
				primary.BuildingID,
			)
			tickets = append(tickets, t)
		}

		privKey, err := deps.Identity.Generate(architectAgentID, false)
		if err != nil {
			return state.Delta{}, fmt.Errorf("architect: load key: %w", err)
		}
		tr, err := trace.Sign(architectAgentID, map[string]any{
			"action":                "roi_simulation",
			"monthly_savings":       roi["monthly_savings_usd"],
			"npv_3yr":               roi["npv_3yr_usd"],
			"payback_months":        roi["payback_months"],
			"co2_tons_saved_annual": roi["co2_tons_saved_annual"],
			"env_reduction_pct":     roi["env_reduction_pct"],
			"campus_buildings":      campusBuildings,
			"tickets_drafted":       len(tickets),
		}, privKey)
		if err != nil {
			return state.Delta{}, fmt.Errorf("architect: sign trace: %w", err)
		}

		uiEvents := []state.UIEvent{
			{
				Type:  "neural_feed",
				Agent: "ARCHITECT",
				Message: fmt.Sprintf(
					"ROI Simulation: +$%.0f/mo across %d buildings (NPV 3yr: $%.0f). CO2 reduced: %.1f tons/yr (%.1f%%). Payback: %.1f mo.",
					roi["monthly_savings_usd"], campusBuildings, roi["npv_3yr_usd"],
					roi["co2_tons_saved_annual"], roi["env_reduction_pct"], roi["payback_months"],
				),
				Severity:  "low",
				Timestamp: now,
			},
			{
				Type:      "3d_update",
				Payload:   scene,
				Timestamp: now,
			},
		}
		if len(tickets) > 0 {
			uiEvents = append(uiEvents, state.UIEvent{
				Type:      "neural_feed",
				Agent:     "ARCHITECT",
				Message:   fmt.Sprintf("Ticket drafted: %s", tickets[0].TicketID),
				Severity:  "low",
				Timestamp: now,
			})
		}

		return state.Delta{
			CurrentPhase:     "architect_complete",
			SimulationResult: roi,
			JiraTickets:      tickets,
			DecisionTraces:   []trace.Trace{tr},
			UIEvents:         uiEvents,
			Messages: []state.Message{{
				Role: "assistant",
				Content: fmt.Sprintf(
					"[ARCHITECT] ROI simulation complete: $%.2f/mo, NPV 3yr $%.2f. %d ticket(s) drafted.",
					roi["monthly_savings_usd"], roi["npv_3yr_usd"], len(tickets),
				),
				Name: "architect",
			}},
		}, nil
	})
}

func computeROI(anomalies []state.Anomaly, roiAdjustment float64) map[string]any {
	var totalMonthlySavings, totalCO2TonsMonth, totalWaterSavedMonth float64
	var details []roiDetail

	for _, a := range anomalies {
		var monthlySaving, co2Saved, waterSaved float64
		switch a.Type {
		case "energy_spike":
			peak, avg := defaultF(a.Peak, 180), defaultF(a.Avg, 130)
			excessKwh := peak - avg
			recoverableKwh := excessKwh * monthlyHours * 0.35
			monthlySaving = recoverableKwh * costPerKWh * campusBuildings
			co2Saved = recoverableKwh * co2TonsPerKWh * campusBuildings
			waterSaved = recoverableKwh * waterGalPerKWh * campusBuildings
		case "water_spike":
			peak, avg := defaultF(a.Peak, 600), defaultF(a.Avg, 350)
			excessGal := peak - avg
			monthlySaving = excessGal * monthlyHours * costPerGallon * 0.30 * campusBuildings
			waterSaved = excessGal * monthlyHours * 0.30 * campusBuildings
		default:
			monthlySaving = 800 * campusBuildings
			co2Saved = 1.5
			waterSaved = 500
		}

		monthlySaving *= roiAdjustment
		totalMonthlySavings += monthlySaving
		totalCO2TonsMonth += co2Saved
		totalWaterSavedMonth += waterSaved
		details = append(details, roiDetail{
			AnomalyType:     a.Type,
			MonthlySavingUS: round2(monthlySaving),
			CO2TonsSaved:    round3(co2Saved),
		})
	}

	baselineAnnualCO2 := 100.0
	if totalCO2TonsMonth > 0 {
		baselineAnnualCO2 = totalCO2TonsMonth * 12 / 0.30
	}
	envReductionPct := round1((totalCO2TonsMonth * 12 / maxNonZero(baselineAnnualCO2)) * 100)

	annualSaving := totalMonthlySavings * 12
	npv3yr := 0.0
	for yr := 1; yr <= 3; yr++ {
		npv3yr += annualSaving / math.Pow(1+discountRate, float64(yr))
	}
	paybackMonths := round1(campusFixCostUSD / maxNonZero(totalMonthlySavings))

	return map[string]any{
		"monthly_savings_usd":         round2(totalMonthlySavings),
		"annual_savings_usd":          round2(annualSaving),
		"npv_3yr_usd":                 round2(npv3yr),
		"payback_months":              paybackMonths,
		"roi_adjustment":              roiAdjustment,
		"co2_tons_saved_monthly":      round3(totalCO2TonsMonth),
		"co2_tons_saved_annual":       round2(totalCO2TonsMonth * 12),
		"water_gallons_saved_monthly": math.Round(totalWaterSavedMonth),
		"env_reduction_pct":           envReductionPct,
		"campus_buildings":            campusBuildings,
		"details":                     details,
	}
}

// generateScene builds a deterministic 4x5 rack grid for the digital
// twin, seeded from an FNV-1a hash of threadID and iterationCount so
// replaying the same thread at the same point reproduces the same
// scene — anomalous racks and energy levels are reproducible, not
// re-randomized on every resume.
func generateScene(threadID string, iterationCount int, anomalies []state.Anomaly) map[string]any {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", threadID, iterationCount)))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	type node struct {
		ID          string         `json:"id"`
		Position    map[string]any `json:"position"`
		EnergyLevel float64        `json:"energy_level"`
		Status      string         `json:"status"`
		Color       string         `json:"color"`
	}

	var nodes []node
	for row := 0; row < 4; row++ {
		for col := 0; col < 5; col++ {
			energyLevel := 0.3 + rng.Float64()*0.4
			status := "normal"
			color := "#00ff88"

			if len(anomalies) > 0 && (row*5+col)%7 < len(anomalies) {
				energyLevel = 0.8 + rng.Float64()*0.2
				status = "anomaly"
				color = "#ff3366"
			}

			nodes = append(nodes, node{
				ID: fmt.Sprintf("rack-%d-%d", row, col),
				Position: map[string]any{
					"x": float64(col-2) * 3.0,
					"y": 0.0,
					"z": (float64(row) - 1.5) * 3.0,
				},
				EnergyLevel: round3(energyLevel),
				Status:      status,
				Color:       color,
			})
		}
	}

	var connections []map[string]string
	for row := 0; row < 4; row++ {
		for col := 0; col < 5; col++ {
			if col < 4 {
				connections = append(connections, map[string]string{
					"from": fmt.Sprintf("rack-%d-%d", row, col),
					"to":   fmt.Sprintf("rack-%d-%d", row, col+1),
				})
			}
			if row < 3 {
				connections = append(connections, map[string]string{
					"from": fmt.Sprintf("rack-%d-%d", row, col),
					"to":   fmt.Sprintf("rack-%d-%d", row+1, col),
				})
			}
		}
	}

	return map[string]any{"nodes": nodes, "connections": connections}
}

func defaultF(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

func titleize(s string) string {
	out := []rune(s)
	capitalizeNext := true
	for i, r := range out {
		if r == '_' {
			out[i] = ' '
			capitalizeNext = true
			continue
		}
		if capitalizeNext && r >= 'a' && r <= 'z' {
			out[i] = r - ('a' - 'A')
		}
		capitalizeNext = false
	}
	return string(out)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
