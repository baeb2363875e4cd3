// Package risk implements the fintech risk-scoring and settlement
// compliance checks the Finalizer runs best-effort over a completed
// thread: a composite 0-100 operational risk score, and rule-based
// checks against the (fictional) GENIUS Act and EU MiCA frameworks.
package risk

import (
	"math"

	"github.com/ecoverify-prime/ecoverify/pkg/state"
)

var severityWeights = map[string]float64{"high": 0.9, "medium": 0.5, "low": 0.2}
var compliancePenalty = map[string]float64{"non_compliant": 30.0, "compliant": 0.0, "unknown": 15.0}

// Factor is one weighted contributor to a composite score.
type Factor struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Score is the Finalizer's composite operational risk assessment.
type Score struct {
	Value          float64  `json:"score"`
	Category       string   `json:"category"` // critical | elevated | nominal
	Factors        []Factor `json:"factors"`
	Recommendation string   `json:"recommendation"`
}

// Compute blends anomaly severity, compliance posture, and financial
// exposure into a single composite score.
func Compute(anomalies []state.Anomaly, complianceStatus string, financialExposureUSD float64) Score {
	severityScore := 0.0
	for _, a := range anomalies {
		w, ok := severityWeights[a.Severity]
		if !ok {
			w = 0.5
		}
		severityScore += w * 25
	}
	severityScore = math.Min(severityScore, 50.0)

	compScore, ok := compliancePenalty[complianceStatus]
	if !ok {
		compScore = 15.0
	}

	finScore := math.Min(math.Log1p(financialExposureUSD/1000)*10, 20.0)

	// Each factor is scaled to 0-100 by its cap (50, 30, 20) before
	// weighting, so the composite spans 0-100.
	composite := (severityScore/50*100)*0.4 + (compScore/30*100)*0.35 + (finScore/20*100)*0.25
	composite = math.Min(round1(composite), 100.0)

	category := "nominal"
	switch {
	case composite >= 70:
		category = "critical"
	case composite >= 40:
		category = "elevated"
	}

	return Score{
		Value:    composite,
		Category: category,
		Factors: []Factor{
			{Name: "anomaly_severity", Score: round1(severityScore), Weight: 0.4},
			{Name: "compliance_posture", Score: round1(compScore), Weight: 0.35},
			{Name: "financial_exposure", Score: round1(finScore), Weight: 0.25},
		},
		Recommendation: recommend(composite, len(anomalies), complianceStatus),
	}
}

func recommend(score float64, anomalyCount int, compliance string) string {
	switch {
	case score >= 70:
		return "CRITICAL: immediate action required; activate incident response protocol."
	case score >= 40:
		return "ELEVATED: monitoring escalated; schedule maintenance within 48 hours."
	default:
		return "NOMINAL: all metrics within acceptable thresholds; continue standard monitoring."
	}
}

// ComplianceResult is the outcome of a settlement-framework rule check.
type ComplianceResult struct {
	Framework  string   `json:"framework"`
	Compliant  bool     `json:"compliant"`
	Violations []string `json:"violations"`
	Confidence float64  `json:"confidence"`
	Details    string   `json:"details"`
}

// CheckGeniusAct verifies a settlement against a simplified reading of
// the US stablecoin GENIUS Act: transactions over $10k require
// enhanced KYC, and every settling party must carry a verifiable
// agent identity.
func CheckGeniusAct(transactionType string, amountUSD float64, agentIDs []string) ComplianceResult {
	var violations []string
	if amountUSD > 10_000 && transactionType == "settlement" {
		violations = append(violations, "Transactions >$10k require enhanced KYC under BSA/AML provisions.")
	}
	if len(agentIDs) == 0 {
		violations = append(violations, "Agent identity must be verifiable for GENIUS Act compliance.")
	}
	return ComplianceResult{
		Framework:  "GENIUS_ACT",
		Compliant:  len(violations) == 0,
		Violations: violations,
		Confidence: 0.92,
		Details:    "Transaction evaluated against GENIUS Act provisions.",
	}
}

// CheckMiCA verifies a settlement against a simplified reading of the
// EU Markets in Crypto-Assets regulation.
func CheckMiCA(settlementType string, amountEUR float64, crossBorder bool) ComplianceResult {
	var violations []string
	if crossBorder && amountEUR > 1_000 {
		violations = append(violations, "Cross-border crypto transfers >€1k require originator/beneficiary info (MiCA Art. 76).")
	}
	switch settlementType {
	case "usdc_transfer", "token_swap", "stablecoin_payment":
	default:
		violations = append(violations, "Unrecognized settlement type — manual review required.")
	}
	return ComplianceResult{
		Framework:  "EU_MICA",
		Compliant:  len(violations) == 0,
		Violations: violations,
		Confidence: 0.89,
		Details:    "Settlement evaluated against EU MiCA provisions.",
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
