// Package edutech watches operator interaction patterns for cognitive
// friction — slow approvals, repeated rejections, agent
// self-correction loops, elevated error rates — and turns detected
// friction into just-in-time micro-lessons.
package edutech

import (
	"fmt"
	"time"
)

const (
	slowApprovalThresholdS = 60.0
	maxSelfCorrections     = 3
	highErrorRate          = 0.3
)

// FrictionSignal is one detected moment of operator or agent confusion.
type FrictionSignal struct {
	SignalType      string  `json:"signal_type"`
	Severity        string  `json:"severity"`
	Context         string  `json:"context"`
	AgentPhase      string  `json:"agent_phase"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

// Metrics is the interaction-pattern input to friction detection for
// a single agent phase.
type Metrics struct {
	ApprovalLatencySeconds float64
	RejectionCount         int
	SelfCorrectionCount    int
	ErrorCount             int
	TotalActions           int
	AgentPhase             string
}

// Detect returns every friction signal triggered by m. May return nil.
func Detect(m Metrics) []FrictionSignal {
	now := time.Now().UTC().Format(time.RFC3339)
	totalActions := m.TotalActions
	if totalActions <= 0 {
		totalActions = 1
	}

	var signals []FrictionSignal

	if m.ApprovalLatencySeconds > slowApprovalThresholdS {
		severity := "medium"
		if m.ApprovalLatencySeconds >= 120 {
			severity = "high"
		}
		signals = append(signals, FrictionSignal{
			SignalType:      "slow_approval",
			Severity:        severity,
			Context:         fmt.Sprintf("Approval took %.0fs (threshold: %.0fs)", m.ApprovalLatencySeconds, slowApprovalThresholdS),
			AgentPhase:      m.AgentPhase,
			DurationSeconds: m.ApprovalLatencySeconds,
			Timestamp:       now,
		})
	}

	if m.RejectionCount >= 2 {
		severity := "medium"
		if m.RejectionCount >= 3 {
			severity = "high"
		}
		signals = append(signals, FrictionSignal{
			SignalType: "repeated_rejection",
			Severity:   severity,
			Context:    fmt.Sprintf("Operator rejected %d consecutive actions", m.RejectionCount),
			AgentPhase: m.AgentPhase,
			Timestamp:  now,
		})
	}

	if m.SelfCorrectionCount >= maxSelfCorrections {
		signals = append(signals, FrictionSignal{
			SignalType: "self_correction_loop",
			Severity:   "high",
			Context:    fmt.Sprintf("Agent self-corrected %d times (limit: %d)", m.SelfCorrectionCount, maxSelfCorrections),
			AgentPhase: m.AgentPhase,
			Timestamp:  now,
		})
	}

	errorRate := float64(m.ErrorCount) / float64(totalActions)
	if errorRate >= highErrorRate && m.ErrorCount >= 2 {
		severity := "medium"
		if errorRate >= 0.5 {
			severity = "high"
		}
		signals = append(signals, FrictionSignal{
			SignalType: "high_error_rate",
			Severity:   severity,
			Context:    fmt.Sprintf("Error rate %.0f%% (%d/%d actions)", errorRate*100, m.ErrorCount, totalActions),
			AgentPhase: m.AgentPhase,
			Timestamp:  now,
		})
	}

	return signals
}

// Recommendation is a just-in-time micro-lesson for an operator.
type Recommendation struct {
	Topic            string   `json:"topic"`
	Urgency          string   `json:"urgency"` // suggested | recommended | required
	Content          string   `json:"content"`
	RelatedArticles  []string `json:"related_articles"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	Timestamp        string   `json:"timestamp"`
}

type lesson struct {
	topic    string
	content  string
	articles []string
	minutes  int
}

var lessonDB = map[string]lesson{
	"slow_approval": {
		topic: "Understanding ROI Metrics in Energy Optimization",
		content: "When reviewing energy optimization proposals, focus on three key metrics:\n" +
			"1. Monthly Savings — direct operational cost reduction.\n" +
			"2. NPV (3yr) — accounts for time value of money at the configured discount rate.\n" +
			"3. Payback Period — months until the investment is recovered.\n\n" +
			"Tip: if the payback period is under 12 months and NPV is positive, the action is almost always worth approving.",
		articles: []string{"EU AI Act Art. 14 — Human Oversight", "ASHRAE 90.1 — Energy Standards"},
		minutes:  3,
	},
	"repeated_rejection": {
		topic: "Compliance Thresholds and Action Boundaries",
		content: "If you're repeatedly rejecting agent recommendations, consider:\n" +
			"1. Are the anomaly severity thresholds too sensitive?\n" +
			"2. Is the compliance framework overly strict? Check the Articles referenced.\n" +
			"3. Has the risk profile changed? Review the latest fintech risk score.\n\n" +
			"Tip: use the ROI adjustment slider to fine-tune recommendations before rejecting outright.",
		articles: []string{"EU AI Act Art. 9 — Risk Management", "ISO 50001 — Energy Management"},
		minutes:  4,
	},
	"self_correction_loop": {
		topic: "Data Citation and Source Verification",
		content: "Self-correction loops occur when the Jurist cannot verify data citations. This usually indicates:\n" +
			"1. Telemetry data gaps — check BMS sensor connectivity.\n" +
			"2. Citation format issues — data sources must be properly tagged.\n" +
			"3. Threshold misconfiguration — anomaly thresholds may be too tight.\n\n" +
			"Tip: the Cite-Before-Act protocol requires every decision to reference verifiable data sources.",
		articles: []string{"EU AI Act Art. 13 — Transparency", "EU AI Act Art. 71 — Auditing"},
		minutes:  5,
	},
	"high_error_rate": {
		topic: "System Health and Error Diagnosis",
		content: "High error rates suggest systemic issues:\n" +
			"1. Check BMS telemetry connectivity and data freshness.\n" +
			"2. Review recent infrastructure changes that may affect baseline readings.\n" +
			"3. Consider running a manual diagnostic scan before triggering automated analysis.\n\n" +
			"Tip: the error log in the decision traces shows detailed failure reasons.",
		articles: []string{"ISO 27001 — Information Security", "NIST AI 600-1 — AI Risk"},
		minutes:  3,
	},
}

// Enricher optionally supplements the first recommendation with a
// model-generated contextual tip. Callers without an LLM wire a no-op.
type Enricher interface {
	Enrich(signal FrictionSignal) (string, bool)
}

// Generate turns friction signals into upskill recommendations,
// skipping signal types without a known lesson. enricher may be nil.
func Generate(signals []FrictionSignal, enricher Enricher) []Recommendation {
	now := time.Now().UTC().Format(time.RFC3339)
	var recs []Recommendation

	for _, sig := range signals {
		l, ok := lessonDB[sig.SignalType]
		if !ok {
			continue
		}
		urgency := "suggested"
		switch sig.Severity {
		case "high":
			urgency = "required"
		case "medium":
			urgency = "recommended"
		}
		recs = append(recs, Recommendation{
			Topic:            l.topic,
			Urgency:          urgency,
			Content:          l.content,
			RelatedArticles:  l.articles,
			EstimatedMinutes: l.minutes,
			Timestamp:        now,
		})
	}

	if enricher != nil && len(signals) > 0 && len(recs) > 0 {
		if tip, ok := enricher.Enrich(signals[0]); ok && tip != "" {
			recs[0].Content += "\n\nAI Insight: " + tip
		}
	}

	return recs
}
