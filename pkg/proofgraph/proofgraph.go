// Package proofgraph renders a thread's signed decision-trace chain as
// a Mermaid.js flowchart — the human-auditable proof that each step's
// decision was taken in order and is bound to the trace before it.
package proofgraph

import (
	"fmt"
	"strings"

	"github.com/ecoverify-prime/ecoverify/pkg/trace"
)

var shapes = map[string][2]string{
	"governor": {"{", "}"},
	"detector": {"([", "])"},
}

var classed = map[string]bool{
	"detector":  true,
	"jurist":    true,
	"architect": true,
	"governor":  true,
}

// Build returns a Mermaid "graph TD" definition for traces, in order.
// Each node is labeled with its agent and the action it recorded; the
// edge into it is labeled with the first 8 characters of its payload
// hash, so the rendered graph doubles as a visual signature chain.
func Build(traces []trace.Trace) string {
	var lines []string
	lines = append(lines, "graph TD", `    START(("Start"))`)

	prevNode := "START"
	for i, tr := range traces {
		agent := tr.AgentID
		if agent == "" {
			agent = fmt.Sprintf("agent_%d", i)
		}
		nodeID := fmt.Sprintf("%s_%d", agent, i)

		open, close := "[", "]"
		if s, ok := shapes[agent]; ok {
			open, close = s[0], s[1]
		}

		label := fmt.Sprintf("%s\\n%s", strings.ToUpper(agent), actionOf(tr.Decision))
		if extra := extraOf(tr.Decision); extra != "" {
			label += extra
		}

		lines = append(lines, fmt.Sprintf(`    %s%s"%s"%s`, nodeID, open, label, close))

		sigShort := tr.PayloadHash
		if len(sigShort) > 8 {
			sigShort = sigShort[:8]
		}
		lines = append(lines, fmt.Sprintf(`    %s -->|"sig:%s"| %s`, prevNode, sigShort, nodeID))
		prevNode = nodeID
	}
	lines = append(lines, fmt.Sprintf(`    %s --> END(("Complete"))`, prevNode))

	lines = append(lines, "",
		"    classDef detector fill:#1e40af,stroke:#3b82f6,color:#fff",
		"    classDef jurist fill:#6b21a8,stroke:#a855f7,color:#fff",
		"    classDef architect fill:#065f46,stroke:#10b981,color:#fff",
		"    classDef governor fill:#92400e,stroke:#f59e0b,color:#fff",
	)

	for i, tr := range traces {
		agent := tr.AgentID
		if agent == "" {
			continue
		}
		if classed[agent] {
			lines = append(lines, fmt.Sprintf("    class %s_%d %s", agent, i, agent))
		}
	}

	return strings.Join(lines, "\n")
}

func actionOf(decision map[string]any) string {
	if action, ok := decision["action"].(string); ok {
		return action
	}
	return "unknown"
}

func extraOf(decision map[string]any) string {
	switch {
	case hasKey(decision, "monthly_savings"):
		return fmt.Sprintf("\\n$%.0f/mo", floatOf(decision["monthly_savings"]))
	case hasKey(decision, "anomalies_found"):
		return fmt.Sprintf("\\n%d anomalie(s)", intOf(decision["anomalies_found"]))
	case hasKey(decision, "status"):
		return fmt.Sprintf("\\n%v", decision["status"])
	case hasKey(decision, "approved"):
		if b, ok := decision["approved"].(bool); ok && b {
			return "\\nApproved"
		}
		return "\\nRejected"
	default:
		return ""
	}
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func floatOf(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
