// Package discovery renders the well-known role cards spec.md §6 calls
// out: one card per signing agent plus a top-level orchestrator card,
// each exposing the agent's exported public key. This is a pure
// data-serialization concern — it never decides routing or execution,
// it only describes what's already running.
package discovery

import "github.com/ecoverify-prime/ecoverify/pkg/identity"

// Card is one agent's discovery record: identity, capabilities, and
// its exported Ed25519 public key for external signature verification.
type Card struct {
	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	PublicKeyB64 string   `json:"public_key_b64"`
}

type roleDefinition struct {
	name         string
	description  string
	capabilities []string
}

// roles lists the four signing agents named in spec.md §3. The
// Finalizer, the fifth role, does not sign decisions, so it carries no
// key and the document has no card for it.
var roles = map[string]roleDefinition{
	"detector": {
		name:         "The Detector",
		description:  "Autonomous anomaly detection agent. Cites raw telemetry before classifying energy and water anomalies by threshold.",
		capabilities: []string{"telemetry_ingestion", "anomaly_detection", "data_citation", "decision_signing"},
	},
	"jurist": {
		name:         "The Jurist",
		description:  "Regulatory compliance evaluation agent. Enforces Cite-Before-Act and checks every anomaly against transparency and human-oversight articles.",
		capabilities: []string{"compliance_evaluation", "regulatory_query", "citation_verification", "decision_signing"},
	},
	"architect": {
		name:         "The Architect",
		description:  "ROI simulation and digital-twin agent. Computes NPV/payback/CO2 savings and drafts a remediation ticket.",
		capabilities: []string{"roi_simulation", "scene_generation", "ticket_drafting", "decision_signing"},
	},
	"governor": {
		name:         "The Governor",
		description:  "Mandatory human-in-the-loop breakpoint. Suspends execution for approval before any state-mutating action proceeds.",
		capabilities: []string{"hitl_approval", "roi_adjustment", "decision_signing"},
	},
}

// roleOrder fixes the iteration order of AllCards so the document is
// deterministic across processes.
var roleOrder = []string{"detector", "jurist", "architect", "governor"}

// AllCards returns one Card per signing agent, in a fixed order. A
// missing identity key yields an empty PublicKeyB64 rather than
// failing the whole document — discovery degrades gracefully, per
// spec.md §7's MissingIdentity disposition ("step auto-generates,
// logs"), but discovery itself never mints keys.
func AllCards(store *identity.Store) []Card {
	cards := make([]Card, 0, len(roleOrder))
	for _, id := range roleOrder {
		cards = append(cards, card(store, id))
	}
	return cards
}

func card(store *identity.Store, agentID string) Card {
	def := roles[agentID]
	pubKey, _ := store.ExportPublicB64(agentID)
	return Card{
		AgentID:      agentID,
		Name:         def.name,
		Description:  def.description,
		Capabilities: append([]string(nil), def.capabilities...),
		PublicKeyB64: pubKey,
	}
}

// OrchestratorCard describes the document itself — the well-known
// top-level entry an external caller fetches before looking up
// individual agent cards.
type OrchestratorCard struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Agents       []string `json:"agents"`
}

// Orchestrator returns the single orchestrator-level card.
func Orchestrator() OrchestratorCard {
	return OrchestratorCard{
		ID:          "ecoverify-orchestrator",
		Name:        "EcoVerify Graph Orchestrator",
		Description: "Durable, cyclic multi-agent orchestrator for the anomaly-response compliance pipeline: detection, compliance verification, ROI simulation, human approval, and finalization.",
		Capabilities: []string{
			"cyclic_graph_execution",
			"checkpointed_resume",
			"cite_before_act",
			"decision_trace_signing",
			"proof_graph_generation",
		},
		Agents: append([]string(nil), roleOrder...),
	}
}

// Document is the complete well-known discovery payload: the
// orchestrator card plus every agent role card.
type Document struct {
	Orchestrator OrchestratorCard `json:"orchestrator"`
	Agents       []Card           `json:"agents"`
}

// Build assembles the full discovery Document from store's currently
// persisted keys.
func Build(store *identity.Store) Document {
	return Document{
		Orchestrator: Orchestrator(),
		Agents:       AllCards(store),
	}
}
