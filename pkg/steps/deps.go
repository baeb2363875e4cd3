// Package steps implements the five agent steps that make up a
// thread's anomaly-response loop: Detector, Jurist, Architect,
// Governor, and Finalizer. Every step is a pure function of an
// ExecutionState (plus its injected adapters) that returns a Delta —
// state merging itself always happens in pkg/state, never here.
package steps

import (
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/edutech"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/fhir"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/llm"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/settlement"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/telemetry"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/ticket"
	"github.com/ecoverify-prime/ecoverify/pkg/identity"
)

// Deps bundles every adapter and trust-substrate component a step
// might call. A single instance is shared across all steps in a
// process; every field must be safe for concurrent use.
type Deps struct {
	Identity     *identity.Store
	Telemetry    *telemetry.Simulator
	Tickets      *ticket.Desk
	Settlement   *settlement.Ledger
	FHIR         *fhir.Client
	Enricher     edutech.Enricher // optional, nil disables friction enrichment
	AnomalyModel llm.Model        // optional, nil/disabled falls back to the Detector's deterministic neural_feed text

	buildingID string
}

// BuildingID returns the building this deployment monitors, defaulting
// to "HQ-01" to match the demo topology.
func (d Deps) BuildingID() string {
	if d.buildingID == "" {
		return "HQ-01"
	}
	return d.buildingID
}

// WithBuildingID returns a copy of d scoped to a different building.
func (d Deps) WithBuildingID(id string) Deps {
	d.buildingID = id
	return d
}
