// Package e2e drives the full graph runtime through the Driver API,
// end to end, the way an external façade would — starting threads,
// streaming events, resuming interrupts, and reading back status and
// traces. No HTTP is involved; the harness talks directly to
// pkg/driver.Driver, matching spec.md §6's "no HTTP handlers live in
// this repo" boundary.
package e2e

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecoverify-prime/ecoverify/pkg/adapters/fhir"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/settlement"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/telemetry"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/ticket"
	"github.com/ecoverify-prime/ecoverify/pkg/driver"
	"github.com/ecoverify-prime/ecoverify/pkg/graphrt"
	"github.com/ecoverify-prime/ecoverify/pkg/identity"
	"github.com/ecoverify-prime/ecoverify/pkg/steps"
)

// harness bundles a Driver with its underlying adapters, so a test can
// reach into deps.Telemetry to inject an anomaly before starting a run.
type harness struct {
	Driver   *driver.Driver
	Identity *identity.Store
	Deps     steps.Deps
	Engine   *graphrt.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	idStore, err := identity.NewStore(t.TempDir())
	require.NoError(t, err)

	deps := steps.Deps{
		Identity:   idStore,
		Telemetry:  telemetry.NewSimulator(),
		Tickets:    ticket.NewDesk(),
		Settlement: settlement.NewLedger("devnet"),
		FHIR:       fhir.NewClient(""),
	}.WithBuildingID("HQ-01")

	engine := graphrt.NewEngine(graphrt.NewMemoryStore(), deps)

	return &harness{
		Driver:   driver.New(engine, idStore),
		Identity: idStore,
		Deps:     deps,
		Engine:   engine,
	}
}
