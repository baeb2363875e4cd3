package steps

import (
	"testing"

	"github.com/ecoverify-prime/ecoverify/pkg/adapters/fhir"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/settlement"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/telemetry"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/ticket"
	"github.com/ecoverify-prime/ecoverify/pkg/identity"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	store, err := identity.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new identity store: %v", err)
	}
	return Deps{
		Identity:   store,
		Telemetry:  telemetry.NewSimulator(),
		Tickets:    ticket.NewDesk(),
		Settlement: settlement.NewLedger("devnet"),
		FHIR:       fhir.NewClient(""),
	}
}
