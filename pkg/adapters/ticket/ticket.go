// Package ticket simulates a Jira-like maintenance ticketing system for
// the Architect's drafted remediation work and the Finalizer's
// submission step. In production this would call the Jira REST API;
// here it is an in-process, thread-safe stub.
package ticket

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ecoverify-prime/ecoverify/pkg/state"
)

// Desk is an in-memory ticket board. Safe for concurrent use across
// threads drafting and submitting tickets at the same time.
type Desk struct {
	mu      sync.Mutex
	tickets []state.Ticket
}

// NewDesk returns an empty ticket board.
func NewDesk() *Desk { return &Desk{} }

// Create drafts a new maintenance ticket in the "Open" state.
func (d *Desk) Create(title, description, priority, buildingID string) state.Ticket {
	id := uuid.New()
	num := binary.BigEndian.Uint32(id[:4])%80000 + 10000

	t := state.Ticket{
		TicketID:    fmt.Sprintf("ECO-%d", num),
		Title:       title,
		Description: description,
		Priority:    priority,
		BuildingID:  buildingID,
		Status:      "Open",
	}
	d.mu.Lock()
	d.tickets = append(d.tickets, t)
	d.mu.Unlock()
	return t
}

// Submit marks ticketID as "In Progress", the Finalizer's terminal
// state mutation for a drafted ticket. Returns false if the ticket is
// unknown to this desk (e.g. a resumed thread against a fresh process).
func (d *Desk) Submit(ticketID string) (state.Ticket, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.tickets {
		if d.tickets[i].TicketID == ticketID {
			d.tickets[i].Status = "In Progress"
			return d.tickets[i], true
		}
	}
	return state.Ticket{}, false
}

// Open returns all open tickets for a building.
func (d *Desk) Open(buildingID string) []state.Ticket {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []state.Ticket
	for _, t := range d.tickets {
		if t.BuildingID == buildingID && t.Status == "Open" {
			out = append(out, t)
		}
	}
	return out
}
