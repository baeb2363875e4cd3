// Package graphrt is the cyclic graph runtime: it composes the agent
// steps and routers into a static node map, dispatches one step at a
// time per thread, merges state deltas, persists a checkpoint after
// every step, and suspends the thread at the Governor's interrupt
// until an external caller resumes it — possibly in another process.
package graphrt

import (
	"context"
	"errors"

	"github.com/ecoverify-prime/ecoverify/pkg/state"
)

// ErrNoCheckpoint is returned when a thread has never been checkpointed.
var ErrNoCheckpoint = errors.New("graphrt: no checkpoint for thread")

// Checkpoint is one durable snapshot of a thread's execution: the
// merged state as of step_index, the step names the router allowed
// next (the runtime dispatches NextCandidates[0] when it continues the
// thread), and the Governor's pending approval payload when
// the thread is paused.
type Checkpoint struct {
	ThreadID         string
	StepIndex        int
	State            state.ExecutionState
	NextCandidates   []string
	PendingInterrupt map[string]any
}

// clone returns a checkpoint whose State is independently mutable from
// the caller's, so the runtime never hands out an aliased slice/map
// that a caller could mutate behind its back.
func (cp Checkpoint) clone() Checkpoint {
	out := cp
	out.State = cp.State.Clone()
	out.NextCandidates = append([]string(nil), cp.NextCandidates...)
	if cp.PendingInterrupt != nil {
		pending := make(map[string]any, len(cp.PendingInterrupt))
		for k, v := range cp.PendingInterrupt {
			pending[k] = v
		}
		out.PendingInterrupt = pending
	}
	return out
}

// Store persists Checkpoints keyed by (thread_id, step_index). The
// runtime is injectable against any Store — tests use MemoryStore, a
// durable deployment uses PostgresStore — so "start → suspend →
// process-restart → resume" is exercised identically regardless of
// backend (§6 of the design: "the on-disk format is an implementation
// choice").
type Store interface {
	// Save persists cp, overwriting any prior row at the same
	// (thread_id, step_index).
	Save(ctx context.Context, cp Checkpoint) error
	// Latest returns the highest-step_index checkpoint for threadID, or
	// ErrNoCheckpoint if the thread has never been checkpointed.
	Latest(ctx context.Context, threadID string) (Checkpoint, error)
	// History returns every checkpoint for threadID in step order.
	History(ctx context.Context, threadID string) ([]Checkpoint, error)
}
