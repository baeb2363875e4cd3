package graphrt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ecoverify-prime/ecoverify/pkg/router"
	"github.com/ecoverify-prime/ecoverify/pkg/state"
	"github.com/ecoverify-prime/ecoverify/pkg/steps"
)

const (
	defaultRecursionCap = 25
	defaultStepTimeout  = 30 * time.Second
	eventBufferSize     = 256
)

// nodeResult is the uniform shape every wrapped step produces, erasing
// the difference between an ordinary step's bare Delta and the
// Governor's Command-or-Suspend StepResult (§9 "Command vs delta" of
// the design: both are variants of one sum type, dispatched on here).
type nodeResult struct {
	Delta       state.Delta
	Interrupted bool
	Pending     map[string]any
}

type nodeFunc func(ctx context.Context, deps steps.Deps, threadID string, s state.ExecutionState, resume *steps.HumanResponse) (nodeResult, error)

type routeFunc func(state.ExecutionState) string

type node struct {
	run   nodeFunc
	route routeFunc
}

// Engine is the cyclic graph runtime: a static node map (Detector,
// Jurist, Architect, Governor, Finalizer) plus a Store for
// checkpointing. It enforces single-threaded-per-thread_id dispatch, a
// per-run recursion cap, cooperative cancellation between steps, and
// the Governor's mandatory suspend/resume breakpoint.
type Engine struct {
	store Store
	deps  steps.Deps
	nodes map[string]node

	recursionCap int
	stepTimeout  time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	cancelMu  sync.Mutex
	cancelled map[string]bool

	subMu sync.Mutex
	subs  map[string][]chan state.UIEvent

	dispatchCount atomic.Int64 // process-wide counter, observability only
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithRecursionCap overrides the default per-thread total-dispatch cap (25).
func WithRecursionCap(n int) Option {
	return func(e *Engine) { e.recursionCap = n }
}

// WithStepTimeout overrides the default per-step wall-clock timeout (30s).
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) { e.stepTimeout = d }
}

// NewEngine wires the five agent steps and their routers into a static
// graph backed by store, ready to drive threads.
func NewEngine(store Store, deps steps.Deps, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		deps:         deps,
		recursionCap: defaultRecursionCap,
		stepTimeout:  defaultStepTimeout,
		locks:        make(map[string]*sync.Mutex),
		cancelled:    make(map[string]bool),
		subs:         make(map[string][]chan state.UIEvent),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.nodes = map[string]node{
		"detector": {
			run: func(ctx context.Context, deps steps.Deps, _ string, s state.ExecutionState, _ *steps.HumanResponse) (nodeResult, error) {
				delta, err := steps.Detector(ctx, deps, s)
				return nodeResult{Delta: delta}, err
			},
			route: router.AfterDetector,
		},
		"jurist": {
			run: func(ctx context.Context, deps steps.Deps, _ string, s state.ExecutionState, _ *steps.HumanResponse) (nodeResult, error) {
				delta, err := steps.Jurist(ctx, deps, s)
				return nodeResult{Delta: delta}, err
			},
			route: router.AfterJurist,
		},
		"architect": {
			run: func(ctx context.Context, deps steps.Deps, threadID string, s state.ExecutionState, _ *steps.HumanResponse) (nodeResult, error) {
				delta, err := steps.Architect(ctx, deps, threadID, s)
				return nodeResult{Delta: delta}, err
			},
			route: router.AfterArchitect,
		},
		"governor": {
			run: func(ctx context.Context, deps steps.Deps, _ string, s state.ExecutionState, resume *steps.HumanResponse) (nodeResult, error) {
				res, err := steps.Governor(ctx, deps, s, resume)
				if err != nil {
					return nodeResult{}, err
				}
				return nodeResult{Delta: res.Delta, Interrupted: res.Interrupted, Pending: res.Pending}, nil
			},
			route: router.AfterGovernor,
		},
		"finalizer": {
			run: func(ctx context.Context, deps steps.Deps, _ string, s state.ExecutionState, _ *steps.HumanResponse) (nodeResult, error) {
				delta, err := steps.Finalizer(ctx, deps, s)
				return nodeResult{Delta: delta}, err
			},
			route: func(state.ExecutionState) string { return router.End },
		},
	}

	return e
}

func (e *Engine) lockFor(threadID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[threadID] = l
	}
	return l
}

// acquire reserves exclusive dispatch rights for threadID. A thread_id
// is an exclusive execution key: only one goroutine may have a step in
// flight for it at a time (§5 of the design).
func (e *Engine) acquire(threadID string) (func(), error) {
	l := e.lockFor(threadID)
	if !l.TryLock() {
		return nil, ErrAlreadyRunning
	}
	return l.Unlock, nil
}

// IsRunning reports whether threadID currently has a step in flight,
// without blocking.
func (e *Engine) IsRunning(threadID string) bool {
	l := e.lockFor(threadID)
	if l.TryLock() {
		l.Unlock()
		return false
	}
	return true
}

// Cancel requests cooperative cancellation of threadID. The in-flight
// step (if any) always runs to completion; cancellation is observed at
// the next step boundary, where the thread persists a final phase of
// "cancelled" and stops.
func (e *Engine) Cancel(threadID string) {
	e.cancelMu.Lock()
	e.cancelled[threadID] = true
	e.cancelMu.Unlock()
}

func (e *Engine) isCancelled(threadID string) bool {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	return e.cancelled[threadID]
}

func (e *Engine) clearCancelled(threadID string) {
	e.cancelMu.Lock()
	delete(e.cancelled, threadID)
	e.cancelMu.Unlock()
}

// Subscribe registers a live listener for threadID's UI events, for the
// Driver API's Stream surface. The returned function unsubscribes and
// must be called when the listener is done.
func (e *Engine) Subscribe(threadID string) (<-chan state.UIEvent, func()) {
	ch := make(chan state.UIEvent, eventBufferSize)

	e.subMu.Lock()
	e.subs[threadID] = append(e.subs[threadID], ch)
	e.subMu.Unlock()

	unsubscribe := func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		list := e.subs[threadID]
		for i, c := range list {
			if c == ch {
				e.subs[threadID] = append(list[:i], list[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// publish fans newEvents out to every live subscriber for threadID,
// dropping to a slow/gone listener rather than blocking the thread —
// UI events are observability, never a synchronization primitive.
func (e *Engine) publish(threadID string, newEvents []state.UIEvent) {
	if len(newEvents) == 0 {
		return
	}
	e.subMu.Lock()
	listeners := append([]chan state.UIEvent(nil), e.subs[threadID]...)
	e.subMu.Unlock()

	for _, ev := range newEvents {
		for _, ch := range listeners {
			select {
			case ch <- ev:
			default:
				slog.Debug("graphrt: dropped ui_event for slow subscriber", "thread_id", threadID, "event_type", ev.Type)
			}
		}
	}
}

// Start begins a new thread at the Detector node, or is a no-op
// (returning the existing id) if threadID already has a checkpoint —
// Start is not a re-entry point, Resume is.
func (e *Engine) Start(ctx context.Context, initial state.ExecutionState, threadID string) (string, error) {
	return e.StartAt(ctx, initial, threadID, "detector")
}

// StartAt begins a new thread at an arbitrary node. The default Driver
// surface always starts at "detector"; tests exercising an individual
// step (e.g. feeding anomalies straight into the Jurist) use this
// directly.
func (e *Engine) StartAt(ctx context.Context, initial state.ExecutionState, threadID, startNode string) (string, error) {
	if threadID == "" {
		threadID = uuid.NewString()
	}
	if _, ok := e.nodes[startNode]; !ok {
		return "", fmt.Errorf("graphrt: unknown start node %q", startNode)
	}

	unlock, err := e.acquire(threadID)
	if err != nil {
		return "", err
	}
	defer unlock()

	if _, err := e.store.Latest(ctx, threadID); err == nil {
		return threadID, nil
	} else if !errors.Is(err, ErrNoCheckpoint) {
		return "", err
	}

	seed := Checkpoint{
		ThreadID:       threadID,
		StepIndex:      0,
		State:          initial.Clone(),
		NextCandidates: []string{startNode},
	}
	if err := e.store.Save(ctx, seed); err != nil {
		return "", fmt.Errorf("graphrt: seed checkpoint: %w", err)
	}

	if err := e.runLoop(ctx, threadID, nil); err != nil {
		return threadID, err
	}
	return threadID, nil
}

// Resume delivers a human decision to a thread paused at the Governor
// breakpoint and continues dispatch until the next interrupt or a
// terminal node.
func (e *Engine) Resume(ctx context.Context, threadID string, response steps.HumanResponse) error {
	unlock, err := e.acquire(threadID)
	if err != nil {
		return err
	}
	defer unlock()

	cp, err := e.store.Latest(ctx, threadID)
	if err != nil {
		if errors.Is(err, ErrNoCheckpoint) {
			return ErrThreadNotFound
		}
		return err
	}
	if len(cp.NextCandidates) == 0 || cp.NextCandidates[0] != "governor" || cp.PendingInterrupt == nil {
		return ErrNotInterrupted
	}

	return e.runLoop(ctx, threadID, &response)
}

// runLoop dispatches steps for threadID until it hits the Governor's
// interrupt, a terminal node, the recursion cap, a cancellation signal,
// or a step error. Callers must already hold the thread's exclusive lock.
func (e *Engine) runLoop(ctx context.Context, threadID string, resume *steps.HumanResponse) error {
	for {
		if err := ctx.Err(); err != nil {
			return e.terminate(ctx, threadID, ErrorKindRuntimeCancelled, "context cancelled", "", err)
		}
		if e.isCancelled(threadID) {
			e.clearCancelled(threadID)
			return e.terminate(ctx, threadID, ErrorKindRuntimeCancelled, "cancellation requested", "", nil)
		}

		cp, err := e.store.Latest(ctx, threadID)
		if err != nil {
			return fmt.Errorf("graphrt: load checkpoint: %w", err)
		}
		if len(cp.NextCandidates) == 0 || cp.NextCandidates[0] == router.End {
			return nil
		}

		nodeName := cp.NextCandidates[0]
		n, ok := e.nodes[nodeName]
		if !ok {
			return fmt.Errorf("graphrt: unknown node %q", nodeName)
		}

		// A pending interrupt with no resume response means the thread is
		// waiting; nothing to dispatch.
		if nodeName == "governor" && cp.PendingInterrupt != nil && resume == nil {
			return nil
		}

		thisResume := resume
		resume = nil // a resume response is consumed by exactly one dispatch

		dispatchIndex := cp.StepIndex + 1
		if dispatchIndex > e.recursionCap {
			return e.terminate(ctx, threadID, ErrorKindRecursionExceeded,
				fmt.Sprintf("recursion cap of %d dispatches exceeded", e.recursionCap), nodeName, nil)
		}

		stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		result, runErr := n.run(stepCtx, e.deps, threadID, cp.State, thisResume)
		cancel()
		e.dispatchCount.Add(1)

		if runErr != nil {
			return e.terminate(ctx, threadID, ErrorKindStepException, runErr.Error(), nodeName, runErr)
		}

		newState := state.Merge(cp.State, result.Delta)
		e.publish(threadID, result.Delta.UIEvents)

		if result.Interrupted {
			next := Checkpoint{
				ThreadID:         threadID,
				StepIndex:        dispatchIndex,
				State:            newState,
				NextCandidates:   []string{nodeName},
				PendingInterrupt: result.Pending,
			}
			return e.store.Save(ctx, next)
		}

		nextNode := n.route(newState)
		next := Checkpoint{
			ThreadID:       threadID,
			StepIndex:      dispatchIndex,
			State:          newState,
			NextCandidates: []string{nextNode},
		}
		if err := e.store.Save(ctx, next); err != nil {
			return fmt.Errorf("graphrt: save checkpoint: %w", err)
		}
		if nextNode == router.End {
			return nil
		}
	}
}

// terminate persists a terminal checkpoint for kind/message and returns
// the corresponding StepError. cause may be nil (cancellation and
// recursion-cap exhaustion are not themselves Go errors from a step).
func (e *Engine) terminate(ctx context.Context, threadID string, kind ErrorKind, message, step string, cause error) error {
	phase := map[ErrorKind]string{
		ErrorKindRuntimeCancelled:  "cancelled",
		ErrorKindRecursionExceeded: "recursion_exceeded",
		ErrorKindStepException:     "error",
	}[kind]

	now := time.Now().UTC().Format(time.RFC3339)
	errDelta := state.Delta{
		CurrentPhase: phase,
		ErrorLog:     []string{fmt.Sprintf("%s: %s", kind, message)},
		UIEvents: []state.UIEvent{{
			Type:      "neural_feed",
			Agent:     "SYSTEM",
			Message:   message,
			Severity:  "high",
			Timestamp: now,
		}},
	}

	cp, loadErr := e.store.Latest(ctx, threadID)
	if loadErr != nil {
		return fmt.Errorf("graphrt: load checkpoint for termination: %w", loadErr)
	}
	newState := state.Merge(cp.State, errDelta)
	e.publish(threadID, errDelta.UIEvents)

	next := Checkpoint{
		ThreadID:       threadID,
		StepIndex:      cp.StepIndex + 1,
		State:          newState,
		NextCandidates: []string{router.End},
	}
	if saveErr := e.store.Save(ctx, next); saveErr != nil {
		return fmt.Errorf("graphrt: save termination checkpoint: %w", saveErr)
	}

	return &StepError{Kind: kind, ThreadID: threadID, Step: step, Cause: cause}
}

// LatestCheckpoint exposes the raw checkpoint for status/trace queries
// in pkg/driver.
func (e *Engine) LatestCheckpoint(ctx context.Context, threadID string) (Checkpoint, error) {
	return e.store.Latest(ctx, threadID)
}

// History exposes the full checkpoint history for threadID.
func (e *Engine) History(ctx context.Context, threadID string) ([]Checkpoint, error) {
	return e.store.History(ctx, threadID)
}

// DispatchCount returns the process-wide count of step dispatches
// since this Engine was created — an observability counter, not a
// per-thread limit (that's RecursionCap).
func (e *Engine) DispatchCount() int64 {
	return e.dispatchCount.Load()
}
