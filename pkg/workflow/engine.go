package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/entrhq/bitagent/pkg/logging"
	"github.com/entrhq/bitagent/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("workflow")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize workflow logger, using stderr fallback: %v", err)
	}
}

// DefaultGracePeriod is how long in-flight actions may keep running after a
// workflow is cancelled before they are abandoned.
const DefaultGracePeriod = 5 * time.Second

type runState int

const (
	runRegistered runState = iota
	runRunning
	runFinished
)

// run holds one registered workflow. mu guards the graph's mutable node state
// and is shared with the scheduler while the workflow executes.
type run struct {
	mu      sync.Mutex
	graph   *Graph
	state   runState
	cancel  context.CancelCauseFunc
	removed bool
}

// Engine registers, executes and reports on workflows. The zero value is not
// usable; create one with NewEngine. An Engine is safe for concurrent use and
// distinct workflows never share mutable state.
type Engine struct {
	mu    sync.RWMutex
	runs  map[string]*run
	store *Store

	grace   time.Duration
	handler func(types.WorkflowEvent)
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithGracePeriod sets how long running actions may finish after cancellation.
// Zero abandons them immediately.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.grace = d
		}
	}
}

// WithEventHandler registers a callback for workflow and node lifecycle events.
// The handler is called from the coordinator goroutine, never under a lock,
// and must not block for long.
func WithEventHandler(h func(types.WorkflowEvent)) Option {
	return func(e *Engine) {
		e.handler = h
	}
}

// WithClock replaces time.Now for node timestamps and events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStore makes the engine write final snapshots to s instead of a private store.
func WithStore(s *Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

// NewEngine creates an engine with no registered workflows.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		runs:  make(map[string]*run),
		store: NewStore(),
		grace: DefaultGracePeriod,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the result store final snapshots are written to.
func (e *Engine) Store() *Store {
	return e.store
}

// CreateWorkflow validates nodes and registers them under id. Nothing is
// registered when validation fails.
func (e *Engine) CreateWorkflow(id string, nodes []NodeSpec) error {
	g, err := NewGraph(id, nodes)
	if err != nil {
		debugLog.Warnf("rejected workflow %q: %v", id, err)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.runs[id]; exists {
		return invalidf(id, "", "workflow %q is already registered", id)
	}
	e.runs[id] = &run{graph: g, state: runRegistered}

	debugLog.Infof("registered workflow %q with %d node(s), order %v", id, g.Len(), g.TopologicalOrder())
	return nil
}

func (e *Engine) lookup(id string) (*run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.runs[id]
	if !ok {
		return nil, &NotFoundError{WorkflowID: id}
	}
	return r, nil
}

// Execute runs a registered workflow to completion, calling exec for each node
// with at most concurrencyLimit nodes running at once. It blocks until every
// node is terminal.
//
// Individual node failures are recorded in the results and do not make
// Execute fail. Execute returns an error only for structural problems: an
// unknown id, bad arguments, a second execution, a dependency deadlock, or
// cancellation (the context's cause). In the deadlock and cancellation cases the
// final snapshot is still stored before Execute returns.
func (e *Engine) Execute(ctx context.Context, id string, exec Executor, concurrencyLimit int) error {
	r, err := e.lookup(id)
	if err != nil {
		return err
	}
	if exec == nil {
		return invalidf(id, "", "executor is required")
	}
	if concurrencyLimit < 1 {
		return invalidf(id, "", "concurrency limit must be at least 1, got %d", concurrencyLimit)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if err := r.begin(id, cancel); err != nil {
		return err
	}

	debugLog.Infof("executing workflow %q: %d node(s), concurrency %d", id, r.graph.Len(), concurrencyLimit)

	s := &scheduler{
		graph: r.graph,
		mu:    &r.mu,
		exec:  exec,
		limit: concurrencyLimit,
		grace: e.grace,
		now:   e.now,
		emit:  e.emit,
	}
	runErr := s.run(ctx)

	r.mu.Lock()
	snap := e.finishLocked(r, runErr)
	r.mu.Unlock()
	if err := e.store.put(snap); err != nil {
		return err
	}

	if runErr != nil {
		debugLog.Warnf("workflow %q ended: %v", id, runErr)
	} else {
		debugLog.Infof("workflow %q finished", id)
	}
	return runErr
}

// begin moves a registered run to running. It fails if the run was removed,
// is already running or has finished.
func (r *run) begin(id string, cancel context.CancelCauseFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return &NotFoundError{WorkflowID: id}
	}
	switch r.state {
	case runRunning:
		return ErrAlreadyRunning
	case runFinished:
		return ErrAlreadyExecuted
	}
	r.state = runRunning
	r.cancel = cancel
	return nil
}

// finishLocked marks the run terminal and returns its final snapshot. r.mu
// must be held; the caller stores the snapshot after unlocking.
func (e *Engine) finishLocked(r *run, runErr error) *Snapshot {
	r.state = runFinished
	r.cancel = nil
	return &Snapshot{
		WorkflowID: r.graph.id,
		Nodes:      cloneNodes(r.graph.nodes),
		Err:        runErr,
		FinishedAt: e.now(),
	}
}

// Cancel stops a workflow. A running workflow is cancelled with ErrCancelled
// as the cause; a workflow that has not started yet is finalised with every
// node skipped. Cancelling a finished workflow is a no-op.
func (e *Engine) Cancel(id string) error {
	r, err := e.lookup(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.removed {
		r.mu.Unlock()
		return &NotFoundError{WorkflowID: id}
	}
	switch r.state {
	case runRunning:
		cancel := r.cancel
		r.mu.Unlock()
		debugLog.Infof("cancelling workflow %q", id)
		cancel(ErrCancelled)
		return nil

	case runFinished:
		r.mu.Unlock()
		return nil
	}

	now := e.now()
	for _, n := range r.graph.nodes {
		n.Status = StatusSkipped
		n.Result = &Result{Err: &SkippedError{NodeID: n.ID, Err: ErrCancelled}}
		n.FinishedAt = now
	}
	snap := e.finishLocked(r, ErrCancelled)
	r.mu.Unlock()

	debugLog.Infof("cancelled workflow %q before execution", id)
	if err := e.store.put(snap); err != nil {
		return err
	}
	e.emit(types.NewWorkflowEvent(types.EventTypeWorkflowCancelled, id, now))
	return nil
}

// Status returns node id -> status. While the workflow runs this is a
// consistent live snapshot; afterwards it is the stored final state.
func (e *Engine) Status(id string) (map[string]Status, error) {
	if e.store.Has(id) {
		return e.store.Status(id)
	}

	r, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Status, r.graph.Len())
	for _, n := range r.graph.nodes {
		out[n.ID] = n.Status
	}
	return out, nil
}

// Results returns node id -> result for every node that has reached a
// terminal state. Before the workflow finishes this is a partial snapshot.
func (e *Engine) Results(id string) (map[string]Result, error) {
	if e.store.Has(id) {
		return e.store.Results(id)
	}

	r, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Result, r.graph.Len())
	for _, n := range r.graph.nodes {
		if n.Result != nil {
			out[n.ID] = *n.Result
		}
	}
	return out, nil
}

// Nodes returns copies of every node in registration order, including
// timestamps.
func (e *Engine) Nodes(id string) ([]TaskNode, error) {
	r, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneNodes(r.graph.nodes), nil
}

// Workflows returns the registered workflow ids, sorted.
func (e *Engine) Workflows() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove forgets a workflow and its stored results. A running workflow cannot
// be removed.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.runs[id]
	if !ok {
		return &NotFoundError{WorkflowID: id}
	}

	r.mu.Lock()
	if r.state == runRunning {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.removed = true
	r.mu.Unlock()

	delete(e.runs, id)
	e.store.delete(id)
	debugLog.Debugf("removed workflow %q", id)
	return nil
}

func (e *Engine) emit(ev types.WorkflowEvent) {
	if e.handler != nil {
		e.handler(ev)
	}
}

func cloneNodes(nodes []*TaskNode) []TaskNode {
	out := make([]TaskNode, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}
	return out
}
