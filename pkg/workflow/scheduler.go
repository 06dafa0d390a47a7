package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/bitagent/pkg/types"
)

// completion carries one executor outcome back to the coordinator.
type completion struct {
	nodeID string
	value  interface{}
	err    error
}

// scheduler drives one Execute call. Only the coordinator goroutine (run)
// writes node status; mu is shared with Engine queries so snapshots are
// consistent.
type scheduler struct {
	graph *Graph
	mu    *sync.Mutex
	exec  Executor
	limit int
	grace time.Duration
	now   func() time.Time
	emit  func(types.WorkflowEvent)

	running map[string]struct{}
	events  []types.WorkflowEvent // buffered under mu, flushed after unlock
}

// run executes the graph until every node is terminal. It returns nil when the
// workflow finished, a *DependencyDeadlockError when no progress is possible,
// or the cancellation cause when ctx was cancelled.
func (s *scheduler) run(ctx context.Context) error {
	s.running = make(map[string]struct{}, s.limit)

	// Sized so that late sends from abandoned executors never block.
	completions := make(chan completion, s.graph.Len())

	var (
		ctxDone   = ctx.Done()
		cancelled bool
		grace     <-chan time.Time
		timer     *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	s.emit(types.NewWorkflowEvent(types.EventTypeWorkflowStarted, s.graph.id, s.now()))

	for {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			ctxDone = nil
			if s.cancel(context.Cause(ctx)) {
				timer = time.NewTimer(s.grace)
				grace = timer.C
			}
		}

		s.mu.Lock()
		if !cancelled {
			s.advance()
			s.dispatch(ctx, completions)
		}

		if len(s.running) == 0 {
			stuck := s.unfinished()
			if len(stuck) == 0 {
				s.mu.Unlock()
				s.flush()
				break
			}

			// Nothing running and nothing ready, yet nodes remain.
			for _, id := range stuck {
				s.skip(s.graph.nodes[s.graph.index[id]], "", ErrDeadlock)
			}
			s.mu.Unlock()
			s.flush()

			err := &DependencyDeadlockError{WorkflowID: s.graph.id, Stuck: stuck}
			debugLog.Errorf("%v", err)
			ev := types.NewWorkflowEvent(types.EventTypeWorkflowDeadlock, s.graph.id, s.now())
			ev.Error = err
			s.emit(ev)
			return err
		}
		s.mu.Unlock()
		s.flush()

		select {
		case c := <-completions:
			s.mu.Lock()
			s.record(c)
			s.mu.Unlock()
			s.flush()

		case <-ctxDone:
			// handled at the top of the loop

		case <-grace:
			grace = nil
			s.mu.Lock()
			s.abandonRunning()
			s.mu.Unlock()
			s.flush()
		}
	}

	if cancelled {
		cause := context.Cause(ctx)
		ev := types.NewWorkflowEvent(types.EventTypeWorkflowCancelled, s.graph.id, s.now())
		ev.Error = cause
		s.emit(ev)
		return cause
	}

	s.emit(types.NewWorkflowEvent(types.EventTypeWorkflowFinished, s.graph.id, s.now()))
	return nil
}

// advance applies skip-propagation and promotes satisfied pending nodes to
// ready. Walking in topological order makes a single pass transitive.
func (s *scheduler) advance() {
	for _, i := range s.graph.order {
		n := s.graph.nodes[i]
		if n.Status != StatusPending {
			continue
		}

		satisfied := true
		blockedBy := ""
		for _, d := range s.graph.deps[i] {
			dep := s.graph.nodes[d]
			if dep.Status.blocksDependents() {
				blockedBy = dep.ID
				break
			}
			if dep.Status != StatusCompleted {
				satisfied = false
			}
		}

		switch {
		case blockedBy != "":
			s.skip(n, blockedBy, nil)
		case satisfied:
			n.Status = StatusReady
			s.event(types.EventTypeNodeReady, n, nil, nil)
		}
	}
}

// dispatch starts ready nodes in registration order while slots are free.
func (s *scheduler) dispatch(ctx context.Context, out chan<- completion) {
	for _, n := range s.graph.nodes {
		if len(s.running) >= s.limit {
			return
		}
		if n.Status != StatusReady {
			continue
		}

		n.Status = StatusRunning
		n.StartedAt = s.now()
		s.running[n.ID] = struct{}{}
		s.event(types.EventTypeNodeStarted, n, nil, nil)
		debugLog.Debugf("workflow %q: dispatching %q (%s), %d running", s.graph.id, n.ID, n.Payload.Describe(), len(s.running))

		go invoke(ctx, s.exec, n.ID, n.Payload, out)
	}
}

// invoke runs one payload and always reports back, even if the executor panics.
func invoke(ctx context.Context, exec Executor, nodeID string, payload Payload, out chan<- completion) {
	c := completion{nodeID: nodeID}
	defer func() {
		if r := recover(); r != nil {
			c.value = nil
			c.err = fmt.Errorf("executor panic: %v", r)
		}
		out <- c
	}()
	c.value, c.err = exec.Execute(ctx, payload)
}

// record applies an executor outcome. Outcomes for nodes that are no longer
// running (abandoned after cancellation) are discarded.
func (s *scheduler) record(c completion) {
	if _, ok := s.running[c.nodeID]; !ok {
		debugLog.Warnf("workflow %q: discarding late result for abandoned node %q", s.graph.id, c.nodeID)
		return
	}
	delete(s.running, c.nodeID)

	n := s.graph.nodes[s.graph.index[c.nodeID]]
	n.FinishedAt = s.now()

	if c.err != nil {
		err := &ExecutionError{WorkflowID: s.graph.id, NodeID: n.ID, Err: c.err}
		n.Status = StatusFailed
		n.Result = &Result{Err: err}
		debugLog.Warnf("workflow %q: node %q failed: %v", s.graph.id, n.ID, c.err)
		s.event(types.EventTypeNodeFailed, n, nil, err)
		return
	}

	n.Status = StatusCompleted
	n.Result = &Result{Value: c.value}
	s.event(types.EventTypeNodeCompleted, n, c.value, nil)
}

func (s *scheduler) skip(n *TaskNode, upstream string, cause error) {
	err := &SkippedError{NodeID: n.ID, Upstream: upstream, Err: cause}
	n.Status = StatusSkipped
	n.Result = &Result{Err: err}
	n.FinishedAt = s.now()
	s.event(types.EventTypeNodeSkipped, n, nil, err)
}

// cancel skips everything not yet dispatched and, without a grace period,
// abandons in-flight nodes at once. It reports whether a grace timer is needed.
func (s *scheduler) cancel(cause error) bool {
	debugLog.Warnf("workflow %q cancelled with %d node(s) in flight: %v", s.graph.id, len(s.running), cause)

	s.mu.Lock()
	s.skipUndispatched(cause)
	if s.grace <= 0 {
		s.abandonRunning()
	}
	s.mu.Unlock()
	s.flush()

	return len(s.running) > 0
}

func (s *scheduler) skipUndispatched(cause error) {
	for _, n := range s.graph.nodes {
		if n.Status == StatusPending || n.Status == StatusReady {
			s.skip(n, "", cause)
		}
	}
}

// abandonRunning gives up on in-flight executors; they are recorded as failed.
func (s *scheduler) abandonRunning() {
	for _, n := range s.graph.nodes {
		if _, ok := s.running[n.ID]; !ok {
			continue
		}
		delete(s.running, n.ID)

		err := &ExecutionError{WorkflowID: s.graph.id, NodeID: n.ID, Err: ErrAbandoned}
		n.Status = StatusFailed
		n.Result = &Result{Err: err}
		n.FinishedAt = s.now()
		s.event(types.EventTypeNodeFailed, n, nil, err)
	}
}

// unfinished lists the ids of nodes that are not terminal, in registration order.
func (s *scheduler) unfinished() []string {
	var ids []string
	for _, n := range s.graph.nodes {
		if !n.Status.IsTerminal() {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func (s *scheduler) event(t types.WorkflowEventType, n *TaskNode, result interface{}, err error) {
	ev := types.NewNodeEvent(t, s.graph.id, n.ID, n.Payload.Describe(), s.now())
	ev.Result = result
	ev.Error = err
	s.events = append(s.events, ev)
}

func (s *scheduler) flush() {
	events := s.events
	s.events = nil
	for _, ev := range events {
		s.emit(ev)
	}
}
