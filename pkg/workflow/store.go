package workflow

import (
	"sync"
	"time"
)

// Snapshot is the final record of one workflow run.
type Snapshot struct {
	WorkflowID string
	// Nodes holds every node in registration order, with terminal status,
	// result and timestamps.
	Nodes      []TaskNode
	Err        error // structural error returned by Execute, if any
	FinishedAt time.Time
}

// Statuses returns node id -> status.
func (s *Snapshot) Statuses() map[string]Status {
	out := make(map[string]Status, len(s.Nodes))
	for _, n := range s.Nodes {
		out[n.ID] = n.Status
	}
	return out
}

// Results returns node id -> result for nodes that have one.
func (s *Snapshot) Results() map[string]Result {
	out := make(map[string]Result, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.Result != nil {
			out[n.ID] = *n.Result
		}
	}
	return out
}

// Counts returns how many nodes ended in each status.
func (s *Snapshot) Counts() map[Status]int {
	out := make(map[Status]int)
	for _, n := range s.Nodes {
		out[n.Status]++
	}
	return out
}

// Store records the terminal snapshot of each workflow, keyed by workflow id.
// An entry is written once when the workflow reaches its terminal state and is
// never modified afterwards. Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Snapshot
}

// NewStore creates an empty result store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*Snapshot)}
}

// put stores a snapshot; a second write for the same id is rejected.
func (s *Store) put(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[snap.WorkflowID]; exists {
		return ErrAlreadyExecuted
	}
	s.entries[snap.WorkflowID] = snap
	return nil
}

func (s *Store) delete(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, workflowID)
}

// Has reports whether a final snapshot exists for the workflow.
func (s *Store) Has(workflowID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[workflowID]
	return ok
}

// Snapshot returns a copy of the final snapshot of a workflow.
func (s *Store) Snapshot(workflowID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.entries[workflowID]
	if !ok {
		return nil, &NotFoundError{WorkflowID: workflowID}
	}

	cp := *snap
	cp.Nodes = make([]TaskNode, len(snap.Nodes))
	for i := range snap.Nodes {
		cp.Nodes[i] = snap.Nodes[i].clone()
	}
	return &cp, nil
}

// Status returns the final node id -> status mapping of a workflow.
func (s *Store) Status(workflowID string) (map[string]Status, error) {
	snap, err := s.Snapshot(workflowID)
	if err != nil {
		return nil, err
	}
	return snap.Statuses(), nil
}

// Results returns the final node id -> result mapping of a workflow.
func (s *Store) Results(workflowID string) (map[string]Result, error) {
	snap, err := s.Snapshot(workflowID)
	if err != nil {
		return nil, err
	}
	return snap.Results(), nil
}
