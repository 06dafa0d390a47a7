package headless

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/entrhq/bitagent/pkg/workflow"
)

const (
	statusSuccess        = "success"
	statusFailed         = "failed"
	statusPartialSuccess = "partial_success"
)

// ExecutionSummary contains a complete summary of one headless run
type ExecutionSummary struct {
	RunID       string         `json:"run_id"`
	WorkflowID  string         `json:"workflow_id"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	Duration    time.Duration  `json:"duration"`
	Concurrency int            `json:"concurrency"`
	Nodes       []NodeSummary  `json:"nodes"`
	Counts      map[string]int `json:"counts"`
}

// NodeSummary is the outcome of a single node
type NodeSummary struct {
	ID           string        `json:"id"`
	Description  string        `json:"description"`
	Dependencies []string      `json:"dependencies,omitempty"`
	Status       string        `json:"status"`
	Result       interface{}   `json:"result,omitempty"`
	Error        string        `json:"error,omitempty"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// HasFailures reports whether the run ended abnormally or any node failed.
func (s *ExecutionSummary) HasFailures() bool {
	return s.Status == statusFailed || s.Counts[string(workflow.StatusFailed)] > 0
}

// Node returns the summary for a node, or nil.
func (s *ExecutionSummary) Node(id string) *NodeSummary {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i]
		}
	}
	return nil
}

// applySnapshot fills the per-node section of the summary from the engine's
// final snapshot and derives the overall status.
func (s *ExecutionSummary) applySnapshot(snap *workflow.Snapshot) {
	s.Nodes = make([]NodeSummary, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		ns := NodeSummary{
			ID:           n.ID,
			Dependencies: n.Dependencies,
			Status:       string(n.Status),
			Duration:     n.Duration(),
		}
		if n.Payload != nil {
			ns.Description = n.Payload.Describe()
		}
		if !n.StartedAt.IsZero() {
			t := n.StartedAt
			ns.StartedAt = &t
		}
		if !n.FinishedAt.IsZero() {
			t := n.FinishedAt
			ns.FinishedAt = &t
		}
		if n.Result != nil {
			if n.Result.Err != nil {
				ns.Error = n.Result.Err.Error()
			} else {
				ns.Result = jsonValue(n.Result.Value)
			}
		}
		s.Nodes = append(s.Nodes, ns)
	}

	s.Counts = make(map[string]int)
	for status, c := range snap.Counts() {
		s.Counts[string(status)] = c
	}

	if snap.Err != nil && s.Error == "" {
		s.Error = snap.Err.Error()
	}
	s.Status = overallStatus(s.Counts, len(s.Nodes), snap.Err)
}

// overallStatus is success when every node completed, failed when the run
// ended abnormally or nothing completed, and partial_success otherwise.
func overallStatus(counts map[string]int, total int, runErr error) string {
	completed := counts[string(workflow.StatusCompleted)]
	switch {
	case runErr != nil:
		return statusFailed
	case completed == total:
		return statusSuccess
	case completed == 0:
		return statusFailed
	default:
		return statusPartialSuccess
	}
}

// jsonValue keeps v when it encodes as JSON and falls back to its %v form.
func jsonValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}
