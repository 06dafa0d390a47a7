package workflow

import (
	"context"
	"time"
)

// Status is the runtime state of a TaskNode.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// IsTerminal reports whether no further transition can occur.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// blocksDependents reports whether a dependency in this state prevents its
// dependents from ever running.
func (s Status) blocksDependents() bool {
	return s == StatusFailed || s == StatusSkipped
}

// Payload is the opaque unit of work carried by a node. The engine only ever
// calls Describe, for logs and events; everything else is up to the Executor.
type Payload interface {
	Describe() string
}

// Executor runs one node's payload. It is supplied by the caller of Execute.
//
// Execute may block for as long as the underlying work takes. The context is
// cancelled when the workflow is cancelled; honouring it is best effort.
type Executor interface {
	Execute(ctx context.Context, payload Payload) (interface{}, error)
}

// ExecutorFunc adapts an ordinary function to the Executor interface.
type ExecutorFunc func(ctx context.Context, payload Payload) (interface{}, error)

// Execute calls f(ctx, payload).
func (f ExecutorFunc) Execute(ctx context.Context, payload Payload) (interface{}, error) {
	return f(ctx, payload)
}

// NodeSpec describes one node at registration time.
type NodeSpec struct {
	ID           string
	Payload      Payload
	Dependencies []string
}

// Result is the terminal outcome of a node: either the executor's value or an
// error (*ExecutionError for failed nodes, *SkippedError for skipped ones).
type Result struct {
	Value interface{}
	Err   error
}

// OK reports whether the node completed successfully.
func (r Result) OK() bool {
	return r.Err == nil
}

// TaskNode is the unit of scheduling. ID, Payload and Dependencies never change
// after registration; the remaining fields are written only by the scheduler.
type TaskNode struct {
	ID           string
	Payload      Payload
	Dependencies []string

	Status     Status
	Result     *Result
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the node ran, or zero if it never started or has
// not finished.
func (n TaskNode) Duration() time.Duration {
	if n.StartedAt.IsZero() || n.FinishedAt.IsZero() {
		return 0
	}
	return n.FinishedAt.Sub(n.StartedAt)
}

func (n *TaskNode) clone() TaskNode {
	cp := *n
	cp.Dependencies = append([]string(nil), n.Dependencies...)
	if n.Result != nil {
		r := *n.Result
		cp.Result = &r
	}
	return cp
}
