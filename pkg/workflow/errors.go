package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("invalid workflow")
	ErrExecution       = errors.New("action failed")
	ErrDeadlock        = errors.New("dependency deadlock")
	ErrNotFound        = errors.New("workflow not found")
	ErrSkipped         = errors.New("node skipped")
	ErrCancelled       = errors.New("workflow cancelled")
	ErrAbandoned       = errors.New("action abandoned after cancellation grace period")
	ErrAlreadyRunning  = errors.New("workflow is already running")
	ErrAlreadyExecuted = errors.New("workflow has already been executed")
)

// ValidationError reports a malformed workflow. It is returned by
// CreateWorkflow (dangling dependency, duplicate id, cycle) and by Execute
// for unusable arguments. A workflow that fails validation is never registered.
type ValidationError struct {
	WorkflowID string
	NodeID     string
	// Cycle lists the node ids of one dependency cycle, first id repeated at the end.
	Cycle []string
	Msg   string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrValidation.Error())
	if e.WorkflowID != "" {
		fmt.Fprintf(&b, " %q", e.WorkflowID)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if len(e.Cycle) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Cycle, " -> "))
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalidf(workflowID, nodeID, format string, args ...any) *ValidationError {
	return &ValidationError{WorkflowID: workflowID, NodeID: nodeID, Msg: fmt.Sprintf(format, args...)}
}

// ExecutionError wraps whatever the Executor reported for one node.
// It is recorded on that node's Result and never aborts sibling branches.
type ExecutionError struct {
	WorkflowID string
	NodeID     string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %q: %s: %v", e.NodeID, ErrExecution, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// SkippedError explains why a node never ran: an upstream dependency failed
// or was skipped, or the workflow was cancelled (Err is then the cause).
type SkippedError struct {
	NodeID   string
	Upstream string
	Err      error
}

func (e *SkippedError) Error() string {
	if e.Upstream != "" {
		return fmt.Sprintf("node %q skipped: dependency %q did not complete", e.NodeID, e.Upstream)
	}
	if e.Err != nil {
		return fmt.Sprintf("node %q skipped: %v", e.NodeID, e.Err)
	}
	return fmt.Sprintf("node %q skipped", e.NodeID)
}

func (e *SkippedError) Unwrap() error { return e.Err }

func (e *SkippedError) Is(target error) bool { return target == ErrSkipped }

// DependencyDeadlockError is returned by Execute when nodes remain pending but
// nothing is ready or running. Validation should make this unreachable.
type DependencyDeadlockError struct {
	WorkflowID string
	Stuck      []string
}

func (e *DependencyDeadlockError) Error() string {
	return fmt.Sprintf("%s in workflow %q: stuck nodes [%s]", ErrDeadlock, e.WorkflowID, strings.Join(e.Stuck, ", "))
}

func (e *DependencyDeadlockError) Is(target error) bool { return target == ErrDeadlock }

// NotFoundError reports a query or execution against an unregistered workflow id.
type NotFoundError struct {
	WorkflowID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNotFound, e.WorkflowID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
