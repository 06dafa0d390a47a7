package types

import "time"

// WorkflowEventType defines the type of event emitted by the workflow engine.
type WorkflowEventType string

const (
	EventTypeWorkflowStarted   WorkflowEventType = "workflow_started"   // EventTypeWorkflowStarted indicates the scheduler began executing a workflow.
	EventTypeWorkflowFinished  WorkflowEventType = "workflow_finished"  // EventTypeWorkflowFinished indicates every node reached a terminal state.
	EventTypeWorkflowCancelled WorkflowEventType = "workflow_cancelled" // EventTypeWorkflowCancelled indicates execution was cancelled before completion.
	EventTypeWorkflowDeadlock  WorkflowEventType = "workflow_deadlock"  // EventTypeWorkflowDeadlock indicates no further progress was possible.
	EventTypeNodeReady         WorkflowEventType = "node_ready"         // EventTypeNodeReady indicates a node's dependencies are satisfied.
	EventTypeNodeStarted       WorkflowEventType = "node_started"       // EventTypeNodeStarted indicates a node was dispatched to the executor.
	EventTypeNodeCompleted     WorkflowEventType = "node_completed"     // EventTypeNodeCompleted indicates a node's action succeeded.
	EventTypeNodeFailed        WorkflowEventType = "node_failed"        // EventTypeNodeFailed indicates a node's action returned an error.
	EventTypeNodeSkipped       WorkflowEventType = "node_skipped"       // EventTypeNodeSkipped indicates a node will never run.
)

// WorkflowEvent represents an event emitted by the workflow engine during execution.
type WorkflowEvent struct {
	// Type indicates the kind of event.
	Type WorkflowEventType

	// WorkflowID identifies the workflow the event belongs to.
	WorkflowID string

	// NodeID is the node the event refers to (empty for workflow-level events).
	NodeID string

	// Description is the human-readable description of the node's action.
	Description string

	// Result holds the executor's return value (for node_completed events).
	Result interface{}

	// Error contains failure or skip information.
	Error error

	// Timestamp records when the event occurred.
	Timestamp time.Time

	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{}
}

// IsNodeEvent reports whether the event refers to a single node.
func (e WorkflowEvent) IsNodeEvent() bool {
	return e.NodeID != ""
}

// IsTerminal reports whether the event marks the end of a workflow run.
func (e WorkflowEvent) IsTerminal() bool {
	switch e.Type {
	case EventTypeWorkflowFinished, EventTypeWorkflowCancelled, EventTypeWorkflowDeadlock:
		return true
	default:
		return false
	}
}

// NewWorkflowEvent creates a workflow-level event.
func NewWorkflowEvent(eventType WorkflowEventType, workflowID string, at time.Time) WorkflowEvent {
	return WorkflowEvent{
		Type:       eventType,
		WorkflowID: workflowID,
		Timestamp:  at,
		Metadata:   make(map[string]interface{}),
	}
}

// NewNodeEvent creates a node-level event.
func NewNodeEvent(eventType WorkflowEventType, workflowID, nodeID, description string, at time.Time) WorkflowEvent {
	return WorkflowEvent{
		Type:        eventType,
		WorkflowID:  workflowID,
		NodeID:      nodeID,
		Description: description,
		Timestamp:   at,
		Metadata:    make(map[string]interface{}),
	}
}
