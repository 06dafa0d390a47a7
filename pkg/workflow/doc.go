// Package workflow implements the dependency-aware execution engine that runs
// a set of named, interdependent actions as a concurrently executed DAG.
//
// # Architecture
//
// The package is built around four concepts:
//
//  1. TaskNode: an opaque Payload, the ids it depends on, and its runtime status
//  2. Graph: a validated, immutable topology whose nodes carry mutable status
//  3. Executor: the caller-supplied capability that runs one payload
//  4. Store: the per-workflow record of final outcomes, written once
//
// Engine ties them together. It owns the registered graphs and a Store; there
// is no process-wide registry.
//
// # Node Lifecycle
//
//	pending ──▶ ready ──▶ running ──▶ completed
//	   │          │          └──────▶ failed
//	   └──────────┴──────────────────▶ skipped
//
// A node becomes ready once every dependency is completed. If any dependency
// ends failed or skipped, the node is skipped instead, and the skip propagates
// transitively. Independent branches keep running.
//
// # Scheduling
//
// Each Execute call runs a single coordinator goroutine that owns every status
// transition. Ready nodes are dispatched in registration order to their own
// goroutine while fewer than the concurrency limit are running; outcomes come
// back over a channel and are recorded by the coordinator. Cancellation skips
// everything not yet dispatched, cancels the context handed to running
// executors, and abandons them after a grace period.
//
// # Example Usage
//
//	eng := workflow.NewEngine()
//	err := eng.CreateWorkflow("search", []workflow.NodeSpec{
//	    {ID: "open", Payload: action.Navigate{URL: "https://example.com"}},
//	    {ID: "query", Payload: action.Type{Selector: "#q", Text: "go"}, Dependencies: []string{"open"}},
//	})
//	err = eng.Execute(ctx, "search", executor, 2)
//	results, err := eng.Results("search")
package workflow
