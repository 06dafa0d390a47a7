// Package headless runs a configured workflow of browser actions to completion
// without user interaction, for scripts, cron jobs and CI pipelines.
//
// A Runner takes a validated run file (see package config) and an executor for
// the node payloads, registers the workflow with a workflow.Engine, and executes
// it with the configured concurrency, grace period and timeout. Progress is
// printed by a leveled console Logger while the run is in flight.
//
//	┌─────────────────────────────────────────────────────────┐
//	│                 Headless Runner                         │
//	│  - Console progress (quiet/normal/verbose/debug)        │
//	│  - Timeout and signal cancellation                      │
//	│  - Artifact generation                                  │
//	└──────────────────┬──────────────────────────────────────┘
//	                   │
//	                   ▼
//	        ┌──────────────────────┐
//	        │   workflow.Engine    │
//	        │  + browser executor  │
//	        └──────────────────────┘
//
// Example usage:
//
//	cfg, _ := config.Load("search.yaml")
//	runner, _ := headless.NewRunner(cfg, browser.NewActionExecutor(manager))
//
//	summary, err := runner.Run(ctx)
//	if err != nil || summary.HasFailures() {
//	    os.Exit(1)
//	}
//
// Artifacts:
//
// When enabled, the artifact writer generates execution reports in the
// configured output directory:
//   - execution.json: full execution summary, one entry per node
//   - summary.md: human-readable markdown summary
package headless
