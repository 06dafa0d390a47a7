package headless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/bitagent/pkg/config"
	"github.com/entrhq/bitagent/pkg/logging"
	"github.com/entrhq/bitagent/pkg/types"
	"github.com/entrhq/bitagent/pkg/workflow"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("headless")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize headless logger, using stderr fallback: %v", err)
	}
}

// ErrTimeout is the cancellation cause when a run exceeds its configured timeout.
var ErrTimeout = errors.New("workflow timeout exceeded")

// Runner executes one configured workflow headlessly
type Runner struct {
	config    *config.Config
	executor  workflow.Executor
	engine    *workflow.Engine
	logger    *Logger
	artifacts *ArtifactWriter
	now       func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger replaces the console logger derived from the configured verbosity.
func WithLogger(l *Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used for the summary and the engine.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner validates cfg and prepares a runner for it. The workflow is not
// registered until Run.
func NewRunner(cfg *config.Config, exec workflow.Executor, opts ...RunnerOption) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	r := &Runner{
		config:   cfg,
		executor: exec,
		logger:   NewLogger(ParseLogLevel(cfg.Logging.Verbosity)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if cfg.Artifacts.Enabled {
		r.artifacts = NewArtifactWriter(cfg.Artifacts.OutputDir, cfg.Artifacts)
	}

	r.engine = workflow.NewEngine(
		workflow.WithGracePeriod(cfg.Workflow.GracePeriod),
		workflow.WithEventHandler(r.handleEvent),
		workflow.WithClock(r.now),
	)
	return r, nil
}

// Engine exposes the engine driving the run, for status queries and Cancel.
func (r *Runner) Engine() *workflow.Engine {
	return r.engine
}

// WorkflowID returns the id the workflow is registered under.
func (r *Runner) WorkflowID() string {
	return r.config.Workflow.ID
}

// Run registers and executes the workflow, prints the summary and writes the
// configured artifacts. Node failures are reported in the summary only; the
// returned error is set when the run itself could not complete normally
// (registration failure, deadlock, timeout or cancellation). The summary is
// returned whenever the workflow was registered.
func (r *Runner) Run(ctx context.Context) (*ExecutionSummary, error) {
	wf := r.config.Workflow
	summary := &ExecutionSummary{
		RunID:       uuid.New().String(),
		WorkflowID:  wf.ID,
		Description: wf.Description,
		Status:      "running",
		StartTime:   r.now(),
		Concurrency: wf.Concurrency,
	}

	r.logger.Header(fmt.Sprintf("Bitagent: %s", wf.ID))
	r.logger.Infof("%d node(s), concurrency %d", len(wf.Nodes), wf.Concurrency)
	debugLog.Infof("run %s: workflow %q, %d node(s)", summary.RunID, wf.ID, len(wf.Nodes))

	specs, err := r.config.NodeSpecs()
	if err != nil {
		return nil, r.fail(summary, fmt.Errorf("failed to build workflow: %w", err))
	}
	if err := r.engine.CreateWorkflow(wf.ID, specs); err != nil {
		return nil, r.fail(summary, fmt.Errorf("failed to create workflow: %w", err))
	}

	if wf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, wf.Timeout, ErrTimeout)
		defer cancel()
	}

	runErr := r.engine.Execute(ctx, wf.ID, r.executor, wf.Concurrency)
	if errors.Is(runErr, ErrTimeout) {
		runErr = fmt.Errorf("%w after %s", ErrTimeout, wf.Timeout)
	}

	snap, err := r.engine.Store().Snapshot(wf.ID)
	if err != nil {
		// Execute rejected the run before it started.
		if runErr == nil {
			runErr = err
		}
		return nil, r.fail(summary, runErr)
	}

	if runErr != nil {
		summary.Error = runErr.Error()
	}
	summary.applySnapshot(snap)
	r.finalize(summary)

	return summary, runErr
}

// finalize stamps the end time, prints the summary and writes artifacts.
func (r *Runner) finalize(summary *ExecutionSummary) {
	summary.EndTime = r.now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)

	r.logger.Summary(summary)
	debugLog.Infof("run %s finished: %s (duration: %s)", summary.RunID, summary.Status, summary.Duration)

	if r.artifacts == nil {
		return
	}
	if err := r.artifacts.WriteAll(summary); err != nil {
		r.logger.Warningf("failed to write artifacts: %v", err)
		debugLog.Warnf("failed to write artifacts: %v", err)
		return
	}
	r.logger.Infof("Artifacts written to %s", r.artifacts.OutputDir())
}

// fail reports a run that never produced a snapshot.
func (r *Runner) fail(summary *ExecutionSummary, err error) error {
	summary.Status = statusFailed
	summary.Error = err.Error()
	r.logger.Errorf("%v", err)
	debugLog.Errorf("run %s failed: %v", summary.RunID, err)
	return err
}

func (r *Runner) handleEvent(ev types.WorkflowEvent) {
	r.logger.Event(ev)

	switch ev.Type {
	case types.EventTypeNodeFailed:
		debugLog.Warnf("node %q failed: %v", ev.NodeID, ev.Error)
	case types.EventTypeNodeSkipped:
		debugLog.Debugf("node %q skipped: %v", ev.NodeID, ev.Error)
	default:
		debugLog.Debugf("event %s workflow=%s node=%s", ev.Type, ev.WorkflowID, ev.NodeID)
	}
}
