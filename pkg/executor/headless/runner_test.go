package headless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/bitagent/pkg/action"
	"github.com/entrhq/bitagent/pkg/config"
	"github.com/entrhq/bitagent/pkg/workflow"
)

func testConfig(t *testing.T, nodes ...config.NodeConfig) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Workflow.ID = "test"
	cfg.Workflow.Concurrency = 2
	cfg.Workflow.GracePeriod = 0
	cfg.Workflow.Nodes = nodes
	cfg.Artifacts.OutputDir = filepath.Join(t.TempDir(), "artifacts")
	return cfg
}

func nav(id, url string, deps ...string) config.NodeConfig {
	return config.NodeConfig{ID: id, DependsOn: deps, Action: action.Spec{Kind: action.KindNavigate, URL: url}}
}

func click(id, selector string, deps ...string) config.NodeConfig {
	return config.NodeConfig{ID: id, DependsOn: deps, Action: action.Spec{Kind: action.KindClick, Selector: selector}}
}

func extract(id, selector string, deps ...string) config.NodeConfig {
	return config.NodeConfig{ID: id, DependsOn: deps, Action: action.Spec{Kind: action.KindExtract, Selector: selector}}
}

// fakeBrowser answers actions without a browser. Clicks on selectors listed in
// broken fail.
type fakeBrowser struct {
	mu     sync.Mutex
	broken map[string]bool
	text   map[string]string
	calls  []string
}

func (f *fakeBrowser) Execute(ctx context.Context, payload workflow.Payload) (interface{}, error) {
	f.mu.Lock()
	f.calls = append(f.calls, payload.Describe())
	f.mu.Unlock()

	switch a := payload.(type) {
	case action.Navigate:
		return a.URL, nil
	case action.Click:
		if f.broken[a.Selector] {
			return nil, errors.New("element not found")
		}
		return "https://example.com/next", nil
	case action.Extract:
		return f.text[a.Selector], nil
	default:
		return nil, nil
	}
}

func bufferLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(LogLevelVerbose)
	l.SetOutput(&buf)
	return l, &buf
}

func TestRunner_Success(t *testing.T) {
	cfg := testConfig(t,
		nav("open", "https://example.com"),
		extract("title", "h1", "open"),
		click("next", "a.next", "open"),
	)
	logger, out := bufferLogger()
	exec := &fakeBrowser{text: map[string]string{"h1": "Example Domain"}}

	runner, err := NewRunner(cfg, exec, WithLogger(logger))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, statusSuccess, summary.Status)
	assert.False(t, summary.HasFailures())
	assert.Equal(t, "test", summary.WorkflowID)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 3, summary.Counts["completed"])
	require.Len(t, summary.Nodes, 3)

	title := summary.Node("title")
	require.NotNil(t, title)
	assert.Equal(t, "Example Domain", title.Result)
	assert.Equal(t, []string{"open"}, title.Dependencies)
	assert.Equal(t, "Extract text from selector h1", title.Description)
	assert.NotNil(t, title.StartedAt)
	assert.Nil(t, summary.Node("missing"))

	assert.Contains(t, out.String(), "open: Navigate to https://example.com")
	assert.Contains(t, out.String(), "title result: Example Domain")
	assert.Contains(t, out.String(), "SUCCESS")

	statuses, err := runner.Engine().Status(runner.WorkflowID())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, statuses["next"])
}

func TestRunner_WritesArtifacts(t *testing.T) {
	cfg := testConfig(t, nav("open", "https://example.com"), extract("title", "h1", "open"))
	cfg.Workflow.Description = "fetch the title"
	logger, _ := bufferLogger()

	runner, err := NewRunner(cfg, &fakeBrowser{text: map[string]string{"h1": "Hi"}}, WithLogger(logger))
	require.NoError(t, err)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.Artifacts.OutputDir, "execution.json"))
	require.NoError(t, err)
	var decoded ExecutionSummary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, summary.RunID, decoded.RunID)
	assert.Equal(t, statusSuccess, decoded.Status)
	assert.Equal(t, "Hi", decoded.Node("title").Result)

	md, err := os.ReadFile(filepath.Join(cfg.Artifacts.OutputDir, "summary.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Bitagent Workflow Summary")
	assert.Contains(t, string(md), "**Description:** fetch the title")
	assert.Contains(t, string(md), "| `title` | Extract text from selector h1 | ✅ completed |")
}

func TestRunner_ArtifactsDisabled(t *testing.T) {
	cfg := testConfig(t, nav("open", "https://example.com"))
	cfg.Artifacts.Enabled = false
	logger, _ := bufferLogger()

	runner, err := NewRunner(cfg, &fakeBrowser{}, WithLogger(logger))
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(cfg.Artifacts.OutputDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRunner_PartialFailure(t *testing.T) {
	cfg := testConfig(t,
		nav("open", "https://example.com"),
		click("login", "#login", "open"),
		extract("profile", "#name", "login"),
		extract("title", "h1", "open"),
	)
	logger, out := bufferLogger()
	exec := &fakeBrowser{broken: map[string]bool{"#login": true}}

	runner, err := NewRunner(cfg, exec, WithLogger(logger))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err, "node failures are not run errors")

	assert.Equal(t, statusPartialSuccess, summary.Status)
	assert.True(t, summary.HasFailures())
	assert.Equal(t, 2, summary.Counts["completed"])
	assert.Equal(t, 1, summary.Counts["failed"])
	assert.Equal(t, 1, summary.Counts["skipped"])

	assert.Contains(t, summary.Node("login").Error, "element not found")
	assert.Equal(t, "skipped", summary.Node("profile").Status)
	assert.NotEmpty(t, summary.Node("profile").Error)

	assert.Contains(t, out.String(), "login failed")
	assert.Contains(t, out.String(), "profile skipped")
	assert.NotContains(t, exec.calls, "Extract text from selector #name")
}

func TestRunner_RootFailure(t *testing.T) {
	cfg := testConfig(t, click("start", "#start"), extract("after", "p", "start"))
	logger, _ := bufferLogger()

	runner, err := NewRunner(cfg, &fakeBrowser{broken: map[string]bool{"#start": true}}, WithLogger(logger))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, statusFailed, summary.Status)
	assert.Zero(t, summary.Counts["completed"])
}

func TestRunner_Timeout(t *testing.T) {
	cfg := testConfig(t, nav("open", "https://slow.example.com"), extract("title", "h1", "open"))
	cfg.Workflow.Timeout = 20 * time.Millisecond
	logger, _ := bufferLogger()

	exec := workflow.ExecutorFunc(func(ctx context.Context, _ workflow.Payload) (interface{}, error) {
		<-ctx.Done()
		return nil, context.Cause(ctx)
	})

	runner, err := NewRunner(cfg, exec, WithLogger(logger))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "after 20ms")

	require.NotNil(t, summary)
	assert.Equal(t, statusFailed, summary.Status)
	assert.Contains(t, summary.Error, "timeout")
	assert.Equal(t, "failed", summary.Node("open").Status)
	assert.Equal(t, "skipped", summary.Node("title").Status)
	assert.True(t, summary.HasFailures())
}

func TestRunner_Cancel(t *testing.T) {
	cfg := testConfig(t, nav("open", "https://example.com"), extract("title", "h1", "open"))
	cfg.Workflow.GracePeriod = time.Second
	logger, out := bufferLogger()

	started := make(chan struct{})
	exec := workflow.ExecutorFunc(func(ctx context.Context, _ workflow.Payload) (interface{}, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	runner, err := NewRunner(cfg, exec, WithLogger(logger))
	require.NoError(t, err)

	type outcome struct {
		summary *ExecutionSummary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := runner.Run(context.Background())
		done <- outcome{s, err}
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("node never started")
	}
	require.NoError(t, runner.Engine().Cancel(runner.WorkflowID()))

	var res outcome
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	assert.ErrorIs(t, res.err, workflow.ErrCancelled)
	require.NotNil(t, res.summary)
	assert.Equal(t, statusFailed, res.summary.Status)
	// The executor honoured the context within the grace period.
	assert.Equal(t, "failed", res.summary.Node("open").Status)
	assert.NotContains(t, res.summary.Node("open").Error, "abandoned")
	assert.Equal(t, "skipped", res.summary.Node("title").Status)
	assert.Contains(t, out.String(), "cancelled")
}

func TestRunner_RegistrationFailure(t *testing.T) {
	cfg := testConfig(t, nav("a", "https://example.com", "b"), nav("b", "https://example.com", "a"))
	logger, out := bufferLogger()

	runner, err := NewRunner(cfg, &fakeBrowser{}, WithLogger(logger))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, workflow.ErrValidation)
	assert.Contains(t, out.String(), "failed to create workflow")
}

func TestNewRunner_Errors(t *testing.T) {
	_, err := NewRunner(nil, &fakeBrowser{})
	assert.ErrorContains(t, err, "configuration is required")

	cfg := testConfig(t, nav("a", "https://example.com"))
	_, err = NewRunner(cfg, nil)
	assert.ErrorContains(t, err, "executor is required")

	cfg.Workflow.Concurrency = 0
	_, err = NewRunner(cfg, &fakeBrowser{})
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name   string
		counts map[string]int
		total  int
		runErr error
		want   string
	}{
		{"all completed", map[string]int{"completed": 3}, 3, nil, statusSuccess},
		{"empty", map[string]int{}, 0, nil, statusSuccess},
		{"some failed", map[string]int{"completed": 2, "failed": 1}, 3, nil, statusPartialSuccess},
		{"some skipped", map[string]int{"completed": 1, "skipped": 1}, 2, nil, statusPartialSuccess},
		{"none completed", map[string]int{"failed": 1, "skipped": 2}, 3, nil, statusFailed},
		{"run error", map[string]int{"completed": 3}, 3, workflow.ErrCancelled, statusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overallStatus(tt.counts, tt.total, tt.runErr))
		})
	}
}

func TestJSONValue(t *testing.T) {
	assert.Nil(t, jsonValue(nil))
	assert.Equal(t, "text", jsonValue("text"))
	assert.Equal(t, map[string]int{"a": 1}, jsonValue(map[string]int{"a": 1}))

	ch := make(chan int)
	v := jsonValue(ch)
	assert.IsType(t, "", v)
}
