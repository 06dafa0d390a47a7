package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/bitagent/pkg/action"
)

const sampleYAML = `
workflow:
  id: search
  concurrency: 2
  grace_period: 2s
  timeout: 1m
  nodes:
    - id: open
      action:
        kind: navigate
        url: https://www.google.com
        wait_for_selector: textarea[name="q"]
    - id: query
      depends_on: [open]
      action:
        kind: type
        selector: textarea[name="q"]
        text: Playwright github
    - id: submit
      depends_on: [query]
      action:
        kind: click
        selector: input[value="Google Search"]
    - id: first-result
      depends_on: [submit]
      action:
        kind: extract
        selector: h3
        session: secondary
browser:
  headless: false
  sessions: [main, secondary]
  viewport:
    width: 800
    height: 600
navigation:
  allowed_urls: ["**.google.com", "google.com"]
artifacts:
  output_dir: out
  markdown: false
logging:
  verbosity: verbose
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "search", cfg.Workflow.ID)
	assert.Equal(t, 2, cfg.Workflow.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Workflow.GracePeriod)
	assert.Equal(t, time.Minute, cfg.Workflow.Timeout)
	require.Len(t, cfg.Workflow.Nodes, 4)
	assert.Equal(t, []string{"open"}, cfg.Workflow.Nodes[1].DependsOn)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"main", "secondary"}, cfg.Browser.Sessions)
	assert.Equal(t, "main", cfg.DefaultSession())
	assert.Equal(t, ViewportConfig{Width: 800, Height: 600}, cfg.Browser.Viewport)
	// Untouched keys keep their defaults.
	assert.Equal(t, "chromium", cfg.Browser.Engine)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)

	assert.True(t, cfg.Artifacts.Enabled)
	assert.Equal(t, "out", cfg.Artifacts.OutputDir)
	assert.True(t, cfg.Artifacts.JSON)
	assert.False(t, cfg.Artifacts.Markdown)
	assert.Equal(t, "verbose", cfg.Logging.Verbosity)

	policy, err := cfg.Navigation.Policy()
	require.NoError(t, err)
	assert.True(t, policy.IsAllowed("https://www.google.com/search?q=x"))
	assert.False(t, policy.IsAllowed("https://bing.com"))
}

func TestNodeSpecs(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	specs, err := cfg.NodeSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 4)

	assert.Equal(t, "open", specs[0].ID)
	assert.Equal(t, action.Navigate{URL: "https://www.google.com", WaitForSelector: `textarea[name="q"]`}, specs[0].Payload)
	assert.Equal(t, []string{"submit"}, specs[3].Dependencies)
	assert.Equal(t, action.Extract{Selector: "h3", Session: "secondary"}, specs[3].Payload)
}

func TestParse_GeneratesWorkflowID(t *testing.T) {
	cfg, err := Parse([]byte("workflow:\n  concurrency: 1\n"))
	require.NoError(t, err)

	_, err = uuid.Parse(cfg.Workflow.ID)
	assert.NoError(t, err)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Workflow.Concurrency, cfg.Workflow.Concurrency)
	assert.NotEmpty(t, cfg.Workflow.ID)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("workflow:\n  concurency: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurency")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Workflow.ID = "wf"
		cfg.Workflow.Nodes = []NodeConfig{
			{ID: "open", Action: action.Spec{Kind: action.KindNavigate, URL: "https://example.com"}},
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero concurrency", func(c *Config) { c.Workflow.Concurrency = 0 }, "concurrency must be at least 1"},
		{"negative grace", func(c *Config) { c.Workflow.GracePeriod = -time.Second }, "grace_period cannot be negative"},
		{"negative timeout", func(c *Config) { c.Workflow.Timeout = -time.Second }, "timeout cannot be negative"},
		{"no nodes", func(c *Config) { c.Workflow.Nodes = nil }, "workflow has no nodes"},
		{"node without id", func(c *Config) { c.Workflow.Nodes[0].ID = "" }, "node 1: id is required"},
		{"bad action", func(c *Config) { c.Workflow.Nodes[0].Action.URL = "" }, `node "open": invalid action`},
		{"unknown session", func(c *Config) { c.Workflow.Nodes[0].Action.Session = "other" }, `session "other" is not listed`},
		{"bad engine", func(c *Config) { c.Browser.Engine = "netscape" }, "invalid browser engine"},
		{"no sessions", func(c *Config) { c.Browser.Sessions = nil }, "at least one browser session"},
		{"duplicate session", func(c *Config) { c.Browser.Sessions = []string{"a", "a"} }, `duplicate session "a"`},
		{"too many sessions", func(c *Config) { c.Browser.MaxSessions = 1; c.Browser.Sessions = []string{"a", "b"} }, "max_sessions is 1"},
		{"bad pattern", func(c *Config) { c.Navigation.DeniedURLs = []string{" "} }, "invalid navigation rules"},
		{"artifacts without dir", func(c *Config) { c.Artifacts.OutputDir = "" }, "output_dir is required"},
		{"bad verbosity", func(c *Config) { c.Logging.Verbosity = "loud" }, "invalid logging verbosity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DefaultsVerbosity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workflow.Nodes = []NodeConfig{{ID: "a", Action: action.Spec{Kind: action.KindWait, Selector: "#x"}}}
	cfg.Logging.Verbosity = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "normal", cfg.Logging.Verbosity)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "search", cfg.Workflow.ID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("workflow: [unclosed"), 0o600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, bad)
}
