// Package config loads bitagent run files: a workflow of browser actions plus
// the browser, navigation, artifact and logging settings used to run it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/bitagent/pkg/action"
	"github.com/entrhq/bitagent/pkg/security/navigation"
	"github.com/entrhq/bitagent/pkg/workflow"
)

// Config represents one run file
type Config struct {
	Workflow   WorkflowConfig   `yaml:"workflow" json:"workflow"`
	Browser    BrowserConfig    `yaml:"browser" json:"browser"`
	Navigation NavigationConfig `yaml:"navigation" json:"navigation"`
	Artifacts  ArtifactConfig   `yaml:"artifacts" json:"artifacts"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`

	// Path is the file the configuration was loaded from, if any
	Path string `yaml:"-" json:"-"`
}

// WorkflowConfig defines the workflow DAG and how it is scheduled
type WorkflowConfig struct {
	// ID names the workflow; a random id is generated when empty
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`

	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	GracePeriod time.Duration `yaml:"grace_period" json:"grace_period"` // how long running actions may finish after cancellation
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`           // overall limit, 0 for none

	Nodes []NodeConfig `yaml:"nodes" json:"nodes"`
}

// NodeConfig is one task node
type NodeConfig struct {
	ID        string      `yaml:"id" json:"id"`
	DependsOn []string    `yaml:"depends_on" json:"depends_on"`
	Action    action.Spec `yaml:"action" json:"action"`
}

// BrowserConfig defines the browser sessions actions run in
type BrowserConfig struct {
	Headless bool   `yaml:"headless" json:"headless"`
	Engine   string `yaml:"engine" json:"engine"` // chromium, firefox or webkit

	Viewport ViewportConfig `yaml:"viewport" json:"viewport"`

	// Timeout is the default for every page operation
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	MaxSessions      int `yaml:"max_sessions" json:"max_sessions"`
	MaxExtractLength int `yaml:"max_extract_length" json:"max_extract_length"`

	// Sessions lists the sessions to open; the first is the default for
	// actions that do not name one
	Sessions []string `yaml:"sessions" json:"sessions"`
}

// ViewportConfig sets the page size
type ViewportConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// NavigationConfig restricts which URLs may be loaded
type NavigationConfig struct {
	AllowedURLs []string `yaml:"allowed_urls" json:"allowed_urls"`
	DeniedURLs  []string `yaml:"denied_urls" json:"denied_urls"`
}

// ArtifactConfig defines artifact generation configuration
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Individual format flags
	JSON     bool `yaml:"json" json:"json"`
	Markdown bool `yaml:"markdown" json:"markdown"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// DefaultConfig returns a default configuration suitable for most use cases
func DefaultConfig() *Config {
	return &Config{
		Workflow: WorkflowConfig{
			Concurrency: 4,
			GracePeriod: workflow.DefaultGracePeriod,
		},
		Browser: BrowserConfig{
			Headless:         true,
			Engine:           "chromium",
			Viewport:         ViewportConfig{Width: 1280, Height: 720},
			Timeout:          30 * time.Second,
			MaxSessions:      5,
			MaxExtractLength: 10000,
			Sessions:         []string{"default"},
		},
		Artifacts: ArtifactConfig{
			Enabled:   true,
			OutputDir: ".bitagent/artifacts",
			JSON:      true,
			Markdown:  true,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// Load reads and parses a YAML run file. The result is not validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes YAML over DefaultConfig. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Workflow.ID == "" {
		cfg.Workflow.ID = uuid.New().String()
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Workflow.Concurrency < 1 {
		return fmt.Errorf("workflow concurrency must be at least 1")
	}
	if c.Workflow.GracePeriod < 0 {
		return fmt.Errorf("grace_period cannot be negative")
	}
	if c.Workflow.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if len(c.Workflow.Nodes) == 0 {
		return fmt.Errorf("workflow has no nodes")
	}

	if err := c.validateBrowser(); err != nil {
		return err
	}

	sessions := make(map[string]bool, len(c.Browser.Sessions))
	for _, name := range c.Browser.Sessions {
		sessions[name] = true
	}
	for i, n := range c.Workflow.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node %d: id is required", i+1)
		}
		a, err := action.Decode(n.Action)
		if err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
		if s := a.SessionName(); s != "" && !sessions[s] {
			return fmt.Errorf("node %q: session %q is not listed in browser.sessions", n.ID, s)
		}
	}

	if _, err := c.Navigation.Policy(); err != nil {
		return err
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts output_dir is required when artifacts are enabled")
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

func (c *Config) validateBrowser() error {
	b := c.Browser

	switch b.Engine {
	case "", "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("invalid browser engine: %s (must be 'chromium', 'firefox' or 'webkit')", b.Engine)
	}
	if b.Viewport.Width < 0 || b.Viewport.Height < 0 {
		return fmt.Errorf("viewport dimensions cannot be negative")
	}
	if b.Timeout < 0 {
		return fmt.Errorf("browser timeout cannot be negative")
	}
	if b.MaxExtractLength < 0 {
		return fmt.Errorf("max_extract_length cannot be negative")
	}
	if len(b.Sessions) == 0 {
		return fmt.Errorf("at least one browser session is required")
	}
	if b.MaxSessions > 0 && len(b.Sessions) > b.MaxSessions {
		return fmt.Errorf("%d sessions configured but max_sessions is %d", len(b.Sessions), b.MaxSessions)
	}

	seen := make(map[string]bool, len(b.Sessions))
	for _, name := range b.Sessions {
		if name == "" {
			return fmt.Errorf("session names cannot be empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate session %q", name)
		}
		seen[name] = true
	}
	return nil
}

// DefaultSession returns the session used by actions that do not name one.
func (c *Config) DefaultSession() string {
	if len(c.Browser.Sessions) == 0 {
		return ""
	}
	return c.Browser.Sessions[0]
}

// NodeSpecs decodes the configured nodes into engine node specs whose
// payloads are action.Action values.
func (c *Config) NodeSpecs() ([]workflow.NodeSpec, error) {
	specs := make([]workflow.NodeSpec, 0, len(c.Workflow.Nodes))
	for _, n := range c.Workflow.Nodes {
		a, err := action.Decode(n.Action)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		specs = append(specs, workflow.NodeSpec{
			ID:           n.ID,
			Payload:      a,
			Dependencies: append([]string(nil), n.DependsOn...),
		})
	}
	return specs, nil
}

// Policy compiles the URL rules.
func (n NavigationConfig) Policy() (*navigation.Policy, error) {
	p, err := navigation.NewPolicy(n.AllowedURLs, n.DeniedURLs)
	if err != nil {
		return nil, fmt.Errorf("invalid navigation rules: %w", err)
	}
	return p, nil
}
