// Package main provides the bitagent command: it loads a workflow of browser
// actions from a YAML run file and executes it against Playwright-driven
// browser sessions, respecting each node's dependencies.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/entrhq/bitagent/pkg/browser"
	"github.com/entrhq/bitagent/pkg/config"
	"github.com/entrhq/bitagent/pkg/executor/headless"
	"github.com/entrhq/bitagent/pkg/workflow"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	Headless    bool
	Concurrency int
	Timeout     time.Duration
	OutputDir   string
	Verbosity   string
	DryRun      bool
	ShowVersion bool

	// set records which flags were given explicitly, so that only those
	// override the run file.
	set map[string]bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("bitagent v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancelCause(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel(workflow.ErrCancelled)
	}()

	code, err := run(ctx, cli)
	cancel(nil)
	if err != nil {
		log.Printf("Execution failed: %v", err)
	}
	os.Exit(code)
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to the workflow run file (YAML, required)")
	flag.BoolVar(&cli.Headless, "headless", true, "Run browsers without a visible window")
	flag.IntVar(&cli.Concurrency, "concurrency", 0, "Maximum number of actions running at once")
	flag.DurationVar(&cli.Timeout, "timeout", 0, "Overall workflow timeout (0 for none)")
	flag.StringVar(&cli.OutputDir, "output", "", "Directory for execution artifacts")
	flag.StringVar(&cli.Verbosity, "verbosity", "", "Console verbosity: quiet, normal, verbose or debug")
	flag.BoolVar(&cli.DryRun, "dry-run", false, "Validate the run file and print the execution order without opening a browser")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "bitagent - run browser automation workflows\n\n")
		fmt.Fprintf(os.Stderr, "Usage: bitagent -config <file> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run a workflow\n")
		fmt.Fprintf(os.Stderr, "  bitagent -config examples/search.yaml\n\n")
		fmt.Fprintf(os.Stderr, "  # Watch the browser, one action at a time\n")
		fmt.Fprintf(os.Stderr, "  bitagent -config examples/search.yaml -headless=false -concurrency 1\n\n")
		fmt.Fprintf(os.Stderr, "  # Check a run file\n")
		fmt.Fprintf(os.Stderr, "  bitagent -config examples/search.yaml -dry-run\n\n")
	}

	flag.Parse()

	cli.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { cli.set[f.Name] = true })
	return cli
}

// loadConfig reads the run file and applies command-line overrides.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	if cli.ConfigFile == "" {
		return nil, fmt.Errorf("-config is required")
	}

	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return nil, err
	}

	if cli.set["headless"] {
		cfg.Browser.Headless = cli.Headless
	}
	if cli.set["concurrency"] {
		cfg.Workflow.Concurrency = cli.Concurrency
	}
	if cli.set["timeout"] {
		cfg.Workflow.Timeout = cli.Timeout
	}
	if cli.set["output"] {
		cfg.Artifacts.Enabled = true
		cfg.Artifacts.OutputDir = cli.OutputDir
	}
	if cli.set["verbosity"] {
		cfg.Logging.Verbosity = cli.Verbosity
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run executes the workflow and returns the process exit code.
func run(ctx context.Context, cli *CLIConfig) (int, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return 1, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Reject structural problems before a browser is launched.
	specs, err := cfg.NodeSpecs()
	if err != nil {
		return 1, err
	}
	graph, err := workflow.NewGraph(cfg.Workflow.ID, specs)
	if err != nil {
		return 1, err
	}

	if cli.DryRun {
		fmt.Printf("Workflow %s is valid: %d node(s)\n", graph.ID(), graph.Len())
		fmt.Printf("Execution order: %s\n", strings.Join(graph.TopologicalOrder(), " -> "))
		return 0, nil
	}

	manager := browser.NewSessionManager()
	manager.SetMaxSessions(cfg.Browser.MaxSessions)
	if err := manager.Initialize(); err != nil {
		return 1, err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Printf("Warning: browser shutdown: %v", err)
		}
	}()

	opts := browser.SessionOptions{
		Headless: cfg.Browser.Headless,
		Browser:  cfg.Browser.Engine,
		Timeout:  cfg.Browser.Timeout,
	}
	if vp := cfg.Browser.Viewport; vp.Width > 0 && vp.Height > 0 {
		opts.Viewport = &browser.Viewport{Width: vp.Width, Height: vp.Height}
	}
	for _, name := range cfg.Browser.Sessions {
		if _, err := manager.StartSession(name, opts); err != nil {
			return 1, err
		}
	}

	policy, err := cfg.Navigation.Policy()
	if err != nil {
		return 1, err
	}

	exec := browser.NewActionExecutor(manager,
		browser.WithDefaultSession(cfg.DefaultSession()),
		browser.WithPolicy(policy),
		browser.WithMaxLength(cfg.Browser.MaxExtractLength),
		browser.WithActionTimeout(cfg.Browser.Timeout),
	)

	runner, err := headless.NewRunner(cfg, exec)
	if err != nil {
		return 1, err
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		return 1, err
	}
	if summary.HasFailures() {
		return 1, nil
	}
	return 0, nil
}
