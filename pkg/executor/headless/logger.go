package headless

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/entrhq/bitagent/pkg/types"
)

// LogLevel represents the logging verbosity level
type LogLevel int

const (
	// LogLevelQuiet shows only critical information (errors, warnings, final summary)
	LogLevelQuiet LogLevel = iota
	// LogLevelNormal shows standard execution progress (default)
	LogLevelNormal
	// LogLevelVerbose shows node results and skip reasons
	LogLevelVerbose
	// LogLevelDebug shows every engine event
	LogLevelDebug
)

// resultPreviewLength bounds how much of a node result is echoed to the console.
const resultPreviewLength = 120

// Logger prints run progress to the console. It is safe for concurrent use;
// engine events may arrive from more than one goroutine.
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	writer io.Writer

	// ANSI color codes
	colorReset     string
	colorCyan      string
	colorSalmon    string
	colorYellow    string
	colorRed       string
	colorGray      string
	colorBoldGreen string
	colorBoldRed   string
	colorBoldWhite string

	stepCount int
}

// NewLogger creates a new logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return &Logger{
		level:          level,
		writer:         os.Stdout,
		colorReset:     "\033[0m",
		colorCyan:      "\033[36m",
		colorSalmon:    "\033[38;5;217m", // Salmon pink #FFB3BA
		colorYellow:    "\033[33m",
		colorRed:       "\033[31m",
		colorGray:      "\033[90m",
		colorBoldGreen: "\033[1;32m",
		colorBoldRed:   "\033[1;31m",
		colorBoldWhite: "\033[1;37m",
	}
}

// SetOutput redirects the logger. Colors are dropped unless w is a terminal.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return
	}
	l.colorReset, l.colorCyan, l.colorSalmon, l.colorYellow = "", "", "", ""
	l.colorRed, l.colorGray, l.colorBoldGreen, l.colorBoldRed, l.colorBoldWhite = "", "", "", "", ""
}

// Level returns the configured verbosity.
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) printf(at LogLevel, format string, args ...interface{}) {
	if l.level < at {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.writer, format, args...)
}

// Header prints a prominent header message
func (l *Logger) Header(message string) {
	rule := strings.Repeat("=", 70)
	l.printf(LogLevelNormal, "\n%s%s%s\n%s  %s%s\n%s%s%s\n",
		l.colorBoldWhite, rule, l.colorReset,
		l.colorBoldWhite, message, l.colorReset,
		l.colorBoldWhite, rule, l.colorReset)
}

// Section prints a section divider
func (l *Logger) Section(title string) {
	l.printf(LogLevelNormal, "\n%s▶ %s%s\n%s%s%s\n",
		l.colorCyan, title, l.colorReset,
		l.colorGray, strings.Repeat("─", 50), l.colorReset)
}

// Step prints a numbered step in the execution
func (l *Logger) Step(message string) {
	if l.level < LogLevelNormal {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stepCount++
	fmt.Fprintf(l.writer, "%s[%d] %s%s\n", l.colorCyan, l.stepCount, message, l.colorReset)
}

// Successf prints a success message with checkmark
func (l *Logger) Successf(format string, args ...interface{}) {
	l.printf(LogLevelNormal, "%s✓ %s%s\n", l.colorBoldGreen, fmt.Sprintf(format, args...), l.colorReset)
}

// Infof prints an informational message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.printf(LogLevelNormal, "%s%s%s\n", l.colorSalmon, fmt.Sprintf(format, args...), l.colorReset)
}

// Warningf prints a warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.printf(LogLevelQuiet, "%s⚠ Warning: %s%s\n", l.colorYellow, fmt.Sprintf(format, args...), l.colorReset)
}

// Errorf prints an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.printf(LogLevelQuiet, "%s✗ Error: %s%s\n", l.colorBoldRed, fmt.Sprintf(format, args...), l.colorReset)
}

// Verbosef prints detailed information (only in verbose mode)
func (l *Logger) Verbosef(format string, args ...interface{}) {
	l.printf(LogLevelVerbose, "%s→ %s%s\n", l.colorGray, fmt.Sprintf(format, args...), l.colorReset)
}

// Debugf prints debug information (only in debug mode)
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.printf(LogLevelDebug, "%s[DEBUG] %s%s\n", l.colorGray, fmt.Sprintf(format, args...), l.colorReset)
}

// Event prints one engine event according to the verbosity level.
func (l *Logger) Event(ev types.WorkflowEvent) {
	l.Debugf("%s workflow=%s node=%s", ev.Type, ev.WorkflowID, ev.NodeID)

	switch ev.Type {
	case types.EventTypeWorkflowStarted:
		l.Section(fmt.Sprintf("Running workflow %s", ev.WorkflowID))
	case types.EventTypeNodeStarted:
		l.Step(fmt.Sprintf("%s: %s", ev.NodeID, ev.Description))
	case types.EventTypeNodeCompleted:
		l.Successf("%s completed", ev.NodeID)
		if ev.Result != nil {
			l.Verbosef("%s result: %s", ev.NodeID, preview(ev.Result))
		}
	case types.EventTypeNodeFailed:
		l.Errorf("%s failed: %v", ev.NodeID, ev.Error)
	case types.EventTypeNodeSkipped:
		l.printf(LogLevelNormal, "%s  ⏭ %s skipped%s\n", l.colorGray, ev.NodeID, l.colorReset)
		if ev.Error != nil {
			l.Verbosef("%s: %v", ev.NodeID, ev.Error)
		}
	case types.EventTypeWorkflowCancelled:
		l.Warningf("workflow %s cancelled", ev.WorkflowID)
	case types.EventTypeWorkflowDeadlock:
		l.Errorf("workflow %s deadlocked: %v", ev.WorkflowID, ev.Error)
	}
}

// preview renders a node result on one line, shortened for the console.
func preview(v interface{}) string {
	s := strings.Join(strings.Fields(fmt.Sprintf("%v", v)), " ")
	r := []rune(s)
	if len(r) > resultPreviewLength {
		return string(r[:resultPreviewLength]) + "…"
	}
	return s
}

// Summary prints a final execution summary
func (l *Logger) Summary(summary *ExecutionSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.printSummaryHeader()
	l.printStatus(summary.Status)
	l.printWorkflowAndDuration(summary)
	l.printCounts(summary)
	l.printNodes(summary)
	l.printError(summary)
	l.printSummaryFooter()
}

func (l *Logger) printSummaryHeader() {
	fmt.Fprintln(l.writer)
	fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
	fmt.Fprintf(l.writer, "%s  EXECUTION SUMMARY%s\n", l.colorBoldWhite, l.colorReset)
	fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
}

func (l *Logger) printStatus(status string) {
	fmt.Fprint(l.writer, "  Status: ")
	switch status {
	case statusSuccess:
		fmt.Fprintf(l.writer, "%s✓ SUCCESS%s\n", l.colorBoldGreen, l.colorReset)
	case statusPartialSuccess:
		fmt.Fprintf(l.writer, "%s⚠ PARTIAL SUCCESS%s\n", l.colorYellow, l.colorReset)
	case statusFailed:
		fmt.Fprintf(l.writer, "%s✗ FAILED%s\n", l.colorBoldRed, l.colorReset)
	default:
		fmt.Fprintln(l.writer, status)
	}
}

func (l *Logger) printWorkflowAndDuration(summary *ExecutionSummary) {
	fmt.Fprintf(l.writer, "  Workflow: %s\n", summary.WorkflowID)
	if summary.Description != "" {
		fmt.Fprintf(l.writer, "  Description: %s\n", summary.Description)
	}
	fmt.Fprintf(l.writer, "  Duration: %s\n", summary.Duration.Round(time.Millisecond))
}

func (l *Logger) printCounts(summary *ExecutionSummary) {
	fmt.Fprintf(l.writer, "\n  📊 Nodes: %d\n", len(summary.Nodes))
	for _, status := range []string{"completed", "failed", "skipped"} {
		if c := summary.Counts[status]; c > 0 {
			fmt.Fprintf(l.writer, "    %s: %d\n", status, c)
		}
	}
}

func (l *Logger) printNodes(summary *ExecutionSummary) {
	if l.level < LogLevelVerbose || len(summary.Nodes) == 0 {
		return
	}

	fmt.Fprintf(l.writer, "\n  🧩 Node Results:\n")
	for _, n := range summary.Nodes {
		switch {
		case n.Error != "":
			fmt.Fprintf(l.writer, "%s    ✗ %s (%s)%s\n", l.colorBoldRed, n.ID, n.Status, l.colorReset)
			fmt.Fprintf(l.writer, "%s      %s%s\n", l.colorGray, n.Error, l.colorReset)
		case n.Result != nil:
			fmt.Fprintf(l.writer, "%s    ✓ %s%s: %s\n", l.colorBoldGreen, n.ID, l.colorReset, preview(n.Result))
		default:
			fmt.Fprintf(l.writer, "%s    ✓ %s%s\n", l.colorBoldGreen, n.ID, l.colorReset)
		}
	}
}

func (l *Logger) printError(summary *ExecutionSummary) {
	if summary.Error == "" {
		return
	}

	fmt.Fprintln(l.writer)
	fmt.Fprintf(l.writer, "%s  Error Details:%s\n", l.colorBoldRed, l.colorReset)
	fmt.Fprintf(l.writer, "%s    %s%s\n", l.colorRed, summary.Error, l.colorReset)
}

func (l *Logger) printSummaryFooter() {
	fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
	fmt.Fprintln(l.writer)
}

// Newline adds a blank line (respects log level)
func (l *Logger) Newline() {
	l.printf(LogLevelNormal, "\n")
}

// ParseLogLevel converts a string log level to LogLevel type
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "quiet":
		return LogLevelQuiet
	case "normal":
		return LogLevelNormal
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelNormal
	}
}
