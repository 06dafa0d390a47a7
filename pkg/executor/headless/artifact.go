package headless

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/bitagent/pkg/config"
)

// ArtifactWriter handles writing execution artifacts
type ArtifactWriter struct {
	outputDir string
	config    config.ArtifactConfig
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string, cfg config.ArtifactConfig) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
		config:    cfg,
	}
}

// OutputDir returns the directory artifacts are written to.
func (w *ArtifactWriter) OutputDir() string {
	return w.outputDir
}

// WriteAll writes all configured artifact formats
func (w *ArtifactWriter) WriteAll(summary *ExecutionSummary) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if w.config.JSON {
		if err := w.WriteExecutionJSON(summary); err != nil {
			return err
		}
	}

	if w.config.Markdown {
		if err := w.WriteSummaryMarkdown(summary); err != nil {
			return err
		}
	}

	return nil
}

// WriteExecutionJSON writes the full execution summary as JSON
func (w *ArtifactWriter) WriteExecutionJSON(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, "execution.json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write execution JSON: %w", writeErr)
	}

	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, "summary.md")

	var md strings.Builder

	md.WriteString("# Bitagent Workflow Summary\n\n")
	md.WriteString(fmt.Sprintf("**Workflow:** %s\n\n", summary.WorkflowID))
	if summary.Description != "" {
		md.WriteString(fmt.Sprintf("**Description:** %s\n\n", summary.Description))
	}
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", summary.RunID))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", summary.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration))

	md.WriteString("## Result\n\n")
	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	} else if summary.Status == statusSuccess {
		md.WriteString("✅ **Success**\n\n")
	} else {
		md.WriteString(fmt.Sprintf("⚠️ **%s**\n\n", summary.Status))
	}

	if len(summary.Nodes) > 0 {
		md.WriteString("## Nodes\n\n")
		md.WriteString("| Node | Action | Status | Duration | Depends on |\n")
		md.WriteString("|---|---|---|---|---|\n")
		for _, n := range summary.Nodes {
			md.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s | %s |\n",
				n.ID, escapeCell(n.Description), statusIcon(n.Status), n.Duration.Round(time.Millisecond),
				strings.Join(n.Dependencies, ", ")))
		}
		md.WriteString("\n")

		md.WriteString("## Details\n\n")
		for _, n := range summary.Nodes {
			switch {
			case n.Error != "":
				md.WriteString(fmt.Sprintf("- `%s`: %s\n", n.ID, n.Error))
			case n.Result != nil:
				md.WriteString(fmt.Sprintf("- `%s`: %s\n", n.ID, preview(n.Result)))
			}
		}
		md.WriteString("\n")
	}

	md.WriteString("## Counts\n\n")
	for _, status := range []string{"completed", "failed", "skipped"} {
		md.WriteString(fmt.Sprintf("- **%s:** %d\n", strings.ToUpper(status[:1])+status[1:], summary.Counts[status]))
	}

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}

	return nil
}

func statusIcon(status string) string {
	switch status {
	case "completed":
		return "✅ completed"
	case "failed":
		return "❌ failed"
	case "skipped":
		return "⏭️ skipped"
	default:
		return status
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
