// Package audit renders the append-only audit trail of a pipeline run as
// Markdown. Entries are recorded on the envelope by the sequencer; this
// package only formats them.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
)

const timestampLayout = "2006-01-02 15:04:05"

// stageHeading maps stage names to their trail headings.
func stageHeading(stage envelope.Stage) string {
	switch stage {
	case envelope.StagePreprocessor:
		return "Preprocessor"
	case envelope.StageReviewer:
		return "Reviewer"
	case envelope.StageEnhancer:
		return "Enhancer"
	case envelope.StageValidator:
		return "Validator"
	}
	return string(stage)
}

// Render builds the full Markdown trail for a completed (or aborted) run.
func Render(title string, env *envelope.StandardEnvelope) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Audit Trail\n\n", title)
	b.WriteString("## Process Summary\n\n")
	fmt.Fprintf(&b, "- **Session**: %s\n", env.SessionID)
	fmt.Fprintf(&b, "- **Start time**: %s\n", env.CreatedAt.Format(timestampLayout))
	fmt.Fprintf(&b, "- **Input length**: %d characters\n", len(env.StandardText))
	b.WriteString("- **Pipeline stages**: Preprocessor -> Reviewer -> Enhancer -> Validator\n\n")
	b.WriteString("---\n\n")

	for _, entry := range env.AuditEntries {
		renderEntry(&b, entry)
	}

	renderFinalSummary(&b, env)
	return b.String()
}

func renderEntry(b *strings.Builder, entry envelope.AuditEntry) {
	switch entry.Event {
	case envelope.AuditEventAttempt:
		renderAttempt(b, entry)
	case envelope.AuditEventForcedAcceptance:
		fmt.Fprintf(b, "## %s (forced acceptance)\n\n", stageHeading(entry.Stage))
		fmt.Fprintf(b, "**Timestamp:** %s\n\n", entry.Timestamp.Format(timestampLayout))
		fmt.Fprintf(b, "**Quality score:** %d\n\n", entry.Score)
		fmt.Fprintf(b, "%s\n\n", entry.Message)
	case envelope.AuditEventRegression:
		fmt.Fprintf(b, "> **Regression:** %s\n\n", entry.Message)
	case envelope.AuditEventKnowledgeRequest:
		fmt.Fprintf(b, "> **Knowledge request** (%s): %s\n\n", stageHeading(entry.Stage), entry.Message)
	case envelope.AuditEventKnowledgeResponse:
		fmt.Fprintf(b, "> **Knowledge response** (%s): %s\n\n", stageHeading(entry.Stage), entry.Message)
	}
}

func renderAttempt(b *strings.Builder, entry envelope.AuditEntry) {
	fmt.Fprintf(b, "## %s\n\n", stageHeading(entry.Stage))
	fmt.Fprintf(b, "**Timestamp:** %s\n\n", entry.Timestamp.Format(timestampLayout))
	if entry.Attempt > 1 {
		fmt.Fprintf(b, "**Attempt:** %d\n\n", entry.Attempt)
	}
	if entry.Message != "" {
		fmt.Fprintf(b, "Notes: %s\n\n", entry.Message)
	}
	fmt.Fprintf(b, "**Quality score:** %d\n\n", entry.Score)

	detail := entry.Detail
	if detail.Justification != "" {
		b.WriteString("### Justification\n\n")
		fmt.Fprintf(b, "%s\n\n", detail.Justification)
	}
	renderNumberedSection(b, "Processing Steps", detail.ProcessingSteps)
	renderNumberedSection(b, "Tools Used", detail.ToolsUsed)
	renderNumberedSection(b, "Improvements Made", detail.Improvements)
	renderNumberedSection(b, "Recommendations", detail.Recommendations)
}

func renderNumberedSection(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", heading)
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
	b.WriteString("\n")
}

func renderFinalSummary(b *strings.Builder, env *envelope.StandardEnvelope) {
	completion := time.Now().UTC()
	if env.CompletedAt != nil {
		completion = *env.CompletedAt
	}
	b.WriteString("## Final Process Summary\n\n")
	fmt.Fprintf(b, "- **Completion time**: %s\n", completion.Format(timestampLayout))
	fmt.Fprintf(b, "- **Average quality score**: %.1f/100\n", env.AverageQuality())
	fmt.Fprintf(b, "- **Total processing time**: %.1f seconds\n", completion.Sub(env.CreatedAt).Seconds())
	fmt.Fprintf(b, "- **Final output length**: %d characters\n", len(env.FinalOutput))
}

// RenderQualityReport builds the per-stage score report written alongside
// the enhanced standard.
func RenderQualityReport(env *envelope.StandardEnvelope) string {
	var b strings.Builder
	b.WriteString("# Quality Scores\n\n")
	b.WriteString("| Stage | Score |\n")
	b.WriteString("|-------|-------|\n")
	for _, stage := range envelope.StageOrder() {
		if score, ok := env.QualityScore(stage); ok {
			fmt.Fprintf(&b, "| %s | %d |\n", stageHeading(stage), score)
		}
	}
	fmt.Fprintf(&b, "\n**Average:** %.1f/100\n", env.AverageQuality())
	return b.String()
}
