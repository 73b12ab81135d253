package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
)

func sampleEnvelope() *envelope.StandardEnvelope {
	env := envelope.NewStandardEnvelope("raw standard text")
	env.AppendAudit(envelope.AuditEntry{
		Stage:   envelope.StagePreprocessor,
		Event:   envelope.AuditEventAttempt,
		Attempt: 1,
		Score:   85,
		Detail: envelope.AttemptDetail{
			Justification:   "structured the text into numbered sections",
			ProcessingSteps: []string{"normalized headings", "fixed numbering"},
			ToolsUsed:       []string{"section_extractor"},
		},
	})
	env.AppendAudit(envelope.AuditEntry{
		Stage:   envelope.StageReviewer,
		Event:   envelope.AuditEventRegression,
		Message: "reviewer scored 30 after 3 attempts; recalling preprocessor for rework",
	})
	env.AppendAudit(envelope.AuditEntry{
		Stage:   envelope.StageEnhancer,
		Event:   envelope.AuditEventAttempt,
		Attempt: 2,
		Score:   72,
		Detail: envelope.AttemptDetail{
			Improvements:    []string{"clarified ownership transfer clause"},
			Recommendations: []string{"submit to Shariah board review"},
		},
	})
	env.SetQualityScore(envelope.StagePreprocessor, 85)
	env.SetQualityScore(envelope.StageEnhancer, 72)
	env.FinalOutput = "final text"
	env.Complete(envelope.TerminalReasonCompletedSuccessfully)
	return env
}

func TestRenderHeaderAndSummary(t *testing.T) {
	trail := Render("AAOIFI Standard Enhancement", sampleEnvelope())

	assert.True(t, strings.HasPrefix(trail, "# AAOIFI Standard Enhancement Audit Trail\n"))
	assert.Contains(t, trail, "## Process Summary")
	assert.Contains(t, trail, "- **Input length**: 17 characters")
	assert.Contains(t, trail, "Preprocessor -> Reviewer -> Enhancer -> Validator")
}

func TestRenderAttemptSections(t *testing.T) {
	trail := Render("Run", sampleEnvelope())

	assert.Contains(t, trail, "## Preprocessor")
	assert.Contains(t, trail, "**Quality score:** 85")
	assert.Contains(t, trail, "### Justification")
	assert.Contains(t, trail, "structured the text into numbered sections")
	assert.Contains(t, trail, "### Processing Steps")
	assert.Contains(t, trail, "1. normalized headings")
	assert.Contains(t, trail, "2. fixed numbering")
	assert.Contains(t, trail, "### Tools Used")
	assert.Contains(t, trail, "1. section_extractor")
	assert.Contains(t, trail, "### Improvements Made")
	assert.Contains(t, trail, "### Recommendations")
	assert.Contains(t, trail, "**Timestamp:**")
}

func TestRenderAttemptNumberOnlyOnRetries(t *testing.T) {
	trail := Render("Run", sampleEnvelope())

	// The first attempt carries no attempt line, the retry does.
	assert.Contains(t, trail, "**Attempt:** 2")
	assert.NotContains(t, trail, "**Attempt:** 1")
}

func TestRenderRegressionBlockquote(t *testing.T) {
	trail := Render("Run", sampleEnvelope())
	assert.Contains(t, trail, "> **Regression:** reviewer scored 30")
}

func TestRenderKnowledgeEvents(t *testing.T) {
	env := envelope.NewStandardEnvelope("text")
	env.AppendAudit(envelope.AuditEntry{
		Stage:   envelope.StageReviewer,
		Event:   envelope.AuditEventKnowledgeRequest,
		Message: "current tawarruq rulings",
	})
	env.AppendAudit(envelope.AuditEntry{
		Stage:   envelope.StageReviewer,
		Event:   envelope.AuditEventKnowledgeResponse,
		Message: "tawarruq permitted with conditions",
	})

	trail := Render("Run", env)
	assert.Contains(t, trail, "> **Knowledge request** (Reviewer): current tawarruq rulings")
	assert.Contains(t, trail, "> **Knowledge response** (Reviewer): tawarruq permitted with conditions")
}

func TestRenderForcedAcceptance(t *testing.T) {
	env := envelope.NewStandardEnvelope("text")
	env.AppendAudit(envelope.AuditEntry{
		Stage:   envelope.StageValidator,
		Event:   envelope.AuditEventForcedAcceptance,
		Score:   60,
		Message: "Retry budget exhausted after 6 attempts; output accepted with the default quality score.",
	})

	trail := Render("Run", env)
	assert.Contains(t, trail, "## Validator (forced acceptance)")
	assert.Contains(t, trail, "**Quality score:** 60")
	assert.Contains(t, trail, "Retry budget exhausted")
}

func TestRenderFinalSummary(t *testing.T) {
	trail := Render("Run", sampleEnvelope())

	assert.Contains(t, trail, "## Final Process Summary")
	assert.Contains(t, trail, "- **Average quality score**: 78.5/100")
	assert.Contains(t, trail, "- **Final output length**: 10 characters")
	assert.Contains(t, trail, "- **Total processing time**:")
}

func TestRenderQualityReport(t *testing.T) {
	env := sampleEnvelope()
	report := RenderQualityReport(env)

	require.Contains(t, report, "# Quality Scores")
	assert.Contains(t, report, "| Preprocessor | 85 |")
	assert.Contains(t, report, "| Enhancer | 72 |")
	// No recorded reviewer score, no row.
	assert.NotContains(t, report, "| Reviewer |")
	assert.Contains(t, report, "**Average:** 78.5/100")
}
