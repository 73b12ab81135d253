package parse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
)

func enhancerSpec() Spec {
	return Spec{
		Stage:           envelope.StageEnhancer,
		ArtifactKey:     "enhanced_text",
		ArtifactAliases: []string{"improved_text"},
		Input:           "the original standard text",
		FallbackScore:   60,
		WantsKnowledge:  true,
	}
}

// =============================================================================
// STRICT TIER
// =============================================================================

func TestStrictJSON(t *testing.T) {
	raw := `{"enhanced_text": "improved standard", "quality_score": 85, "notes": "clean run"}`
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, envelope.ParseMethodStrictJSON, result.Method)
	assert.Equal(t, "improved standard", result.Artifact)
	assert.Equal(t, 85, result.Score)
	assert.Equal(t, "clean run", result.Notes)
}

func TestStrictJSONInsideFence(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"enhanced_text\": \"improved\", \"quality_score\": 90}\n```\nDone."
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, envelope.ParseMethodStrictJSON, result.Method)
	assert.Equal(t, "improved", result.Artifact)
	assert.Equal(t, 90, result.Score)
}

func TestStrictJSONEmbeddedInProse(t *testing.T) {
	raw := `The model says {"enhanced_text": "improved", "quality_score": 75} and nothing else.`
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, envelope.ParseMethodStrictJSON, result.Method)
	assert.Equal(t, 75, result.Score)
}

func TestStrictJSONHonorsArtifactAlias(t *testing.T) {
	raw := `{"improved_text": "aliased artifact", "quality_score": 80}`
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, envelope.ParseMethodStrictJSON, result.Method)
	assert.Equal(t, "aliased artifact", result.Artifact)
}

func TestStrictJSONDecodesDetail(t *testing.T) {
	raw := `{
		"enhanced_text": "improved",
		"quality_score": 85,
		"justification": "clarified murabaha ownership transfer",
		"processing_steps": ["restructured sections", "fixed terminology"],
		"improvements": ["added disclosure clause"],
		"recommendations": ["review by Shariah board"]
	}`
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, "clarified murabaha ownership transfer", result.Detail.Justification)
	assert.Equal(t, []string{"restructured sections", "fixed terminology"}, result.Detail.ProcessingSteps)
	assert.Equal(t, []string{"added disclosure clause"}, result.Detail.Improvements)
	assert.Equal(t, []string{"review by Shariah board"}, result.Detail.Recommendations)
}

func TestStrictJSONExtractsKnowledgeFields(t *testing.T) {
	raw := `{"enhanced_text": "x", "quality_score": 40, "needs_knowledge": true, "knowledge_query": "latest AAOIFI FAS 28 amendments"}`
	result := Output(context.Background(), raw, enhancerSpec())

	assert.True(t, result.NeedsKnowledge)
	assert.Equal(t, "latest AAOIFI FAS 28 amendments", result.KnowledgeQuery)
}

func TestStrictJSONExtractsFinalOutput(t *testing.T) {
	spec := Spec{
		Stage:            envelope.StageValidator,
		ArtifactKey:      "validated_text",
		Input:            "input",
		WantsFinalOutput: true,
	}
	raw := `{"validated_text": "checked", "quality_score": 88, "final_output": "the final standard"}`
	result := Output(context.Background(), raw, spec)

	assert.Equal(t, "the final standard", result.FinalOutput)
}

// =============================================================================
// REPAIR TIER
// =============================================================================

func TestRepairTier(t *testing.T) {
	spec := enhancerSpec()
	spec.Repair = func(ctx context.Context, raw string) (string, error) {
		return `{"enhanced_text": "repaired", "quality_score": 70}`, nil
	}
	// Score as a bare word defeats the strict tier.
	raw := `{"enhanced_text": "broken", "quality_score": excellent}`
	result := Output(context.Background(), raw, spec)

	assert.Equal(t, envelope.ParseMethodLLMRepair, result.Method)
	assert.Equal(t, "repaired", result.Artifact)
	assert.Equal(t, 70, result.Score)
}

func TestRepairFailureFallsThrough(t *testing.T) {
	spec := enhancerSpec()
	spec.Repair = func(ctx context.Context, raw string) (string, error) {
		return "", errors.New("model unavailable")
	}
	result := Output(context.Background(), "complete garbage with no fields", spec)

	assert.Equal(t, envelope.ParseMethodSentinel, result.Method)
	assert.Contains(t, result.Steps[1].Description, "LLM repair call failed")
	assert.False(t, result.Steps[1].Success)
}

// =============================================================================
// PERMISSIVE TIER
// =============================================================================

func TestPermissiveDecodeStringScore(t *testing.T) {
	raw := `{"enhanced_text": "improved", "quality_score": "85"}`
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, envelope.ParseMethodPermissiveMap, result.Method)
	assert.Equal(t, 85, result.Score)
	assert.Equal(t, "improved", result.Artifact)
}

func TestPermissiveDecodeMissingScoreUsesFallback(t *testing.T) {
	raw := `{"enhanced_text": "improved but unscored"}`
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, envelope.ParseMethodPermissiveMap, result.Method)
	assert.Equal(t, 60, result.Score)
}

func TestPermissiveDecodeMissingArtifactEchoesInput(t *testing.T) {
	raw := `{"quality_score": 45, "notes": "no artifact emitted"}`
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, envelope.ParseMethodPermissiveMap, result.Method)
	assert.Equal(t, "the original standard text", result.Artifact)
	assert.Equal(t, 45, result.Score)
}

func TestPermissiveDecodeYesNoKnowledgeFlag(t *testing.T) {
	raw := `{"enhanced_text": "x", "quality_score": "40", "needs_knowledge": "yes", "knowledge_query": "ijara definitions"}`
	result := Output(context.Background(), raw, enhancerSpec())

	assert.True(t, result.NeedsKnowledge)
	assert.Equal(t, "ijara definitions", result.KnowledgeQuery)
}

// =============================================================================
// LABELLED-FIELD TIER
// =============================================================================

func TestLabelledFields(t *testing.T) {
	raw := "Enhanced text: The improved murabaha standard.\nWith a continuation line.\nQuality score: 82\nNotes: minor fixes"
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, envelope.ParseMethodLabelledFields, result.Method)
	assert.Equal(t, "The improved murabaha standard.\nWith a continuation line.", result.Artifact)
	assert.Equal(t, 82, result.Score)
	assert.Equal(t, "minor fixes", result.Notes)
}

func TestLabelledFieldsMarkdownDecoration(t *testing.T) {
	raw := "**Quality score:** 64\n## Enhanced text: decorated artifact"
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, envelope.ParseMethodLabelledFields, result.Method)
	assert.Equal(t, 64, result.Score)
	assert.Equal(t, "decorated artifact", result.Artifact)
}

func TestLabelledFieldsScoreOnlyEchoesInput(t *testing.T) {
	raw := "Some prose without an artifact.\nScore: 35"
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, envelope.ParseMethodLabelledFields, result.Method)
	assert.Equal(t, 35, result.Score)
	assert.Equal(t, "the original standard text", result.Artifact)
}

func TestLabelledFieldsList(t *testing.T) {
	raw := "Enhanced text: improved\nQuality score: 77\nImprovements:\n- clarified wording\n- added references"
	result := Output(context.Background(), raw, enhancerSpec())

	assert.Equal(t, []string{"clarified wording", "added references"}, result.Detail.Improvements)
}

// =============================================================================
// SENTINEL TIER
// =============================================================================

func TestSentinelOnGarbage(t *testing.T) {
	result := Output(context.Background(), "utterly unstructured model rambling", enhancerSpec())

	assert.Equal(t, envelope.ParseMethodSentinel, result.Method)
	assert.Equal(t, "the original standard text", result.Artifact)
	assert.Equal(t, 60, result.Score)
	assert.NotEmpty(t, result.Notes)
}

func TestSentinelZeroFallback(t *testing.T) {
	spec := Spec{
		Stage:       envelope.StagePreprocessor,
		ArtifactKey: "preprocessed_text",
		Input:       "raw input",
	}
	result := Output(context.Background(), "", spec)

	assert.Equal(t, envelope.ParseMethodSentinel, result.Method)
	assert.Equal(t, "raw input", result.Artifact)
	assert.Equal(t, 0, result.Score)
}

func TestStepsRecordEveryTier(t *testing.T) {
	result := Output(context.Background(), "no structure at all", enhancerSpec())

	require.Len(t, result.Steps, 4)
	assert.Equal(t, "strict_json", result.Steps[0].Name)
	assert.Contains(t, result.Steps[0].Description, "strict JSON decode failed")
	assert.Equal(t, "permissive_map", result.Steps[1].Name)
	assert.Contains(t, result.Steps[1].Description, "permissive map decode failed")
	assert.Equal(t, "labelled_fields", result.Steps[2].Name)
	assert.Contains(t, result.Steps[2].Description, "labelled-field extraction failed")
	assert.Equal(t, "sentinel", result.Steps[3].Name)
	assert.Contains(t, result.Steps[3].Description, "sentinel passthrough")
	for i, step := range result.Steps {
		assert.True(t, step.Success == (i == 3))
	}
}

func TestStepTimestampsAreMonotonic(t *testing.T) {
	result := Output(context.Background(), "no structure at all", enhancerSpec())

	require.Len(t, result.Steps, 4)
	for i, step := range result.Steps {
		require.False(t, step.Timestamp.IsZero(), "step %d has no timestamp", i)
		if i > 0 {
			require.False(t, step.Timestamp.Before(result.Steps[i-1].Timestamp),
				"step %d timestamp precedes step %d", i, i-1)
		}
	}
}

func TestStepStringCarriesTimestamp(t *testing.T) {
	result := Output(context.Background(), "no structure at all", enhancerSpec())

	require.NotEmpty(t, result.Steps)
	rendered := result.Steps[0].String()
	assert.Contains(t, rendered, "strict_json (")
	assert.Contains(t, rendered, result.Steps[0].Timestamp.Format(time.RFC3339Nano))
	assert.Contains(t, rendered, "strict JSON decode failed")
}

// =============================================================================
// PAYLOAD EXTRACTION
// =============================================================================

func TestExtractBalancedIgnoresBracesInStrings(t *testing.T) {
	raw := `prefix {"enhanced_text": "contains a } brace", "quality_score": 50} suffix`
	payload, ok := extractBalanced(raw)
	require.True(t, ok)
	assert.Equal(t, `{"enhanced_text": "contains a } brace", "quality_score": 50}`, payload)
}

func TestExtractBalancedNested(t *testing.T) {
	raw := `{"a": {"b": 1}, "quality_score": 2}`
	payload, ok := extractBalanced(raw)
	require.True(t, ok)
	assert.Equal(t, raw, payload)
}

func TestExtractFencedPrefersJSONFence(t *testing.T) {
	raw := "```json\n{\"k\": 1}\n```"
	payload, ok := extractFenced(raw)
	require.True(t, ok)
	assert.Equal(t, `{"k": 1}`, payload)
}
