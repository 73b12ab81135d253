// Package parse turns raw LLM output into a stage result. Parsing never
// fails: five strategies are tried in order and the last one is a sentinel
// that echoes the stage input with the stage's fallback score.
package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/typeutil"
)

// RepairFunc asks the model to re-emit its answer as valid JSON. It is
// called at most once per parse and must not recurse into parsing.
type RepairFunc func(ctx context.Context, raw string) (string, error)

// Spec describes what a stage expects from the model output.
type Spec struct {
	// Stage identifies the stage for logging and fallback selection.
	Stage envelope.Stage

	// ArtifactKey is the JSON key holding the stage's text artifact,
	// e.g. "enhanced_text". Aliases cover field renames across model runs.
	ArtifactKey     string
	ArtifactAliases []string

	// Input is the text the stage operated on; the sentinel echoes it.
	Input string

	// FallbackScore is assigned when no score can be recovered.
	FallbackScore int

	// Repair, when set, enables the one-shot LLM repair tier.
	Repair RepairFunc

	// WantsFinalOutput enables final_output extraction (validator).
	WantsFinalOutput bool

	// WantsKnowledge enables needs_knowledge / knowledge_query extraction.
	WantsKnowledge bool
}

// Step records one parse strategy's outcome. Steps are stamped as they
// happen, so timestamps within a parse are non-decreasing.
type Step struct {
	Name        string
	Timestamp   time.Time
	Description string
	Success     bool
}

// String renders the step the way audit trails list processing steps.
func (s Step) String() string {
	return fmt.Sprintf("%s (%s): %s", s.Name, s.Timestamp.Format(time.RFC3339Nano), s.Description)
}

// Result is the structured outcome of parsing one model response.
type Result struct {
	Artifact       string
	Score          int
	Notes          string
	FinalOutput    string
	NeedsKnowledge bool
	KnowledgeQuery string
	Detail         envelope.AttemptDetail
	Method         envelope.ParseMethod
	// Steps records which strategies ran, in order, for the audit trail.
	Steps []Step
}

// Output parses raw model output using the given Spec. It always returns a
// result.
func Output(ctx context.Context, raw string, spec Spec) *Result {
	var steps []Step
	record := func(name, description string, success bool) {
		steps = append(steps, Step{
			Name:        name,
			Timestamp:   time.Now(),
			Description: description,
			Success:     success,
		})
	}

	payload := extractPayload(raw)

	if result, err := strictDecode(payload, spec); err == nil {
		record("strict_json", "strict JSON decode succeeded", true)
		result.Method = envelope.ParseMethodStrictJSON
		result.Steps = steps
		return result
	}
	record("strict_json", "strict JSON decode failed", false)

	if spec.Repair != nil {
		if repaired, err := spec.Repair(ctx, raw); err == nil {
			if result, err := strictDecode(extractPayload(repaired), spec); err == nil {
				record("llm_repair", "LLM repair pass succeeded", true)
				result.Method = envelope.ParseMethodLLMRepair
				result.Steps = steps
				return result
			}
			record("llm_repair", "LLM repair output still unparseable", false)
		} else {
			record("llm_repair", fmt.Sprintf("LLM repair call failed: %v", err), false)
		}
	}

	if result, ok := permissiveDecode(payload, spec); ok {
		record("permissive_map", "permissive map decode succeeded", true)
		result.Method = envelope.ParseMethodPermissiveMap
		result.Steps = steps
		return result
	}
	record("permissive_map", "permissive map decode failed", false)

	if result, ok := extractLabelled(raw, spec); ok {
		record("labelled_fields", "labelled-field extraction succeeded", true)
		result.Method = envelope.ParseMethodLabelledFields
		result.Steps = steps
		return result
	}
	record("labelled_fields", "labelled-field extraction failed", false)

	// Sentinel: echo the stage input so the pipeline always has an artifact.
	record("sentinel", "sentinel passthrough applied", true)
	return &Result{
		Artifact: spec.Input,
		Score:    spec.FallbackScore,
		Notes:    "model output could not be parsed; input passed through unchanged",
		Method:   envelope.ParseMethodSentinel,
		Steps:    steps,
	}
}

// extractPayload isolates the JSON candidate inside raw model output:
// a fenced code block first, then a balanced top-level object, then the
// whole string.
func extractPayload(raw string) string {
	if fenced, ok := extractFenced(raw); ok {
		return fenced
	}
	if balanced, ok := extractBalanced(raw); ok {
		return balanced
	}
	return raw
}

func extractFenced(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	start := strings.Index(lower, "```json")
	offset := len("```json")
	if start < 0 {
		start = strings.Index(lower, "```")
		offset = len("```")
	}
	if start < 0 {
		return "", false
	}
	body := raw[start+offset:]
	end := strings.Index(body, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}

// extractBalanced scans for the first brace-balanced object in the text.
func extractBalanced(raw string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, c := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if start == -1 {
				continue
			}
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// strictDecode requires a valid JSON object with exactly-typed fields: the
// artifact must be a string and quality_score an integer.
func strictDecode(payload string, spec Spec) (*Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}

	result := &Result{}

	artifact, err := strictString(fields, artifactKeys(spec)...)
	if err != nil {
		return nil, err
	}
	result.Artifact = artifact

	score, err := strictInt(fields, "quality_score", "score")
	if err != nil {
		return nil, err
	}
	result.Score = score

	// Optional fields are best-effort even in the strict tier.
	result.Notes, _ = strictString(fields, "notes")
	result.Detail = decodeDetail(fields)
	if spec.WantsFinalOutput {
		result.FinalOutput, _ = strictString(fields, "final_output", "final_text")
	}
	if spec.WantsKnowledge {
		if raw, ok := fields["needs_knowledge"]; ok {
			_ = json.Unmarshal(raw, &result.NeedsKnowledge)
		}
		result.KnowledgeQuery, _ = strictString(fields, "knowledge_query")
	}
	return result, nil
}

func strictString(fields map[string]json.RawMessage, keys ...string) (string, error) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("field %q is not a string", key)
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		return s, nil
	}
	return "", fmt.Errorf("none of %v present", keys)
}

func strictInt(fields map[string]json.RawMessage, keys ...string) (int, error) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, fmt.Errorf("field %q is not an integer", key)
		}
		return n, nil
	}
	return 0, fmt.Errorf("none of %v present", keys)
}

func decodeDetail(fields map[string]json.RawMessage) envelope.AttemptDetail {
	detail := envelope.AttemptDetail{}
	detail.Justification, _ = strictString(fields, "justification")
	detail.ProcessingSteps = decodeStringSlice(fields["processing_steps"])
	detail.ToolsUsed = decodeStringSlice(fields["tools_used"])
	detail.Improvements = decodeStringSlice(fields["improvements"])
	detail.Recommendations = decodeStringSlice(fields["recommendations"])
	return detail
}

func decodeStringSlice(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

// permissiveDecode tolerates mistyped fields: string-encoded scores,
// yes/no knowledge flags, bare-string lists.
func permissiveDecode(payload string, spec Spec) (*Result, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, false
	}

	result := &Result{}
	artifact, okArtifact := typeutil.FirstString(m, artifactKeys(spec)...)
	score, okScore := typeutil.FirstInt(m, "quality_score", "score")
	if !okArtifact && !okScore {
		return nil, false
	}
	result.Artifact = artifact
	if okScore {
		result.Score = score
	} else {
		result.Score = spec.FallbackScore
	}
	if !okArtifact {
		result.Artifact = spec.Input
	}

	result.Notes = typeutil.SafeStringDefault(m["notes"], "")
	result.Detail = envelope.AttemptDetail{
		Justification:   typeutil.SafeStringDefault(m["justification"], ""),
		ProcessingSteps: typeutil.SafeStringSliceDefault(m["processing_steps"], nil),
		ToolsUsed:       typeutil.SafeStringSliceDefault(m["tools_used"], nil),
		Improvements:    typeutil.SafeStringSliceDefault(m["improvements"], nil),
		Recommendations: typeutil.SafeStringSliceDefault(m["recommendations"], nil),
	}
	if spec.WantsFinalOutput {
		result.FinalOutput, _ = typeutil.FirstString(m, "final_output", "final_text")
	}
	if spec.WantsKnowledge {
		result.NeedsKnowledge = typeutil.SafeBoolDefault(m["needs_knowledge"], false)
		result.KnowledgeQuery = typeutil.SafeStringDefault(m["knowledge_query"], "")
	}
	return result, true
}

func artifactKeys(spec Spec) []string {
	return append([]string{spec.ArtifactKey}, spec.ArtifactAliases...)
}
