package parse

import (
	"regexp"
	"strings"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/typeutil"
)

// labelLine matches a "Label: value" line, tolerating markdown bold and
// heading markers around the label.
var labelLine = regexp.MustCompile(`^\s*(?:\*\*|#+\s*|[-*]\s+)?([A-Za-z][A-Za-z /]{1,40}?)(?:\*\*)?\s*:\s*(.*)$`)

// extractLabelled recovers fields from prose output of the form
//
//	Quality score: 85
//	Enhanced text: ...
//	continuation lines...
//	Notes: ...
//
// Multi-line values run until the next recognized label. Succeeds when at
// least the artifact or a score was found.
func extractLabelled(raw string, spec Spec) (*Result, bool) {
	known := knownLabels(spec)

	values := make(map[string]string)
	var currentField string
	var buf []string

	flush := func() {
		if currentField != "" {
			values[currentField] = strings.TrimSpace(strings.Join(buf, "\n"))
		}
		buf = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := labelLine.FindStringSubmatch(line); m != nil {
			if field, ok := known[canonicalLabel(m[1])]; ok {
				flush()
				currentField = field
				// "**Label:** value" leaves the closing bold marker on
				// the value side of the colon.
				buf = append(buf, strings.TrimLeft(m[2], "* "))
				continue
			}
		}
		if currentField != "" {
			buf = append(buf, line)
		}
	}
	flush()

	artifact := firstValue(values, artifactKeys(spec)...)
	scoreText, hasScore := values["quality_score"]
	if artifact == "" && !hasScore {
		return nil, false
	}

	result := &Result{Artifact: artifact, Notes: values["notes"]}
	result.Score = typeutil.SafeIntDefault(scoreText, spec.FallbackScore)
	if artifact == "" {
		result.Artifact = spec.Input
	}
	result.Detail.Justification = values["justification"]
	result.Detail.ProcessingSteps = splitList(values["processing_steps"])
	result.Detail.ToolsUsed = splitList(values["tools_used"])
	result.Detail.Improvements = splitList(values["improvements"])
	result.Detail.Recommendations = splitList(values["recommendations"])
	if spec.WantsFinalOutput {
		result.FinalOutput = firstValue(values, "final_output", "final_text")
	}
	if spec.WantsKnowledge {
		result.NeedsKnowledge = typeutil.SafeBoolDefault(values["needs_knowledge"], false)
		result.KnowledgeQuery = values["knowledge_query"]
	}
	return result, true
}

// knownLabels maps canonical label text to field keys for this spec.
func knownLabels(spec Spec) map[string]string {
	known := map[string]string{
		"quality score":     "quality_score",
		"score":             "quality_score",
		"notes":             "notes",
		"justification":     "justification",
		"processing steps":  "processing_steps",
		"tools used":        "tools_used",
		"improvements":      "improvements",
		"improvements made": "improvements",
		"recommendations":   "recommendations",
	}
	for _, key := range artifactKeys(spec) {
		known[labelFor(key)] = key
	}
	if spec.WantsFinalOutput {
		known["final output"] = "final_output"
		known["final text"] = "final_text"
	}
	if spec.WantsKnowledge {
		known["needs knowledge"] = "needs_knowledge"
		known["knowledge query"] = "knowledge_query"
	}
	return known
}

// labelFor derives the prose label for a field key: "enhanced_text"
// becomes "enhanced text".
func labelFor(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

func canonicalLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func firstValue(values map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
	}
	return ""
}

// splitList turns a labelled block into items: one per line, or one per
// comma on a single line, list bullets stripped.
func splitList(block string) []string {
	block = strings.TrimSpace(block)
	if block == "" {
		return nil
	}
	lines := strings.Split(block, "\n")
	if len(lines) == 1 && strings.Contains(block, ",") {
		lines = strings.Split(block, ",")
	}
	items := make([]string, 0, len(lines))
	for _, line := range lines {
		item := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil
	}
	return items
}
