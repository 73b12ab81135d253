// Package envelope provides the StandardEnvelope - the single mutable state
// record threaded through the enhancement pipeline - plus its enums.
package envelope

// Stage identifies a pipeline stage. The canonical order is
// preprocessor -> reviewer -> enhancer -> validator.
type Stage string

const (
	// StagePreprocessor cleans and structures the raw standard text.
	StagePreprocessor Stage = "preprocessor"
	// StageReviewer analyzes the preprocessed text for issues.
	StageReviewer Stage = "reviewer"
	// StageEnhancer rewrites the text applying the review findings.
	StageEnhancer Stage = "enhancer"
	// StageValidator checks the enhanced text and emits the final output.
	StageValidator Stage = "validator"
)

// StageOrder returns the canonical stage sequence.
func StageOrder() []Stage {
	return []Stage{StagePreprocessor, StageReviewer, StageEnhancer, StageValidator}
}

// Index returns the position of the stage in the canonical order, or -1.
func (s Stage) Index() int {
	for i, stage := range StageOrder() {
		if stage == s {
			return i
		}
	}
	return -1
}

// Valid reports whether the stage is one of the four known stages.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// TerminalReason represents why a pipeline run terminated - exactly one per run.
type TerminalReason string

const (
	// TerminalReasonCompletedSuccessfully indicates the validator accepted the output.
	TerminalReasonCompletedSuccessfully TerminalReason = "completed_successfully"
	// TerminalReasonForcedAcceptance indicates at least one stage was force-accepted
	// after its retry budget was exhausted.
	TerminalReasonForcedAcceptance TerminalReason = "forced_acceptance"
	// TerminalReasonCancelled indicates the context was cancelled mid-run.
	TerminalReasonCancelled TerminalReason = "cancelled"
)

// ParseMethod records which parser tier produced a stage result.
type ParseMethod string

const (
	// ParseMethodStrictJSON indicates the strict typed JSON decode succeeded.
	ParseMethodStrictJSON ParseMethod = "strict_json"
	// ParseMethodLLMRepair indicates the one-shot LLM repair pass succeeded.
	ParseMethodLLMRepair ParseMethod = "llm_repair"
	// ParseMethodPermissiveMap indicates the permissive map decode succeeded.
	ParseMethodPermissiveMap ParseMethod = "permissive_map"
	// ParseMethodLabelledFields indicates labelled-field extraction succeeded.
	ParseMethodLabelledFields ParseMethod = "labelled_fields"
	// ParseMethodSentinel indicates the guaranteed-success sentinel fired.
	ParseMethodSentinel ParseMethod = "sentinel"
)
