package agents

import (
	"github.com/aaoifi-enhancement/standardsengine/pipecore/config"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
)

// NewPreprocessor creates the stage agent that structures raw standard text.
func NewPreprocessor(cfg *config.PipelineConfig, llm LLMProvider, retriever CorpusRetriever, logger Logger) *Agent {
	return newAgent(stageDef{
		stage:           envelope.StagePreprocessor,
		systemPrompt:    preprocessorSystemPrompt,
		inputLabel:      preprocessorInputLabel,
		artifactKey:     "preprocessed_text",
		artifactAliases: []string{"structured_text"},
	}, cfg, llm, retriever, logger)
}

// NewReviewer creates the stage agent that audits the preprocessed standard.
func NewReviewer(cfg *config.PipelineConfig, llm LLMProvider, retriever CorpusRetriever, logger Logger) *Agent {
	return newAgent(stageDef{
		stage:           envelope.StageReviewer,
		systemPrompt:    reviewerSystemPrompt,
		inputLabel:      reviewerInputLabel,
		artifactKey:     "reviewed_text",
		artifactAliases: []string{"corrected_text"},
	}, cfg, llm, retriever, logger)
}

// NewEnhancer creates the stage agent that rewrites the standard. On total
// parse failure it falls back to the configured default quality score rather
// than zero, so a lost enhancement does not force a regression by itself.
func NewEnhancer(cfg *config.PipelineConfig, llm LLMProvider, retriever CorpusRetriever, logger Logger) *Agent {
	return newAgent(stageDef{
		stage:            envelope.StageEnhancer,
		systemPrompt:     enhancerSystemPrompt,
		inputLabel:       enhancerInputLabel,
		artifactKey:      "enhanced_text",
		artifactAliases:  []string{"improved_text"},
		enhancerFallback: true,
	}, cfg, llm, retriever, logger)
}

// NewValidator creates the final quality-assurance stage agent. It is the
// only agent that may populate FinalOutput.
func NewValidator(cfg *config.PipelineConfig, llm LLMProvider, retriever CorpusRetriever, logger Logger) *Agent {
	return newAgent(stageDef{
		stage:            envelope.StageValidator,
		systemPrompt:     validatorSystemPrompt,
		inputLabel:       validatorInputLabel,
		artifactKey:      "validated_text",
		artifactAliases:  []string{"final_text"},
		wantsFinalOutput: true,
	}, cfg, llm, retriever, logger)
}

// BuildStageAgents wires all four agents in canonical order.
func BuildStageAgents(cfg *config.PipelineConfig, llm LLMProvider, retriever CorpusRetriever, logger Logger) map[envelope.Stage]StageAgent {
	return map[envelope.Stage]StageAgent{
		envelope.StagePreprocessor: NewPreprocessor(cfg, llm, retriever, logger),
		envelope.StageReviewer:     NewReviewer(cfg, llm, retriever, logger),
		envelope.StageEnhancer:     NewEnhancer(cfg, llm, retriever, logger),
		envelope.StageValidator:    NewValidator(cfg, llm, retriever, logger),
	}
}
