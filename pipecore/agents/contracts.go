// Package agents provides the four pipeline stage agents and the interfaces
// they depend on.
package agents

import (
	"context"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/parse"
)

// LLMProvider is the interface for LLM providers.
type LLMProvider interface {
	Generate(ctx context.Context, model string, prompt string, options map[string]any) (string, error)
}

// Logger is the interface for logging.
type Logger interface {
	Info(msg string, fields ...any)
	Debug(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Bind(fields ...any) Logger
}

// Passage is one corpus excerpt returned by a retriever.
type Passage struct {
	Text       string
	Source     string
	Similarity float64
}

// CorpusRetriever supplies reference passages for prompt augmentation.
// Implementations must degrade gracefully: an empty corpus returns no
// passages and no error.
type CorpusRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Passage, error)
}

// StageAgent processes the envelope for one pipeline stage. Agents never
// mutate the envelope; all updates flow back through the StageResult and
// are merged by the sequencer.
type StageAgent interface {
	Stage() envelope.Stage
	Process(ctx context.Context, env *envelope.StandardEnvelope) (*StageResult, error)
}

// StageResult is the partial update an agent returns from one attempt.
type StageResult struct {
	Stage    envelope.Stage
	Artifact string
	Score    int
	Notes    string

	// FinalOutput is set by the validator only, and only when its score
	// clears the quality threshold and the model supplied final text.
	FinalOutput string

	// Knowledge, when non-nil, asks the sequencer to mediate an external
	// knowledge lookup and re-enter this stage.
	Knowledge *envelope.KnowledgeRequest

	Detail      envelope.AttemptDetail
	ParseMethod envelope.ParseMethod
	ParseSteps  []parse.Step
}
