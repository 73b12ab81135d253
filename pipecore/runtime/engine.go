package runtime

import (
	"context"
	"fmt"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/agents"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/config"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/knowledge"
)

// Engine is the single-call facade over the pipeline: it wires the four
// stage agents, the knowledge mediator, and the sequencer from one config
// and dependency set.
type Engine struct {
	seq *Sequencer
}

// EngineDeps carries the external collaborators an engine needs. Search and
// Retriever are optional; their absence degrades gracefully.
type EngineDeps struct {
	LLM       agents.LLMProvider
	Search    knowledge.SearchProvider
	Retriever agents.CorpusRetriever
	Logger    agents.Logger
}

// NewEngine builds a ready-to-run engine. The config is validated and
// defaulted here; each Process call gets its own envelope, so one engine
// can serve concurrent runs.
func NewEngine(cfg *config.PipelineConfig, deps EngineDeps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("engine requires an LLM provider")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("engine requires a logger")
	}
	stageAgents := agents.BuildStageAgents(cfg, deps.LLM, deps.Retriever, deps.Logger)
	mediator := knowledge.NewMediator(cfg, deps.Search, deps.LLM, deps.Logger)
	seq, err := NewSequencer(cfg, stageAgents, mediator, deps.Logger)
	if err != nil {
		return nil, err
	}
	return &Engine{seq: seq}, nil
}

// Process runs the full enhancement pipeline on one standard text.
func (e *Engine) Process(ctx context.Context, standardText string) (*Result, error) {
	return e.seq.Process(ctx, standardText)
}
