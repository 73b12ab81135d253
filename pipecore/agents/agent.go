package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/config"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/observability"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/parse"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("standardsengine/agents")

// retrievalTopK passages are pulled from the corpus per attempt.
const retrievalTopK = 3

// stageDef is the per-stage configuration driving the shared agent.
type stageDef struct {
	stage            envelope.Stage
	systemPrompt     string
	inputLabel       string
	artifactKey      string
	artifactAliases  []string
	wantsFinalOutput bool
	// enhancerFallback selects the configured default score on total parse
	// failure instead of zero.
	enhancerFallback bool
}

// Agent is the single stage agent implementation, driven by a stageDef.
type Agent struct {
	def       stageDef
	cfg       *config.PipelineConfig
	llm       LLMProvider
	retriever CorpusRetriever
	logger    Logger
}

func newAgent(def stageDef, cfg *config.PipelineConfig, llm LLMProvider, retriever CorpusRetriever, logger Logger) *Agent {
	return &Agent{
		def:       def,
		cfg:       cfg,
		llm:       llm,
		retriever: retriever,
		logger:    logger.Bind("agent", string(def.stage)),
	}
}

// Stage returns the pipeline stage this agent serves.
func (a *Agent) Stage() envelope.Stage {
	return a.def.stage
}

// Process runs one attempt of this stage against the envelope. Transport
// failures become synthetic low-score results so the sequencer's retry logic
// handles them; only context cancellation is returned as an error.
func (a *Agent) Process(ctx context.Context, env *envelope.StandardEnvelope) (*StageResult, error) {
	ctx, span := tracer.Start(ctx, "agent.process", trace.WithAttributes(
		attribute.String("pipeline.stage", string(a.def.stage)),
		attribute.String("pipeline.session_id", env.SessionID),
		attribute.Int("pipeline.attempt", env.Attempts(a.def.stage)),
	))
	defer span.End()

	startTime := time.Now()
	input := env.StageInput(a.def.stage)
	a.logger.Info(fmt.Sprintf("%s_started", a.def.stage), "input_length", len(input))

	prompt := a.buildPrompt(ctx, env, input)

	raw, err := a.llm.Generate(ctx, a.cfg.Model, prompt, map[string]any{
		"temperature": a.cfg.Temperature,
	})
	if err != nil {
		observability.RecordLLMCall(string(a.def.stage), "error")
		span.RecordError(err)
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, ctx.Err().Error())
			return nil, ctx.Err()
		}
		// Recoverable transport failure: synthesize a failed attempt and let
		// the sequencer's quality gate drive the retry.
		a.logger.Error(fmt.Sprintf("%s_llm_error", a.def.stage), "error", err.Error())
		span.SetStatus(codes.Error, err.Error())
		return &StageResult{
			Stage:       a.def.stage,
			Artifact:    input,
			Score:       a.fallbackScore(),
			Notes:       fmt.Sprintf("llm call failed: %v", err),
			ParseMethod: envelope.ParseMethodSentinel,
			ParseSteps: []parse.Step{{
				Name:        "llm_call",
				Timestamp:   time.Now(),
				Description: "llm call failed before any output was produced",
			}},
		}, nil
	}
	observability.RecordLLMCall(string(a.def.stage), "success")

	a.logger.Debug(fmt.Sprintf("%s_llm_response", a.def.stage),
		"response_length", len(raw),
		"response_preview", truncate(raw, 200),
	)

	parsed := parse.Output(ctx, raw, parse.Spec{
		Stage:            a.def.stage,
		ArtifactKey:      a.def.artifactKey,
		ArtifactAliases:  a.def.artifactAliases,
		Input:            input,
		FallbackScore:    a.fallbackScore(),
		Repair:           a.repairFunc(),
		WantsFinalOutput: a.def.wantsFinalOutput,
		WantsKnowledge:   true,
	})
	observability.RecordParseResult(string(a.def.stage), string(parsed.Method))
	observability.RecordQualityScore(string(a.def.stage), parsed.Score)

	result := a.toStageResult(env, parsed)

	durationMS := int(time.Since(startTime).Milliseconds())
	span.SetAttributes(
		attribute.Int("pipeline.score", result.Score),
		attribute.String("pipeline.parse_method", string(result.ParseMethod)),
		attribute.Int("duration_ms", durationMS),
	)
	span.SetStatus(codes.Ok, "success")
	a.logger.Info(fmt.Sprintf("%s_completed", a.def.stage),
		"score", result.Score,
		"parse_method", string(result.ParseMethod),
		"needs_knowledge", result.Knowledge != nil,
		"duration_ms", durationMS,
	)
	return result, nil
}

func (a *Agent) toStageResult(env *envelope.StandardEnvelope, parsed *parse.Result) *StageResult {
	result := &StageResult{
		Stage:       a.def.stage,
		Artifact:    parsed.Artifact,
		Score:       parsed.Score,
		Notes:       parsed.Notes,
		Detail:      parsed.Detail,
		ParseMethod: parsed.Method,
		ParseSteps:  parsed.Steps,
	}

	if a.def.wantsFinalOutput {
		// The run is only finalized when the score clears the threshold AND
		// the model actually supplied final text.
		if parsed.Score >= a.cfg.QualityThreshold && strings.TrimSpace(parsed.FinalOutput) != "" {
			result.FinalOutput = parsed.FinalOutput
		}
	}

	if parsed.NeedsKnowledge && strings.TrimSpace(parsed.KnowledgeQuery) != "" {
		if a.stageKnowledgeCount(env) >= a.cfg.MaxKnowledgeQueries {
			a.logger.Warn(fmt.Sprintf("%s_knowledge_budget_exhausted", a.def.stage),
				"query", truncate(parsed.KnowledgeQuery, 120))
		} else {
			result.Knowledge = &envelope.KnowledgeRequest{
				Stage: a.def.stage,
				Query: parsed.KnowledgeQuery,
			}
		}
	}
	return result
}

func (a *Agent) stageKnowledgeCount(env *envelope.StandardEnvelope) int {
	count := 0
	for _, req := range env.KnowledgeRequests {
		if req.Stage == a.def.stage {
			count++
		}
	}
	return count
}

func (a *Agent) fallbackScore() int {
	if a.def.enhancerFallback {
		return a.cfg.DefaultQualityScore
	}
	return 0
}

// repairFunc returns the one-shot JSON repair callback for the parser.
func (a *Agent) repairFunc() parse.RepairFunc {
	return func(ctx context.Context, raw string) (string, error) {
		a.logger.Debug(fmt.Sprintf("%s_repair_attempt", a.def.stage), "raw_length", len(raw))
		repaired, err := a.llm.Generate(ctx, a.cfg.Model, fmt.Sprintf(repairPrompt, raw), map[string]any{
			"temperature": 0.0,
		})
		if err != nil {
			observability.RecordLLMCall(string(a.def.stage), "error")
			return "", fmt.Errorf("repair call failed: %w", err)
		}
		observability.RecordLLMCall(string(a.def.stage), "success")
		return repaired, nil
	}
}

func (a *Agent) buildPrompt(ctx context.Context, env *envelope.StandardEnvelope, input string) string {
	var b strings.Builder
	b.WriteString(a.def.systemPrompt)

	if passages := a.corpusContext(ctx, input); len(passages) > 0 {
		b.WriteString("\n\nReference passages from the AAOIFI corpus:\n")
		for _, passage := range passages {
			fmt.Fprintf(&b, "\n--- %s ---\n%s\n", passage.Source, passage.Text)
		}
	}

	if summaries := env.KnowledgeContext(); len(summaries) > 0 {
		b.WriteString("\n\nRetrieved external knowledge:\n")
		for _, summary := range summaries {
			b.WriteString("\n- ")
			b.WriteString(summary)
		}
	}

	b.WriteString("\n\n")
	b.WriteString(a.def.inputLabel)
	b.WriteString("\n\n")
	b.WriteString(input)
	return b.String()
}

func (a *Agent) corpusContext(ctx context.Context, input string) []Passage {
	if a.retriever == nil {
		return nil
	}
	passages, err := a.retriever.Retrieve(ctx, truncate(input, 2000), retrievalTopK)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("%s_retrieval_error", a.def.stage), "error", err.Error())
		return nil
	}
	return passages
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
