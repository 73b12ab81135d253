// Package runtime provides the Sequencer - the retry/recall state machine
// that drives a standard through preprocess, review, enhance, and validate.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/agents"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/audit"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/config"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/knowledge"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("standardsengine/runtime")

// Result is the outcome of one full pipeline run.
type Result struct {
	FinalOutput    string
	AuditTrail     string
	QualityScores  map[envelope.Stage]int
	StartTime      time.Time
	CompletionTime time.Time

	// Envelope exposes the full run state for callers that need more than
	// the summary fields.
	Envelope *envelope.StandardEnvelope
}

// Sequencer owns all envelope mutation: agents return partial results and
// the sequencer merges them, gates on quality, and decides transitions.
type Sequencer struct {
	cfg      *config.PipelineConfig
	agents   map[envelope.Stage]agents.StageAgent
	mediator *knowledge.Mediator
	logger   agents.Logger
}

// NewSequencer creates a sequencer over the four stage agents. The mediator
// may be nil when no knowledge side-channel is wanted; pending requests then
// resolve to nothing and the stage simply re-enters.
func NewSequencer(cfg *config.PipelineConfig, stageAgents map[envelope.Stage]agents.StageAgent, mediator *knowledge.Mediator, logger agents.Logger) (*Sequencer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, stage := range envelope.StageOrder() {
		if _, ok := stageAgents[stage]; !ok {
			return nil, fmt.Errorf("missing agent for stage %q", stage)
		}
	}
	return &Sequencer{
		cfg:      cfg,
		agents:   stageAgents,
		mediator: mediator,
		logger:   logger.Bind("component", "sequencer"),
	}, nil
}

// Process runs the full pipeline on one standard text. It terminates for
// every input: each transition either advances, consumes retry budget, or
// force-accepts. Only context cancellation returns an error, together with
// the partial result accumulated so far.
func (s *Sequencer) Process(ctx context.Context, standardText string) (*Result, error) {
	env := envelope.NewStandardEnvelope(standardText)
	ctx, span := tracer.Start(ctx, "sequencer.process", trace.WithAttributes(
		attribute.String("pipeline.session_id", env.SessionID),
		attribute.Int("pipeline.input_length", len(standardText)),
	))
	defer span.End()

	startTime := time.Now()
	s.logger.Info("pipeline_started",
		"session_id", env.SessionID,
		"input_length", len(standardText),
		"max_retries", s.cfg.MaxRetries,
		"quality_threshold", s.cfg.QualityThreshold,
	)

	forced, err := s.run(ctx, env)

	durationMS := int(time.Since(startTime).Milliseconds())
	if err != nil {
		env.Complete(envelope.TerminalReasonCancelled)
		observability.RecordPipelineRun(string(envelope.TerminalReasonCancelled), durationMS)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("pipeline_cancelled",
			"session_id", env.SessionID,
			"stage", string(env.CurrentStage),
			"duration_ms", durationMS,
		)
		return s.buildResult(env, startTime), err
	}

	if env.FinalOutput == "" {
		env.FinalOutput = env.BestUpstreamText()
	}
	reason := envelope.TerminalReasonCompletedSuccessfully
	if forced {
		reason = envelope.TerminalReasonForcedAcceptance
	}
	env.Complete(reason)

	observability.RecordPipelineRun(string(reason), durationMS)
	span.SetAttributes(
		attribute.String("pipeline.terminal_reason", string(reason)),
		attribute.Float64("pipeline.average_quality", env.AverageQuality()),
		attribute.Int("duration_ms", durationMS),
	)
	span.SetStatus(codes.Ok, "success")
	s.logger.Info("pipeline_completed",
		"session_id", env.SessionID,
		"terminal_reason", string(reason),
		"average_quality", env.AverageQuality(),
		"output_length", len(env.FinalOutput),
		"duration_ms", durationMS,
	)
	return s.buildResult(env, startTime), nil
}

// run drives the stage loop to completion. Returns whether any stage was
// force-accepted.
func (s *Sequencer) run(ctx context.Context, env *envelope.StandardEnvelope) (bool, error) {
	forced := false

	for {
		select {
		case <-ctx.Done():
			return forced, ctx.Err()
		default:
		}

		stage := env.CurrentStage

		// Entering any later stage grants the preprocessor a fresh budget
		// for a potential future regression.
		if stage != envelope.StagePreprocessor {
			env.ResetAttempts(envelope.StagePreprocessor)
		}

		attempt := env.IncrementAttempt(stage)

		// Budget already exhausted on a previous visit: accept what exists
		// rather than loop forever.
		if attempt > s.cfg.MaxAttempts() {
			forced = true
			if done := s.forceAccept(env, stage); done {
				return forced, nil
			}
			continue
		}

		attemptStart := time.Now()
		result, err := s.agents[stage].Process(ctx, env)
		if err != nil {
			return forced, err
		}
		durationMS := int(time.Since(attemptStart).Milliseconds())

		s.merge(env, result, attempt)

		// Knowledge interception happens before the quality gate: the stage
		// re-enters with the mediated response in context.
		if result.Knowledge != nil {
			if err := s.mediate(ctx, env, result); err != nil {
				return forced, err
			}
			observability.RecordStageAttempt(string(stage), "knowledge", durationMS)
			continue
		}

		if s.accepted(result) {
			if stage == envelope.StageValidator {
				env.FinalOutput = result.FinalOutput
				observability.RecordStageAttempt(string(stage), "advanced", durationMS)
				return forced, nil
			}
			env.CurrentStage = s.nextStage(stage)
			observability.RecordStageAttempt(string(stage), "advanced", durationMS)
			s.logger.Info("stage_advanced",
				"session_id", env.SessionID,
				"stage", string(stage),
				"score", result.Score,
				"next_stage", string(env.CurrentStage),
			)
			continue
		}

		if attempt < s.cfg.MaxAttempts() {
			observability.RecordStageAttempt(string(stage), "retried", durationMS)
			s.logger.Info("stage_retried",
				"session_id", env.SessionID,
				"stage", string(stage),
				"score", result.Score,
				"attempt", attempt,
			)
			continue
		}

		// Budget exhausted below threshold. The preprocessor has nothing to
		// regress to; it re-enters and force-accepts on the next pass.
		if stage == envelope.StagePreprocessor {
			observability.RecordStageAttempt(string(stage), "retried", durationMS)
			continue
		}

		prev := s.prevStage(stage)
		env.CurrentStage = prev
		env.AppendAudit(envelope.AuditEntry{
			Stage: stage,
			Event: envelope.AuditEventRegression,
			Message: fmt.Sprintf("%s scored %d after %d attempts; recalling %s for rework",
				stage, result.Score, attempt, prev),
		})
		observability.RecordStageAttempt(string(stage), "regressed", durationMS)
		s.logger.Warn("stage_regressed",
			"session_id", env.SessionID,
			"stage", string(stage),
			"score", result.Score,
			"recalled_stage", string(prev),
		)
	}
}

// accepted applies the quality gate. A validator attempt that clears the
// threshold without supplying final text still counts as failed: the run is
// only done when final output exists.
func (s *Sequencer) accepted(result *agents.StageResult) bool {
	if result.Score < s.cfg.QualityThreshold {
		return false
	}
	if result.Stage == envelope.StageValidator && result.FinalOutput == "" {
		return false
	}
	return true
}

// merge folds a stage result into the envelope. This is the only place
// agent output touches pipeline state.
func (s *Sequencer) merge(env *envelope.StandardEnvelope, result *agents.StageResult, attempt int) {
	env.SetStageArtifact(result.Stage, result.Artifact)
	env.SetQualityScore(result.Stage, result.Score)
	if result.Notes != "" {
		env.Notes[result.Stage] = result.Notes
	}

	detail := result.Detail
	for _, step := range result.ParseSteps {
		detail.ProcessingSteps = append(detail.ProcessingSteps, step.String())
	}
	env.AppendAudit(envelope.AuditEntry{
		Stage:       result.Stage,
		Event:       envelope.AuditEventAttempt,
		Attempt:     attempt,
		Score:       result.Score,
		ParseMethod: result.ParseMethod,
		Message:     result.Notes,
		Detail:      detail,
	})
}

// mediate records the stage's knowledge request and resolves it before the
// stage re-enters.
func (s *Sequencer) mediate(ctx context.Context, env *envelope.StandardEnvelope, result *agents.StageResult) error {
	env.AddKnowledgeRequest(*result.Knowledge)
	env.AppendAudit(envelope.AuditEntry{
		Stage:   result.Stage,
		Event:   envelope.AuditEventKnowledgeRequest,
		Message: result.Knowledge.Query,
	})

	if s.mediator == nil {
		env.ResolveKnowledgeRequest(envelope.KnowledgeResponse{
			RequestID: env.KnowledgeRequests[len(env.KnowledgeRequests)-1].ID,
			Query:     result.Knowledge.Query,
			Summary:   "no knowledge mediator is configured; proceed with the available text",
		})
		return nil
	}

	resp, err := s.mediator.Resolve(ctx, env)
	if err != nil {
		return err
	}
	if resp != nil {
		env.AppendAudit(envelope.AuditEntry{
			Stage:   result.Stage,
			Event:   envelope.AuditEventKnowledgeResponse,
			Message: truncate(resp.Summary, 300),
		})
	}
	return nil
}

// forceAccept assigns the configured default score, guarantees a stage
// artifact exists, and advances. Returns true when the validator was
// force-accepted, which completes the run.
func (s *Sequencer) forceAccept(env *envelope.StandardEnvelope, stage envelope.Stage) bool {
	env.SetQualityScore(stage, s.cfg.DefaultQualityScore)
	if env.StageArtifact(stage) == "" {
		env.SetStageArtifact(stage, env.StageInput(stage))
	}
	env.AppendAudit(envelope.AuditEntry{
		Stage: stage,
		Event: envelope.AuditEventForcedAcceptance,
		Score: s.cfg.DefaultQualityScore,
		Message: fmt.Sprintf("Retry budget exhausted after %d attempts; output accepted with the default quality score.",
			s.cfg.MaxAttempts()),
	})
	observability.RecordStageAttempt(string(stage), "forced", 0)
	s.logger.Warn("stage_force_accepted",
		"session_id", env.SessionID,
		"stage", string(stage),
		"assigned_score", s.cfg.DefaultQualityScore,
	)

	if stage == envelope.StageValidator {
		return true
	}
	env.CurrentStage = s.nextStage(stage)
	return false
}

func (s *Sequencer) nextStage(stage envelope.Stage) envelope.Stage {
	order := envelope.StageOrder()
	idx := stage.Index()
	if idx < 0 || idx+1 >= len(order) {
		return stage
	}
	return order[idx+1]
}

func (s *Sequencer) prevStage(stage envelope.Stage) envelope.Stage {
	order := envelope.StageOrder()
	idx := stage.Index()
	if idx <= 0 {
		return stage
	}
	return order[idx-1]
}

func (s *Sequencer) buildResult(env *envelope.StandardEnvelope, startTime time.Time) *Result {
	completion := time.Now()
	if env.CompletedAt != nil {
		completion = *env.CompletedAt
	}
	scores := make(map[envelope.Stage]int, len(env.QualityScores))
	for stage, score := range env.QualityScores {
		scores[stage] = score
	}
	return &Result{
		FinalOutput:    env.FinalOutput,
		AuditTrail:     audit.Render(s.cfg.SessionTitle, env),
		QualityScores:  scores,
		StartTime:      startTime,
		CompletionTime: completion,
		Envelope:       env,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
