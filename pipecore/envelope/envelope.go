package envelope

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeRequest is a stage's request for external knowledge. At most one
// request is pending at any time; the sequencer resolves it before the stage
// re-enters.
type KnowledgeRequest struct {
	ID          string    `json:"id"`
	Stage       Stage     `json:"stage"`
	Query       string    `json:"query"`
	RequestedAt time.Time `json:"requested_at"`
}

// SourceRef is a single retrieved source backing a knowledge response.
type SourceRef struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link,omitempty"`
}

// KnowledgeResponse is the mediated answer to a KnowledgeRequest.
type KnowledgeResponse struct {
	RequestID  string      `json:"request_id"`
	Query      string      `json:"query"`
	Summary    string      `json:"summary"`
	Sources    []SourceRef `json:"sources,omitempty"`
	ResolvedAt time.Time   `json:"resolved_at"`
}

// AttemptDetail carries the narrative parts of a stage result that feed the
// audit trail.
type AttemptDetail struct {
	Justification   string   `json:"justification,omitempty"`
	ProcessingSteps []string `json:"processing_steps,omitempty"`
	ToolsUsed       []string `json:"tools_used,omitempty"`
	Improvements    []string `json:"improvements,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// AuditEvent classifies an audit trail entry.
type AuditEvent string

const (
	// AuditEventAttempt records a completed stage attempt.
	AuditEventAttempt AuditEvent = "attempt"
	// AuditEventForcedAcceptance records a stage accepted after budget exhaustion.
	AuditEventForcedAcceptance AuditEvent = "forced_acceptance"
	// AuditEventRegression records a one-step fallback to the previous stage.
	AuditEventRegression AuditEvent = "regression"
	// AuditEventKnowledgeRequest records a stage asking for external knowledge.
	AuditEventKnowledgeRequest AuditEvent = "knowledge_request"
	// AuditEventKnowledgeResponse records the mediated answer.
	AuditEventKnowledgeResponse AuditEvent = "knowledge_response"
)

// AuditEntry is one append-only record in the trail. Attempt entries carry a
// score and detail; event entries carry a message.
type AuditEntry struct {
	Stage       Stage         `json:"stage"`
	Event       AuditEvent    `json:"event"`
	Timestamp   time.Time     `json:"timestamp"`
	Attempt     int           `json:"attempt,omitempty"`
	Score       int           `json:"score,omitempty"`
	ParseMethod ParseMethod   `json:"parse_method,omitempty"`
	Message     string        `json:"message,omitempty"`
	Detail      AttemptDetail `json:"detail,omitempty"`
}

// StandardEnvelope carries one standard document through the pipeline. All
// mutation goes through the sequencer; agents only read it and return partial
// results.
type StandardEnvelope struct {
	// Identification
	SessionID string `json:"session_id"`

	// Original input
	StandardText string    `json:"standard_text"`
	CreatedAt    time.Time `json:"created_at"`

	// Per-stage artifacts
	PreprocessedText string `json:"preprocessed_text,omitempty"`
	ReviewedText     string `json:"reviewed_text,omitempty"`
	EnhancedText     string `json:"enhanced_text,omitempty"`
	ValidatedText    string `json:"validated_text,omitempty"`
	FinalOutput      string `json:"final_output,omitempty"`

	// Quality tracking, keyed by stage name, clamped to [0,100]
	QualityScores map[Stage]int    `json:"quality_scores"`
	Notes         map[Stage]string `json:"notes,omitempty"`

	// Retry bookkeeping, maintained by the sequencer
	CurrentStage Stage         `json:"current_stage"`
	RetryCounts  map[Stage]int `json:"retry_counts"`

	// Knowledge side-channel
	PendingRequest     *KnowledgeRequest   `json:"pending_request,omitempty"`
	KnowledgeRequests  []KnowledgeRequest  `json:"knowledge_requests"`
	KnowledgeResponses []KnowledgeResponse `json:"knowledge_responses"`

	// Audit trail, append-only
	AuditEntries []AuditEntry `json:"audit_entries"`

	// Completion
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	TerminalReason TerminalReason `json:"terminal_reason,omitempty"`
}

// NewStandardEnvelope creates an envelope for one standard document.
func NewStandardEnvelope(standardText string) *StandardEnvelope {
	return &StandardEnvelope{
		SessionID:          "std_" + uuid.New().String()[:16],
		StandardText:       standardText,
		CreatedAt:          time.Now().UTC(),
		QualityScores:      make(map[Stage]int),
		Notes:              make(map[Stage]string),
		CurrentStage:       StagePreprocessor,
		RetryCounts:        make(map[Stage]int),
		KnowledgeRequests:  []KnowledgeRequest{},
		KnowledgeResponses: []KnowledgeResponse{},
		AuditEntries:       []AuditEntry{},
	}
}

// =============================================================================
// Artifact Access
// =============================================================================

// StageArtifact returns the text artifact a stage produced, or "" if none.
func (e *StandardEnvelope) StageArtifact(stage Stage) string {
	switch stage {
	case StagePreprocessor:
		return e.PreprocessedText
	case StageReviewer:
		return e.ReviewedText
	case StageEnhancer:
		return e.EnhancedText
	case StageValidator:
		return e.ValidatedText
	}
	return ""
}

// SetStageArtifact stores a stage's text artifact.
func (e *StandardEnvelope) SetStageArtifact(stage Stage, text string) {
	switch stage {
	case StagePreprocessor:
		e.PreprocessedText = text
	case StageReviewer:
		e.ReviewedText = text
	case StageEnhancer:
		e.EnhancedText = text
	case StageValidator:
		e.ValidatedText = text
	}
}

// StageInput returns the text a stage should operate on: the artifact of the
// nearest completed upstream stage, falling back to the original input.
func (e *StandardEnvelope) StageInput(stage Stage) string {
	idx := stage.Index()
	if idx < 0 {
		return e.StandardText
	}
	order := StageOrder()
	for i := idx - 1; i >= 0; i-- {
		if text := e.StageArtifact(order[i]); text != "" {
			return text
		}
	}
	return e.StandardText
}

// BestUpstreamText returns the most refined text available anywhere in the
// pipeline: validated, then enhanced, then reviewed, then preprocessed, then
// the original input.
func (e *StandardEnvelope) BestUpstreamText() string {
	for i := len(StageOrder()) - 1; i >= 0; i-- {
		if text := e.StageArtifact(StageOrder()[i]); text != "" {
			return text
		}
	}
	return e.StandardText
}

// =============================================================================
// Quality Scores
// =============================================================================

// SetQualityScore records a stage score, clamping it to [0,100].
func (e *StandardEnvelope) SetQualityScore(stage Stage, score int) {
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}
	e.QualityScores[stage] = score
}

// QualityScore returns a stage's score and whether one has been recorded.
func (e *StandardEnvelope) QualityScore(stage Stage) (int, bool) {
	score, ok := e.QualityScores[stage]
	return score, ok
}

// AverageQuality returns the mean of all recorded scores, or 0 when none.
func (e *StandardEnvelope) AverageQuality() float64 {
	if len(e.QualityScores) == 0 {
		return 0
	}
	total := 0
	for _, score := range e.QualityScores {
		total += score
	}
	return float64(total) / float64(len(e.QualityScores))
}

// =============================================================================
// Knowledge Side-Channel
// =============================================================================

// AddKnowledgeRequest records a request and marks it pending. A request made
// while another is pending replaces it; the history keeps both.
func (e *StandardEnvelope) AddKnowledgeRequest(req KnowledgeRequest) {
	if req.ID == "" {
		req.ID = "kreq_" + uuid.New().String()[:16]
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	e.KnowledgeRequests = append(e.KnowledgeRequests, req)
	e.PendingRequest = &req
}

// ResolveKnowledgeRequest records the response and clears the pending request.
func (e *StandardEnvelope) ResolveKnowledgeRequest(resp KnowledgeResponse) {
	if resp.ResolvedAt.IsZero() {
		resp.ResolvedAt = time.Now().UTC()
	}
	e.KnowledgeResponses = append(e.KnowledgeResponses, resp)
	e.PendingRequest = nil
}

// HasPendingRequest reports whether a knowledge request awaits mediation.
func (e *StandardEnvelope) HasPendingRequest() bool {
	return e.PendingRequest != nil
}

// KnowledgeContext returns the accumulated response summaries for prompt
// augmentation, most recent last.
func (e *StandardEnvelope) KnowledgeContext() []string {
	if len(e.KnowledgeResponses) == 0 {
		return nil
	}
	summaries := make([]string, 0, len(e.KnowledgeResponses))
	for _, resp := range e.KnowledgeResponses {
		summaries = append(summaries, resp.Summary)
	}
	return summaries
}

// =============================================================================
// Retry Bookkeeping
// =============================================================================

// IncrementAttempt bumps and returns the attempt counter for a stage.
func (e *StandardEnvelope) IncrementAttempt(stage Stage) int {
	e.RetryCounts[stage]++
	return e.RetryCounts[stage]
}

// Attempts returns the attempt counter for a stage.
func (e *StandardEnvelope) Attempts(stage Stage) int {
	return e.RetryCounts[stage]
}

// ResetAttempts zeroes the attempt counter for a stage.
func (e *StandardEnvelope) ResetAttempts(stage Stage) {
	e.RetryCounts[stage] = 0
}

// =============================================================================
// Audit Trail
// =============================================================================

// AppendAudit adds an entry to the trail, stamping it if unstamped.
func (e *StandardEnvelope) AppendAudit(entry AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	e.AuditEntries = append(e.AuditEntries, entry)
}

// LastAttemptEntry returns the most recent attempt entry for a stage, or nil.
func (e *StandardEnvelope) LastAttemptEntry(stage Stage) *AuditEntry {
	for i := len(e.AuditEntries) - 1; i >= 0; i-- {
		if e.AuditEntries[i].Stage == stage && e.AuditEntries[i].Event == AuditEventAttempt {
			return &e.AuditEntries[i]
		}
	}
	return nil
}

// =============================================================================
// Completion
// =============================================================================

// Complete stamps the envelope as finished with the given reason.
func (e *StandardEnvelope) Complete(reason TerminalReason) {
	now := time.Now().UTC()
	e.CompletedAt = &now
	e.TerminalReason = reason
}

// IsComplete reports whether the envelope has been stamped as finished.
func (e *StandardEnvelope) IsComplete() bool {
	return e.CompletedAt != nil
}

// ToResultDict converts the envelope to a flat map for reporting.
func (e *StandardEnvelope) ToResultDict() map[string]any {
	scores := make(map[string]int, len(e.QualityScores))
	for stage, score := range e.QualityScores {
		scores[string(stage)] = score
	}
	result := map[string]any{
		"session_id":         e.SessionID,
		"final_output":       e.FinalOutput,
		"quality_scores":     scores,
		"average_quality":    e.AverageQuality(),
		"knowledge_requests": len(e.KnowledgeRequests),
		"audit_entries":      len(e.AuditEntries),
		"terminal_reason":    string(e.TerminalReason),
		"created_at":         e.CreatedAt.Format(time.RFC3339),
	}
	if e.CompletedAt != nil {
		result["completed_at"] = e.CompletedAt.Format(time.RFC3339)
	}
	return result
}
