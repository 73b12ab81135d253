// Package knowledge mediates the pipeline's knowledge-augmentation
// side-channel: a stage requests external knowledge, the mediator searches
// and summarizes it, and the stage re-enters with the response in context.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/agents"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/config"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/observability"
)

// searchLimit caps results fetched per query.
const searchLimit = 5

// SearchProvider finds external sources for a query. The pipeline ships no
// implementation of the search itself; callers plug in a web search client
// or a corpus-backed provider.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]envelope.SourceRef, error)
}

// Mediator resolves pending knowledge requests. Retrieval never fails the
// pipeline: search or summarization errors degrade into an explanatory
// response so the requesting stage always re-enters with something.
type Mediator struct {
	cfg    *config.PipelineConfig
	search SearchProvider
	llm    agents.LLMProvider
	logger agents.Logger
}

// NewMediator creates a mediator. search may be nil, in which case every
// request resolves to a degraded response.
func NewMediator(cfg *config.PipelineConfig, search SearchProvider, llm agents.LLMProvider, logger agents.Logger) *Mediator {
	return &Mediator{
		cfg:    cfg,
		search: search,
		llm:    llm,
		logger: logger.Bind("component", "knowledge_mediator"),
	}
}

// Resolve consumes the envelope's pending request, if any. It returns the
// response it recorded, or nil when nothing was pending. Only context
// cancellation is returned as an error.
func (m *Mediator) Resolve(ctx context.Context, env *envelope.StandardEnvelope) (*envelope.KnowledgeResponse, error) {
	if !env.HasPendingRequest() {
		return nil, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req := *env.PendingRequest
	m.logger.Info("knowledge_request_received",
		"stage", string(req.Stage),
		"query", truncate(req.Query, 120),
	)

	resp := m.resolve(ctx, req)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	env.ResolveKnowledgeRequest(resp)
	m.logger.Info("knowledge_request_resolved",
		"stage", string(req.Stage),
		"sources", len(resp.Sources),
	)
	return &resp, nil
}

func (m *Mediator) resolve(ctx context.Context, req envelope.KnowledgeRequest) envelope.KnowledgeResponse {
	resp := envelope.KnowledgeResponse{
		RequestID: req.ID,
		Query:     req.Query,
	}

	if m.search == nil {
		observability.RecordKnowledgeRetrieval(string(req.Stage), "degraded")
		resp.Summary = fmt.Sprintf("No external knowledge source is configured; proceed with the available text for query: %s", req.Query)
		return resp
	}

	sources, err := m.search.Search(ctx, req.Query, searchLimit)
	if err != nil || len(sources) == 0 {
		observability.RecordKnowledgeRetrieval(string(req.Stage), "degraded")
		if err != nil {
			m.logger.Warn("knowledge_search_error", "error", err.Error())
			resp.Summary = fmt.Sprintf("External search failed (%v); proceed with the available text for query: %s", err, req.Query)
		} else {
			resp.Summary = fmt.Sprintf("External search returned no results for query: %s", req.Query)
		}
		return resp
	}
	resp.Sources = sources

	summary, err := m.summarize(ctx, req.Query, sources)
	if err != nil {
		observability.RecordKnowledgeRetrieval(string(req.Stage), "degraded")
		m.logger.Warn("knowledge_summarize_error", "error", err.Error())
		resp.Summary = rawDigest(sources)
		return resp
	}
	observability.RecordKnowledgeRetrieval(string(req.Stage), "success")
	resp.Summary = summary
	return resp
}

func (m *Mediator) summarize(ctx context.Context, query string, sources []envelope.SourceRef) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize the following search results to answer the query. Be factual and concise; this summary will be injected into an AAOIFI standard enhancement prompt.\n\nQuery: ")
	b.WriteString(query)
	b.WriteString("\n\nSearch results:\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "\n%d. %s\n%s\n", i+1, src.Title, src.Snippet)
		if src.Link != "" {
			fmt.Fprintf(&b, "(%s)\n", src.Link)
		}
	}
	return m.llm.Generate(ctx, m.cfg.Model, b.String(), map[string]any{
		"temperature": 0.0,
	})
}

// rawDigest joins source snippets when no LLM summary could be produced.
func rawDigest(sources []envelope.SourceRef) string {
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		parts = append(parts, fmt.Sprintf("%s: %s", src.Title, src.Snippet))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
