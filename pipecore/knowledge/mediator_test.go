package knowledge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/config"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/knowledge"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/testutil"
)

func pendingEnvelope(query string) *envelope.StandardEnvelope {
	env := envelope.NewStandardEnvelope("text")
	env.AddKnowledgeRequest(envelope.KnowledgeRequest{
		Stage: envelope.StageReviewer,
		Query: query,
	})
	return env
}

func TestResolveNothingPending(t *testing.T) {
	m := knowledge.NewMediator(config.NewPipelineConfig(), nil, testutil.NewMockLLMProvider(), testutil.NewMockLogger())

	resp, err := m.Resolve(context.Background(), envelope.NewStandardEnvelope("text"))
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestResolveWithoutSearchProviderDegrades(t *testing.T) {
	m := knowledge.NewMediator(config.NewPipelineConfig(), nil, testutil.NewMockLLMProvider(), testutil.NewMockLogger())
	env := pendingEnvelope("tawarruq rulings")

	resp, err := m.Resolve(context.Background(), env)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.False(t, env.HasPendingRequest())
	assert.Contains(t, resp.Summary, "No external knowledge source is configured")
	assert.Contains(t, resp.Summary, "tawarruq rulings")
	assert.Empty(t, resp.Sources)
}

func TestResolveSearchErrorDegrades(t *testing.T) {
	search := &testutil.MockSearchProvider{Error: errors.New("search backend down")}
	m := knowledge.NewMediator(config.NewPipelineConfig(), search, testutil.NewMockLLMProvider(), testutil.NewMockLogger())
	env := pendingEnvelope("query")

	resp, err := m.Resolve(context.Background(), env)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.False(t, env.HasPendingRequest())
	assert.Contains(t, resp.Summary, "External search failed")
}

func TestResolveEmptyResultsDegrade(t *testing.T) {
	search := &testutil.MockSearchProvider{}
	m := knowledge.NewMediator(config.NewPipelineConfig(), search, testutil.NewMockLLMProvider(), testutil.NewMockLogger())
	env := pendingEnvelope("obscure query")

	resp, err := m.Resolve(context.Background(), env)
	require.NoError(t, err)
	assert.Contains(t, resp.Summary, "no results")
}

func TestResolveSummarizesSources(t *testing.T) {
	search := &testutil.MockSearchProvider{Sources: []envelope.SourceRef{
		{Title: "FAS 28", Snippet: "murabaha ownership transfer rules"},
		{Title: "GSIFI 1", Snippet: "Shariah board composition"},
	}}
	llm := testutil.NewMockLLMProvider().
		WithResponse("Summarize the following search results", "Ownership must transfer to the institution before resale.")
	m := knowledge.NewMediator(config.NewPipelineConfig(), search, llm, testutil.NewMockLogger())
	env := pendingEnvelope("murabaha ownership")

	resp, err := m.Resolve(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, "Ownership must transfer to the institution before resale.", resp.Summary)
	assert.Len(t, resp.Sources, 2)
	require.Len(t, env.KnowledgeResponses, 1)
	assert.Equal(t, resp.Summary, env.KnowledgeResponses[0].Summary)

	// The summarization prompt carries the query and the snippets.
	require.Len(t, llm.Calls, 1)
	assert.Contains(t, llm.Calls[0].Prompt, "murabaha ownership")
	assert.Contains(t, llm.Calls[0].Prompt, "Shariah board composition")
}

func TestResolveSummarizeErrorFallsBackToDigest(t *testing.T) {
	search := &testutil.MockSearchProvider{Sources: []envelope.SourceRef{
		{Title: "FAS 28", Snippet: "snippet one"},
	}}
	llm := testutil.NewMockLLMProvider().WithError(errors.New("model overloaded"))
	m := knowledge.NewMediator(config.NewPipelineConfig(), search, llm, testutil.NewMockLogger())
	env := pendingEnvelope("query")

	resp, err := m.Resolve(context.Background(), env)
	require.NoError(t, err)

	assert.Contains(t, resp.Summary, "FAS 28: snippet one")
	assert.False(t, env.HasPendingRequest())
}

func TestResolveCancelledContext(t *testing.T) {
	m := knowledge.NewMediator(config.NewPipelineConfig(), nil, testutil.NewMockLLMProvider(), testutil.NewMockLogger())
	env := pendingEnvelope("query")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Resolve(ctx, env)
	assert.ErrorIs(t, err, context.Canceled)
}
