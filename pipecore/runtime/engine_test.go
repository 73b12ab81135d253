package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/config"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/retrieval"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/runtime"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/testutil"
)

func TestNewEngineRequiresLLM(t *testing.T) {
	_, err := runtime.NewEngine(config.NewPipelineConfig(), runtime.EngineDeps{
		Logger: testutil.NewMockLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM provider")
}

func TestNewEngineRequiresLogger(t *testing.T) {
	_, err := runtime.NewEngine(config.NewPipelineConfig(), runtime.EngineDeps{
		LLM: testutil.NewMockLLMProvider(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger")
}

func TestEngineEndToEnd(t *testing.T) {
	llm := wellBehavedLLM()
	logger := testutil.NewMockLogger()

	store := retrieval.NewStore(nil)
	store.Add("fas-28.md", "murabaha requires ownership transfer before resale")

	engine, err := runtime.NewEngine(testConfig(), runtime.EngineDeps{
		LLM:       llm,
		Search:    retrieval.NewCorpusSearch(store),
		Retriever: store,
		Logger:    logger,
	})
	require.NoError(t, err)

	result, err := engine.Process(context.Background(), "raw murabaha standard")
	require.NoError(t, err)

	assert.Equal(t, "final standard", result.FinalOutput)
	assert.Equal(t, envelope.TerminalReasonCompletedSuccessfully, result.Envelope.TerminalReason)
	assert.True(t, logger.HasEvent("pipeline_started"))
	assert.True(t, logger.HasEvent("pipeline_completed"))

	// Corpus passages were injected into the stage prompts.
	require.NotEmpty(t, llm.Calls)
	assert.Contains(t, llm.Calls[0].Prompt, "ownership transfer before resale")
}

func TestEngineOptionalDepsMayBeNil(t *testing.T) {
	engine, err := runtime.NewEngine(testConfig(), runtime.EngineDeps{
		LLM:    wellBehavedLLM(),
		Logger: testutil.NewMockLogger(),
	})
	require.NoError(t, err)

	result, err := engine.Process(context.Background(), "raw standard")
	require.NoError(t, err)
	assert.Equal(t, "final standard", result.FinalOutput)
}
