package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/typeutil"
)

// openaiProvider adapts a langchaingo OpenAI client to agents.LLMProvider.
type openaiProvider struct {
	llm *openai.LLM
}

// newOpenAIProvider fails fast when OPENAI_API_KEY is absent so that a
// misconfigured run never reaches the first stage.
func newOpenAIProvider(model string) (*openaiProvider, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set; export it or add it to .env")
	}
	llm, err := openai.New(
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return &openaiProvider{llm: llm}, nil
}

func (p *openaiProvider) Generate(ctx context.Context, model string, prompt string, options map[string]any) (string, error) {
	opts := []llms.CallOption{}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}
	if temp, ok := options["temperature"].(float64); ok {
		opts = append(opts, llms.WithTemperature(temp))
	}
	if maxTokens := typeutil.SafeIntDefault(options["max_tokens"], 0); maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	return llms.GenerateFromSinglePrompt(ctx, p.llm, prompt, opts...)
}
