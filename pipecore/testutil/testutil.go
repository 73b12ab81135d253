// Package testutil provides shared test mocks for the pipeline packages.
//
// All mocks are designed for testing components in isolation without
// external dependencies.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/agents"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
)

// =============================================================================
// MOCK LLM PROVIDER
// =============================================================================

// MockLLMProvider implements the agents LLMProvider contract for tests.
// Responses are selected by prompt substring; Scripts let a matcher return a
// different response on each successive call, which is how retry sequences
// are exercised.
type MockLLMProvider struct {
	// Responses maps a prompt substring to a fixed response.
	Responses map[string]string

	// Scripts maps a prompt substring to a sequence of responses consumed
	// one per call. When a script is exhausted its last element repeats.
	Scripts map[string][]string

	// DefaultResponse is returned when nothing matches.
	DefaultResponse string

	// Error causes Generate to return this error for every call.
	Error error

	// Delay simulates LLM latency.
	Delay time.Duration

	// CallCount tracks the number of Generate calls.
	CallCount int

	// Calls records all calls for assertion.
	Calls []LLMCall

	// GenerateFunc, when set, replaces the matching logic entirely.
	GenerateFunc func(context.Context, string, string, map[string]any) (string, error)

	scriptPos map[string]int
	mu        sync.Mutex
}

// LLMCall records a single LLM call for assertion.
type LLMCall struct {
	Model   string
	Prompt  string
	Options map[string]any
}

// NewMockLLMProvider creates a mock with empty matchers.
func NewMockLLMProvider() *MockLLMProvider {
	return &MockLLMProvider{
		Responses: make(map[string]string),
		Scripts:   make(map[string][]string),
		scriptPos: make(map[string]int),
	}
}

// Generate implements the LLMProvider contract.
func (m *MockLLMProvider) Generate(ctx context.Context, model string, prompt string, options map[string]any) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.Calls = append(m.Calls, LLMCall{Model: model, Prompt: prompt, Options: options})
	customFunc := m.GenerateFunc
	m.mu.Unlock()

	if customFunc != nil {
		return customFunc(ctx, model, prompt, options)
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if m.Error != nil {
		return "", m.Error
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for substr, script := range m.Scripts {
		if strings.Contains(prompt, substr) && len(script) > 0 {
			pos := m.scriptPos[substr]
			if pos >= len(script) {
				pos = len(script) - 1
			}
			m.scriptPos[substr]++
			return script[pos], nil
		}
	}
	for substr, response := range m.Responses {
		if strings.Contains(prompt, substr) {
			return response, nil
		}
	}
	return m.DefaultResponse, nil
}

// WithResponse adds a substring-matched fixed response.
func (m *MockLLMProvider) WithResponse(substr, response string) *MockLLMProvider {
	m.Responses[substr] = response
	return m
}

// WithScript adds a substring-matched response sequence.
func (m *MockLLMProvider) WithScript(substr string, responses ...string) *MockLLMProvider {
	m.Scripts[substr] = responses
	return m
}

// WithError configures the mock to fail every call.
func (m *MockLLMProvider) WithError(err error) *MockLLMProvider {
	m.Error = err
	return m
}

// GetCallCount returns the number of calls (thread-safe).
func (m *MockLLMProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// PromptCount returns how many recorded prompts contain the substring.
func (m *MockLLMProvider) PromptCount(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, call := range m.Calls {
		if strings.Contains(call.Prompt, substr) {
			count++
		}
	}
	return count
}

// Stage prompt markers, matching the stage system prompts.
const (
	PreprocessorMarker = "preprocesses AAOIFI"
	ReviewerMarker     = "reviews AAOIFI"
	EnhancerMarker     = "enhances AAOIFI"
	ValidatorMarker    = "validates AAOIFI"
)

// StageMarker returns the prompt substring identifying a stage's calls.
func StageMarker(stage envelope.Stage) string {
	switch stage {
	case envelope.StagePreprocessor:
		return PreprocessorMarker
	case envelope.StageReviewer:
		return ReviewerMarker
	case envelope.StageEnhancer:
		return EnhancerMarker
	case envelope.StageValidator:
		return ValidatorMarker
	}
	return string(stage)
}

// StageJSON builds a well-formed model response for a stage.
func StageJSON(stage envelope.Stage, artifact string, score int) string {
	payload := map[string]any{
		"quality_score": score,
		"notes":         fmt.Sprintf("mock %s attempt", stage),
	}
	switch stage {
	case envelope.StagePreprocessor:
		payload["preprocessed_text"] = artifact
	case envelope.StageReviewer:
		payload["reviewed_text"] = artifact
	case envelope.StageEnhancer:
		payload["enhanced_text"] = artifact
	case envelope.StageValidator:
		payload["validated_text"] = artifact
		payload["final_output"] = artifact
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// =============================================================================
// MOCK SEARCH PROVIDER
// =============================================================================

// MockSearchProvider implements the knowledge SearchProvider contract.
type MockSearchProvider struct {
	Sources   []envelope.SourceRef
	Error     error
	CallCount int
	Queries   []string

	mu sync.Mutex
}

// Search returns the configured sources or error.
func (m *MockSearchProvider) Search(ctx context.Context, query string, limit int) ([]envelope.SourceRef, error) {
	m.mu.Lock()
	m.CallCount++
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if m.Error != nil {
		return nil, m.Error
	}
	if limit < len(m.Sources) {
		return m.Sources[:limit], nil
	}
	return m.Sources, nil
}

// =============================================================================
// MOCK LOGGER
// =============================================================================

// LogEntry records one logged event.
type LogEntry struct {
	Level  string
	Msg    string
	Fields []any
}

// MockLogger implements the agents Logger contract and records entries.
type MockLogger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

// NewMockLogger creates an empty recording logger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (l *MockLogger) log(level, msg string, fields ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Fields: fields})
}

// Debug implements Logger.
func (l *MockLogger) Debug(msg string, fields ...any) { l.log("debug", msg, fields...) }

// Info implements Logger.
func (l *MockLogger) Info(msg string, fields ...any) { l.log("info", msg, fields...) }

// Warn implements Logger.
func (l *MockLogger) Warn(msg string, fields ...any) { l.log("warn", msg, fields...) }

// Error implements Logger.
func (l *MockLogger) Error(msg string, fields ...any) { l.log("error", msg, fields...) }

// Bind implements Logger; the mock keeps one shared entry list.
func (l *MockLogger) Bind(fields ...any) agents.Logger {
	return l
}

// HasEvent reports whether a message was logged at any level.
func (l *MockLogger) HasEvent(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.Entries {
		if entry.Msg == msg {
			return true
		}
	}
	return false
}
