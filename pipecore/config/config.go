// Package config provides pipeline configuration for the enhancement engine.
package config

import "fmt"

// Defaults applied by Validate when a field is zero.
const (
	DefaultMaxRetries          = 5
	DefaultQualityScore        = 60
	DefaultQualityThreshold    = 50
	DefaultModel               = "gpt-4o-mini"
	DefaultTemperature         = 0.2
	DefaultMaxKnowledgeQueries = 3
)

// PipelineConfig controls one pipeline run. There is no global config: a
// config is built explicitly and handed to the sequencer and agents.
type PipelineConfig struct {
	// MaxRetries is the per-stage retry budget. A stage runs at most
	// MaxRetries+1 times before regression or forced acceptance.
	MaxRetries int `json:"max_retries"`

	// DefaultQualityScore is assigned on forced acceptance and on total
	// parse failure of the enhancer.
	DefaultQualityScore int `json:"default_quality_score"`

	// QualityThreshold is the minimum score for a stage to advance.
	QualityThreshold int `json:"quality_threshold"`

	// LLM configuration
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`

	// MaxKnowledgeQueries caps knowledge requests per stage visit loop.
	MaxKnowledgeQueries int `json:"max_knowledge_queries"`

	// CorpusDir optionally points at a directory of reference documents
	// for retrieval augmentation. Empty disables retrieval.
	CorpusDir string `json:"corpus_dir,omitempty"`

	// SessionTitle names the run in the audit trail.
	SessionTitle string `json:"session_title,omitempty"`
}

// NewPipelineConfig returns a config with all defaults applied.
func NewPipelineConfig() *PipelineConfig {
	cfg := &PipelineConfig{}
	_ = cfg.Validate()
	return cfg
}

// Validate applies defaults to zero fields and rejects out-of-range values.
// Because zero means "use the default", a literal zero cannot be expressed
// for MaxRetries or QualityThreshold; callers that need a zero budget or
// threshold must gate at the call site instead.
func (c *PipelineConfig) Validate() error {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.DefaultQualityScore == 0 {
		c.DefaultQualityScore = DefaultQualityScore
	}
	if c.DefaultQualityScore < 0 || c.DefaultQualityScore > 100 {
		return fmt.Errorf("default_quality_score must be in [0,100], got %d", c.DefaultQualityScore)
	}
	if c.QualityThreshold == 0 {
		c.QualityThreshold = DefaultQualityThreshold
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 100 {
		return fmt.Errorf("quality_threshold must be in [0,100], got %d", c.QualityThreshold)
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0,2], got %v", c.Temperature)
	}
	if c.MaxKnowledgeQueries == 0 {
		c.MaxKnowledgeQueries = DefaultMaxKnowledgeQueries
	}
	if c.MaxKnowledgeQueries < 0 {
		return fmt.Errorf("max_knowledge_queries must be non-negative, got %d", c.MaxKnowledgeQueries)
	}
	if c.SessionTitle == "" {
		c.SessionTitle = "AAOIFI Standard Enhancement"
	}
	return nil
}

// MaxAttempts returns the total attempts a stage may consume before its
// budget is exhausted: the initial attempt plus MaxRetries retries.
func (c *PipelineConfig) MaxAttempts() int {
	return c.MaxRetries + 1
}
