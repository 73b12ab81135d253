package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/audit"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/config"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/observability"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/retrieval"
	"github.com/aaoifi-enhancement/standardsengine/pipecore/runtime"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	flagInput            string
	flagOutputDir        string
	flagCorpusDir        string
	flagModel            string
	flagMaxRetries       int
	flagDefaultQuality   int
	flagQualityThreshold int
	flagOTLPEndpoint     string
	flagDebug            bool
)

var rootCmd = &cobra.Command{
	Use:   "enhance",
	Short: "AAOIFI standard enhancement pipeline",
	Long: `enhance runs an AAOIFI Islamic finance standard through a four stage
LLM pipeline (preprocess, review, enhance, validate) with quality gated
retries, and writes the enhanced standard plus a full audit trail.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	RunE: runEnhance,
}

func init() {
	rootCmd.Flags().StringVarP(&flagInput, "input", "i", "", "path to the standard document to enhance (required)")
	rootCmd.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "output", "directory for the enhanced standard and audit trail")
	rootCmd.Flags().StringVar(&flagCorpusDir, "corpus-dir", "", "directory of reference documents for retrieval augmentation")
	rootCmd.Flags().StringVar(&flagModel, "model", config.DefaultModel, "model name passed to the LLM provider")
	rootCmd.Flags().IntVar(&flagMaxRetries, "max-retries", config.DefaultMaxRetries, "retry budget per stage before forced acceptance")
	rootCmd.Flags().IntVar(&flagDefaultQuality, "default-quality", config.DefaultQualityScore, "quality score assigned on forced acceptance")
	rootCmd.Flags().IntVar(&flagQualityThreshold, "quality-threshold", config.DefaultQualityThreshold, "minimum quality score to advance a stage")
	rootCmd.Flags().StringVar(&flagOTLPEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint for trace export (empty disables tracing)")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	_ = rootCmd.MarkFlagRequired("input")
}

func runEnhance(cmd *cobra.Command, args []string) error {
	// .env is optional; environment variables already set take precedence.
	_ = godotenv.Load()

	logger := newStdLogger(flagDebug)

	cfg := config.NewPipelineConfig()
	cfg.MaxRetries = flagMaxRetries
	cfg.DefaultQualityScore = flagDefaultQuality
	cfg.QualityThreshold = flagQualityThreshold
	cfg.Model = flagModel
	cfg.CorpusDir = flagCorpusDir
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	raw, err := os.ReadFile(flagInput)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("input document %s is empty", flagInput)
	}

	provider, err := newOpenAIProvider(cfg.Model)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flagOTLPEndpoint != "" {
		shutdown, err := observability.InitTracer("standardsengine", flagOTLPEndpoint)
		if err != nil {
			logger.Warn("tracing_init_failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	store := retrieval.NewStore(nil)
	if cfg.CorpusDir != "" {
		if err := store.LoadDir(cfg.CorpusDir); err != nil {
			return fmt.Errorf("load corpus: %w", err)
		}
		logger.Info("corpus_loaded", "dir", cfg.CorpusDir, "chunks", store.Len())
	}

	engine, err := runtime.NewEngine(cfg, runtime.EngineDeps{
		LLM:       provider,
		Search:    retrieval.NewCorpusSearch(store),
		Retriever: store,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	result, err := engine.Process(ctx, string(raw))
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	if err := writeOutputs(flagOutputDir, result); err != nil {
		return err
	}

	logger.Info("outputs_written",
		"dir", flagOutputDir,
		"final_length", len(result.FinalOutput),
		"duration", result.CompletionTime.Sub(result.StartTime).String())
	return nil
}

func writeOutputs(dir string, result *runtime.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	files := map[string]string{
		"enhanced_standard.md": result.FinalOutput,
		"audit_trail.md":       result.AuditTrail,
		"quality_scores.md":    audit.RenderQualityReport(result.Envelope),
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
