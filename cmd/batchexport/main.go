package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quizforge/internal/adapter/llm"
	"quizforge/internal/config"
	"quizforge/internal/content"
	"quizforge/internal/cost"
	"quizforge/internal/domain"
	"quizforge/internal/logger"
	"quizforge/internal/service"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	flags := pflag.NewFlagSet("batchexport", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "config file or directory")
	flags.String("content", "", "study content root directory")
	flags.String("provider", "", "model provider (openai, ollama)")
	flags.String("model", "", "model name")
	flags.String("base-url", "", "provider base URL")
	flags.Int("context-window", 0, "model context window in tokens")
	flags.Float64("delay", 0, "seconds to wait between model calls")
	flags.String("log-level", "", "log level")
	topics := flags.StringSliceP("topics", "t", nil, "topic ids to export (default all)")
	count := flags.IntP("count", "n", 10, "questions per topic")
	answerMode := flags.String("answer-mode", "single", "single, multiple or mixed")
	generationMode := flags.String("generation-mode", "batched", "single_call_per_question or batched")
	outDir := flags.StringP("out", "o", "quizzes", "output directory")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadConfigWithFlags(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	aMode, err := domain.ParseAnswerMode(*answerMode)
	if err != nil {
		log.Fatal("Invalid answer mode", zap.Error(err))
	}
	gMode, err := domain.ParseGenerationMode(*generationMode)
	if err != nil {
		log.Fatal("Invalid generation mode", zap.Error(err))
	}
	if *count <= 0 {
		log.Fatal("Question count must be positive", zap.Int("count", *count))
	}

	fs := afero.NewOsFs()
	loaded, err := content.NewRepository(fs, log).Load(cfg.Content.Root)
	if err != nil {
		log.Fatal("Failed to load study content", zap.Error(err))
	}

	client, err := llm.NewModelClient(cfg.Model, log)
	if err != nil {
		log.Fatal("Failed to create model client", zap.Error(err))
	}

	generator := service.NewQuizGenerator(service.GeneratorOptions{
		ContextWindow:             cfg.Model.ContextWindow,
		Pricing:                   cost.PricingFromConfig(cfg.Pricing),
		ResponseTokensPerQuestion: cfg.Pricing.ResponseTokensPerQuestion,
	}, log)
	batchSvc := service.NewBatchService(generator, loaded, client, cfg.Model.RequestDelay(), fs, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := batchSvc.GenerateAndExport(ctx, service.BatchOptions{
		TopicIDs:          *topics,
		QuestionsPerTopic: *count,
		AnswerMode:        aMode,
		GenerationMode:    gMode,
		OutputDir:         *outDir,
	})

	failed := 0
	for _, r := range results {
		if r.File == "" {
			failed++
		}
	}
	log.Info("Batch export finished",
		zap.Int("topics", len(results)),
		zap.Int("failed", failed),
		zap.String("output_dir", *outDir))
	if err != nil {
		log.Fatal("Batch export stopped", zap.Error(err))
	}
}
