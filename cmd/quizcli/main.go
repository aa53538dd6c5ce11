package main

import (
	"context"
	"errors"
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
	"quizforge/internal/session"
	"quizforge/internal/settings"
	"quizforge/internal/util"
	"quizforge/internal/validation"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type options struct {
	configPath     string
	topics         []string
	count          int
	answerMode     string
	generationMode string
	inputPrice     float64
	outputPrice    float64
	listTopics     bool
	estimateOnly   bool
	noSave         bool
	quizFile       string
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flags := pflag.NewFlagSet("quizcli", pflag.ExitOnError)
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file or directory")
	flags.String("content", "", "study content root directory")
	flags.String("provider", "", "model provider (openai, ollama)")
	flags.String("model", "", "model name")
	flags.String("base-url", "", "provider base URL")
	flags.Int("context-window", 0, "model context window in tokens")
	flags.Float64("delay", 0, "seconds to wait between model calls")
	flags.String("settings", "", "file holding the last selection")
	flags.String("log-level", "", "log level")

	flags.StringSliceVarP(&opts.topics, "topics", "t", nil, "topic ids, comma separated")
	flags.IntVarP(&opts.count, "count", "n", 0, "number of questions")
	flags.StringVar(&opts.answerMode, "answer-mode", "", "single, multiple or mixed")
	flags.StringVar(&opts.generationMode, "generation-mode", "", "single_call_per_question or batched")
	flags.Float64Var(&opts.inputPrice, "input-price", 0, "USD per million input tokens")
	flags.Float64Var(&opts.outputPrice, "output-price", 0, "USD per million output tokens")
	flags.BoolVar(&opts.listTopics, "list-topics", false, "list topics and exit")
	flags.BoolVar(&opts.estimateOnly, "estimate-only", false, "print the cost estimate and exit")
	flags.BoolVar(&opts.noSave, "no-save", false, "do not remember this selection")
	flags.StringVar(&opts.quizFile, "quiz-file", "", "play a quiz file written by batchexport instead of generating")
	return flags
}

// applyFlags overlays explicitly set flags on the restored selection.
func applyFlags(sel settings.Selection, flags *pflag.FlagSet, opts *options) (settings.Selection, error) {
	if flags.Changed("topics") {
		sel.TopicIDs = opts.topics
	}
	if flags.Changed("count") {
		sel.QuestionCount = opts.count
	}
	if flags.Changed("answer-mode") {
		mode, err := domain.ParseAnswerMode(opts.answerMode)
		if err != nil {
			return sel, err
		}
		sel.AnswerMode = mode
	}
	if flags.Changed("generation-mode") {
		mode, err := domain.ParseGenerationMode(opts.generationMode)
		if err != nil {
			return sel, err
		}
		sel.GenerationMode = mode
	}
	if flags.Changed("input-price") || flags.Changed("output-price") {
		if !sel.Pricing.Enabled {
			sel.Pricing = settings.Pricing{Enabled: true}
		}
		if flags.Changed("input-price") {
			sel.Pricing.InputPerMillion = opts.inputPrice
		}
		if flags.Changed("output-price") {
			sel.Pricing.OutputPerMillion = opts.outputPrice
		}
	}
	return sel, nil
}

// resolvePricing prefers the user's manual pricing over the configured one.
// Nil means the model is treated as free.
func resolvePricing(sel settings.Selection, cfg config.PricingConfig) *cost.Pricing {
	if sel.Pricing.Enabled {
		return &cost.Pricing{
			InputPerToken:             cost.PricePerMillion(sel.Pricing.InputPerMillion),
			OutputPerToken:            cost.PricePerMillion(sel.Pricing.OutputPerMillion),
			ResponseTokensPerQuestion: cfg.ResponseTokensPerQuestion,
		}
	}
	return cost.PricingFromConfig(cfg)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts := &options{}
	flags := newFlagSet(opts)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfigWithFlags(opts.configPath, flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	fs := afero.NewOsFs()
	out := newConsole(os.Stdin, os.Stdout)

	if opts.quizFile != "" {
		quiz, err := service.LoadQuizFile(fs, opts.quizFile, appLogger)
		if err != nil {
			return err
		}
		return playQuiz(out, *quiz)
	}

	topics, err := content.NewRepository(fs, appLogger).Load(cfg.Content.Root)
	if err != nil {
		return err
	}
	topicList := lo.Map(content.SortedIDs(topics), func(id string, _ int) domain.Topic { return topics[id] })
	if opts.listTopics {
		out.printTopics(topicList)
		return nil
	}

	store := settings.NewStore(fs, cfg.Settings.Path, appLogger)
	sel, err := store.Load()
	if err != nil {
		appLogger.Warn("Could not restore last selection", zap.Error(err))
	}
	if sel, err = applyFlags(sel, flags, opts); err != nil {
		return err
	}
	if len(sel.TopicIDs) == 0 {
		out.printTopics(topicList)
		return errors.New("no topics selected, pass --topics")
	}

	spec, verrs := validation.NewValidator().ValidateQuizSpec(sel.TopicIDs, sel.QuestionCount, string(sel.AnswerMode), string(sel.GenerationMode))
	if len(verrs) > 0 {
		return verrs
	}

	pricing := resolvePricing(sel, cfg.Pricing)
	generator := service.NewQuizGenerator(service.GeneratorOptions{
		ContextWindow:             cfg.Model.ContextWindow,
		Pricing:                   pricing,
		ResponseTokensPerQuestion: cfg.Pricing.ResponseTokensPerQuestion,
		Progress:                  out.printProgress,
	}, appLogger)

	estimatePricing := cost.Pricing{}
	if pricing != nil {
		estimatePricing = *pricing
	}
	estimate, err := generator.EstimateForSpec(spec, topics, estimatePricing)
	if err != nil {
		return err
	}
	out.printEstimate(estimate)

	if !opts.noSave {
		defer func() {
			if err := store.Save(sel); err != nil {
				appLogger.Warn("Could not save selection", zap.Error(err))
			}
		}()
	}
	if opts.estimateOnly {
		return nil
	}

	client, err := llm.NewModelClient(cfg.Model, appLogger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	fmt.Fprintf(out.out, "Generating %d questions with %s...\n", spec.QuestionCount, cfg.Model.Name)
	quiz, err := generator.Generate(ctx, spec, topics, client, cfg.Model.RequestDelay())
	stop()
	if err != nil {
		var genErr *domain.GenerationError
		if !errors.As(err, &genErr) || genErr.Kind != domain.KindCancelled || quiz == nil || len(quiz.Questions) == 0 {
			return err
		}
		fmt.Fprintf(out.out, "Generation interrupted, playing the %d questions already generated.\n", len(quiz.Questions))
	}
	if quiz.Partial {
		fmt.Fprintf(out.out, "Only %d of %d questions could be generated.\n", len(quiz.Questions), quiz.RequestedCount)
	}

	return playQuiz(out, *quiz)
}

func playQuiz(out *console, quiz domain.Quiz) error {
	sess := session.New(util.NewULID(), quiz)
	if err := out.play(sess); err != nil {
		return err
	}
	score, err := sess.Score()
	if err != nil {
		return err
	}
	out.printScore(score)
	return nil
}
