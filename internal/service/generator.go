package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quizforge/internal/cost"
	"quizforge/internal/domain"
	"quizforge/internal/parser"
	"quizforge/internal/prompt"
	"quizforge/internal/util"

	"go.uber.org/zap"
)

// Progress is reported after every question slot (or once for a batched call).
// Generated and Dropped are running totals.
type Progress struct {
	Slot      int `json:"slot"`
	Requested int `json:"requested"`
	Generated int `json:"generated"`
	Dropped   int `json:"dropped"`
}

type ProgressFunc func(Progress)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type GeneratorOptions struct {
	ContextWindow int
	Progress      ProgressFunc
	Sleep         SleepFunc
	// Pricing, when set, attaches the estimated cost of the built prompts to the quiz.
	Pricing *cost.Pricing
	// ResponseTokensPerQuestion sizes the response reserve of each prompt.
	ResponseTokensPerQuestion int
}

// QuizGenerator turns a quiz spec into a quiz by prompting a model.
type QuizGenerator interface {
	Generate(ctx context.Context, spec domain.QuizSpec, topics map[string]domain.Topic, client domain.ModelClient, delay time.Duration) (*domain.Quiz, error)
	EstimateForSpec(spec domain.QuizSpec, topics map[string]domain.Topic, pricing cost.Pricing) (*Estimate, error)
}

// Estimate is the cost of a spec before anything is sent.
type Estimate struct {
	cost.Breakdown
	Warnings []domain.ContentTruncatedWarning `json:"warnings,omitempty"`
}

type quizGenerator struct {
	builder *prompt.Builder
	parser  *parser.Parser
	opts    GeneratorOptions
	logger  *zap.Logger
	now     func() time.Time
}

func NewQuizGenerator(opts GeneratorOptions, logger *zap.Logger) QuizGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.ResponseTokensPerQuestion <= 0 {
		opts.ResponseTokensPerQuestion = cost.ResponseTokensPerQuestion
	}
	return &quizGenerator{
		builder: prompt.NewBuilder(opts.ResponseTokensPerQuestion),
		parser:  parser.New(logger),
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Generate builds the prompts for spec and runs them against client.
//
// Prompt construction errors (unknown topic, prompt too large, invalid spec)
// are returned as-is. Run failures come back as *domain.GenerationError; on
// cancellation the questions gathered so far are returned alongside it.
func (g *quizGenerator) Generate(ctx context.Context, spec domain.QuizSpec, topics map[string]domain.Topic, client domain.ModelClient, delay time.Duration) (*domain.Quiz, error) {
	built, err := g.builder.Build(spec, topics, g.opts.ContextWindow)
	if err != nil {
		return nil, err
	}
	for _, w := range built.Warnings {
		g.logger.Warn("Topic text truncated to fit the context window",
			zap.String("topic_id", w.TopicID), zap.Int("dropped_tokens", w.DroppedTokens))
	}

	quiz := &domain.Quiz{
		ID:             util.NewULID(),
		RequestedCount: spec.QuestionCount,
		Warnings:       built.Warnings,
	}
	if g.opts.Pricing != nil {
		estimate := cost.EstimatePrompts(built.Prompts, *g.opts.Pricing)
		quiz.EstimatedCost = &estimate.Total
	}

	g.logger.Info("Generating quiz",
		zap.String("quiz_id", quiz.ID),
		zap.Strings("topics", spec.TopicIDs),
		zap.Int("questions", spec.QuestionCount),
		zap.String("answer_mode", string(spec.AnswerMode)),
		zap.String("generation_mode", string(spec.GenerationMode)))

	if spec.GenerationMode == domain.GenerationModeBatched {
		err = g.runBatched(ctx, spec, built.Prompts[0], client, delay, quiz)
	} else {
		err = g.runSingleCalls(ctx, spec, built.Prompts, client, delay, quiz)
	}

	g.finish(quiz)
	if err != nil {
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) && genErr.Kind == domain.KindCancelled {
			return quiz, err
		}
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, &domain.GenerationError{Kind: domain.KindEmpty, Err: domain.NewNoValidQuestionsError(0)}
	}
	if quiz.Partial {
		g.logger.Warn("Quiz is partial",
			zap.String("quiz_id", quiz.ID),
			zap.Int("requested", quiz.RequestedCount),
			zap.Int("generated", len(quiz.Questions)))
	}
	return quiz, nil
}

func (g *quizGenerator) finish(quiz *domain.Quiz) {
	quiz.GeneratedAt = g.now()
	quiz.Partial = len(quiz.Questions) < quiz.RequestedCount
}

// runBatched issues the single call. Once sent it is not interrupted by ctx.
func (g *quizGenerator) runBatched(ctx context.Context, spec domain.QuizSpec, p domain.Prompt, client domain.ModelClient, delay time.Duration, quiz *domain.Quiz) error {
	if err := ctx.Err(); err != nil {
		return &domain.GenerationError{Kind: domain.KindCancelled, Err: err}
	}

	raw, err := g.callWithRetry(ctx, context.WithoutCancel(ctx), client, p.Text, delay)
	if err != nil {
		return g.runError(ctx, err)
	}

	questions, err := g.parser.Parse(raw, spec.QuestionCount)
	if err != nil {
		g.logger.Warn("Batched response held no valid questions", zap.Error(err))
		g.report(1, spec.QuestionCount, 0, spec.QuestionCount)
		return &domain.GenerationError{Kind: domain.KindEmpty, Err: err}
	}

	// Question i answers slot i; a mismatch drops it rather than shifting the rest.
	for i, q := range questions {
		if i >= len(p.Slots) || !q.Satisfies(p.Slots[i]) {
			g.logger.Debug("Dropping question that does not match its slot policy",
				zap.Int("slot", i+1), zap.String("question_type", string(q.Type)))
			continue
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	g.report(1, spec.QuestionCount, len(quiz.Questions), spec.QuestionCount-len(quiz.Questions))
	return nil
}

func (g *quizGenerator) runSingleCalls(ctx context.Context, spec domain.QuizSpec, prompts []domain.Prompt, client domain.ModelClient, delay time.Duration, quiz *domain.Quiz) error {
	dropped := 0
	for i, p := range prompts {
		if err := ctx.Err(); err != nil {
			return &domain.GenerationError{Kind: domain.KindCancelled, Err: err}
		}

		q, err := g.generateOne(ctx, client, p, delay)
		switch {
		case err == nil:
			quiz.Questions = append(quiz.Questions, q)
		case ctx.Err() != nil || errors.Is(err, domain.ErrFatalProvider):
			return g.runError(ctx, err)
		default:
			dropped++
			g.logger.Warn("Dropping question slot", zap.Int("slot", i+1), zap.Error(err))
		}
		g.report(i+1, spec.QuestionCount, len(quiz.Questions), dropped)

		if i < len(prompts)-1 {
			if err := g.opts.Sleep(ctx, delay); err != nil {
				return &domain.GenerationError{Kind: domain.KindCancelled, Err: err}
			}
		}
	}
	return nil
}

// generateOne produces the question for one slot. Any error other than a
// fatal provider error or cancellation means the slot is dropped.
func (g *quizGenerator) generateOne(ctx context.Context, client domain.ModelClient, p domain.Prompt, delay time.Duration) (domain.Question, error) {
	raw, err := g.callWithRetry(ctx, ctx, client, p.Text, delay)
	if err != nil {
		return domain.Question{}, err
	}
	questions, err := g.parser.Parse(raw, 1)
	if err != nil {
		return domain.Question{}, err
	}
	q := questions[0]
	if !q.Satisfies(p.Slots[0]) {
		return domain.Question{}, domain.NewValidationFailure(
			fmt.Sprintf("question type %s does not match slot policy %s", q.Type, p.Slots[0]))
	}
	return q, nil
}

// callWithRetry calls the model under callCtx and retries a transient failure
// once after an extra 2*delay wait. The wait itself honours ctx.
func (g *quizGenerator) callWithRetry(ctx, callCtx context.Context, client domain.ModelClient, text string, delay time.Duration) (string, error) {
	raw, err := client.Generate(callCtx, text)
	err = normalizeProviderError(err)
	if err == nil || !domain.IsTransient(err) {
		return raw, err
	}

	g.logger.Warn("Transient provider error, retrying once", zap.Error(err), zap.Duration("backoff", 2*delay))
	if sleepErr := g.opts.Sleep(ctx, 2*delay); sleepErr != nil {
		return "", sleepErr
	}
	raw, err = client.Generate(callCtx, text)
	return raw, normalizeProviderError(err)
}

// normalizeProviderError classifies errors a client left unclassified.
// Deadlines are transient, cancellation passes through, anything else is fatal.
func normalizeProviderError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrTransientProvider), errors.Is(err, domain.ErrFatalProvider):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewTransientProviderError(err)
	default:
		return domain.NewFatalProviderError(err)
	}
}

func (g *quizGenerator) runError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrFatalProvider):
		g.logger.Error("Fatal provider error, aborting generation", zap.Error(err))
		return &domain.GenerationError{Kind: domain.KindFatal, Err: err}
	case ctx.Err() != nil:
		return &domain.GenerationError{Kind: domain.KindCancelled, Err: ctx.Err()}
	case domain.IsTransient(err):
		return &domain.GenerationError{Kind: domain.KindTransient, Err: err}
	default:
		return &domain.GenerationError{Kind: domain.KindFatal, Err: err}
	}
}

func (g *quizGenerator) report(slot, requested, generated, dropped int) {
	if g.opts.Progress == nil {
		return
	}
	g.opts.Progress(Progress{Slot: slot, Requested: requested, Generated: generated, Dropped: dropped})
}

// EstimateForSpec prices the prompts spec would send, without sending them.
func (g *quizGenerator) EstimateForSpec(spec domain.QuizSpec, topics map[string]domain.Topic, pricing cost.Pricing) (*Estimate, error) {
	if pricing.ResponseTokensPerQuestion <= 0 {
		pricing.ResponseTokensPerQuestion = g.opts.ResponseTokensPerQuestion
	}
	built, err := g.builder.Build(spec, topics, g.opts.ContextWindow)
	if err != nil {
		return nil, err
	}
	return &Estimate{
		Breakdown: cost.EstimatePrompts(built.Prompts, pricing),
		Warnings:  built.Warnings,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
